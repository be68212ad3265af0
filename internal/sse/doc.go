// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sse turns a chat backend's streaming response body into typed events.
//
// The backend frames its replies as lines of the form
//
//	data: {"event":"message","answer":"Hi"}
//
// separated by blank lines. Bytes arrive in arbitrary chunks, so the package
// is split into two stages: a Decoder that reassembles complete lines from
// chunks (carrying partial lines and partial UTF-8 sequences between calls),
// and Parse, which classifies one line into an Event or an explicit skip.
//
// # Key Types
//
//   - Decoder: chunk-to-line reassembly with UTF-8 carry-over
//   - Event: one classified record (message, agent thought, end, error, other)
//   - Result: the outcome of parsing one line, either an Event or a Skip reason
//
// # Usage
//
//	dec := sse.NewDecoder()
//	for _, line := range dec.Feed(chunk) {
//	    if res := sse.Parse(line); res.OK() {
//	        handle(res.Event)
//	    }
//	}
//	dec.Close()
package sse
