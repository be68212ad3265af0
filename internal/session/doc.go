// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the state of one chat exchange.
//
// A Session moves through Idle, Sending, Streaming and Complete as stream
// events are folded into it, accumulating answer text and the identifiers
// (conversation, message, room) the backend hands out along the way.
// Identifiers are first-write-wins, except that message_end is
// authoritative. Once Complete, further folds are ignored until the next
// Start.
//
// # Key Types
//
//   - Session: the explicitly owned exchange state and its transitions
//   - Snapshot: an immutable copy of a session at one point in time
//   - ProtocolError: an error event reported by the backend mid-stream
//   - Transcript: the bounded list of user and assistant turns
//
// # Usage
//
//	s := session.New()
//	s.Start(func(ev sse.Event) { render(ev) })
//	for _, ev := range events {
//	    s.Fold(ev)
//	}
//	snap := s.Finish()
package session
