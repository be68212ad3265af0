// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend is the HTTP client for the conversational backend.
//
// It opens streaming chat and agent exchanges, manages chat rooms and
// turns non-2xx responses into typed errors. It does not parse the stream
// itself; see package sse for that and package exchange for the loop that
// ties them together.
//
// The bearer credential is handed in ready to use. The client never
// fetches or refreshes it; InspectToken only reads a JWT's expiry so
// callers can warn early.
//
// # Key Types
//
//   - Client: endpoints, bearer credential, shared HTTP clients
//   - Request: one chat or agent query, validated before sending
//   - StreamResponse: an open 2xx body plus the out-of-band room id
//   - APIError: a non-2xx response with its status and parsed message
//
// # Usage
//
//	c := backend.NewClient("https://chat.example.com", token)
//	resp, err := c.Open(ctx, backend.Request{
//	    Mode:     backend.ModeChat,
//	    Query:    "hello",
//	    Model:    "gpt-4o",
//	    Provider: "openai",
//	})
//	if err != nil {
//	    return err
//	}
//	defer resp.Body.Close()
package backend
