// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package exchange runs one chat exchange end to end.
//
// An Orchestrator opens the streaming request, feeds the body through the
// sse decoder and parser, folds each event into the session and, when the
// exchange completes with text and without an error, hands that text to
// the typing animator.
//
// # Key Types
//
//   - Orchestrator: owns the session and animator for one conversation view
//   - Result: final identifiers and text of a completed exchange
//   - StreamError: a transport failure after the stream was opened
//
// # Usage
//
//	orch := exchange.New(client, session.New(), exchange.WithAnimator(anim, redraw))
//	res, err := orch.Run(ctx, req, func(ev sse.Event) { log(ev.Name()) })
//	if err == nil && res.Playback != nil {
//	    res.Playback.Wait(ctx)
//	}
package exchange
