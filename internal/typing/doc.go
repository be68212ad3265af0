// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package typing replays finished answer text one character at a time.
//
// Network arrival and on-screen reveal run on separate clocks: a reply that
// streamed in within a few milliseconds is still typed out at a readable
// pace. The tick interval shrinks as the text gets longer so that long
// answers do not take proportionally longer to appear.
//
// # Key Types
//
//   - Animator: owns the display buffer; at most one Playback runs at a time
//   - Playback: one cancelable reveal of one text
//   - Config: base interval, floor and length thresholds
//
// # Usage
//
//	anim := typing.NewAnimator(typing.DefaultConfig())
//	p := anim.Play(ctx, answer, func(shown string) { redraw(shown) })
//	full, err := p.Wait(ctx)
package typing
