// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

// Mode is the display mode of an exchange.
type Mode string

const (
	// ModeIdle means no exchange is in progress.
	ModeIdle Mode = "idle"
	// ModeSending means the request is out and nothing has come back yet.
	ModeSending Mode = "sending"
	// ModeStreaming means at least one message or agent thought arrived.
	ModeStreaming Mode = "streaming"
	// ModeComplete is terminal until the next Start or Reset.
	ModeComplete Mode = "complete"
)

// String returns the mode name.
func (m Mode) String() string {
	return string(m)
}

// Active reports whether an exchange is in flight.
func (m Mode) Active() bool {
	return m == ModeSending || m == ModeStreaming
}
