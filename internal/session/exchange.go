// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import "github.com/jeranaias/chatstream/internal/sse"

// Exchange is a handle on one started exchange. A read loop holds it
// instead of the Session so that, once a newer exchange has started,
// anything the old loop still delivers is dropped rather than folded into
// the new one.
type Exchange struct {
	s  *Session
	id string
}

// ID returns the exchange id.
func (x *Exchange) ID() string {
	return x.id
}

// Current reports whether this is still the session's exchange.
func (x *Exchange) Current() bool {
	x.s.mu.Lock()
	defer x.s.mu.Unlock()
	return x.s.exchangeID == x.id
}

// Fold is Session.Fold restricted to this exchange.
func (x *Exchange) Fold(ev sse.Event) bool {
	return x.s.fold(x.id, ev)
}

// SetRoomID is Session.SetRoomID restricted to this exchange.
func (x *Exchange) SetRoomID(id string) {
	x.s.setRoomID(x.id, id)
}

// Finish is Session.Finish restricted to this exchange. The boolean is
// false if the exchange was superseded, in which case the snapshot is empty.
func (x *Exchange) Finish() (Snapshot, bool) {
	return x.s.finish(x.id)
}

// Snapshot returns the session state if this exchange is still current.
func (x *Exchange) Snapshot() (Snapshot, bool) {
	x.s.mu.Lock()
	defer x.s.mu.Unlock()
	if x.s.exchangeID != x.id {
		return Snapshot{}, false
	}
	return x.s.snapshotLocked(), true
}
