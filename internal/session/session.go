// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/chatstream/internal/sse"
)

// Handler receives every event folded into a session, in arrival order.
type Handler func(ev sse.Event)

// =============================================================================
// SESSION
// =============================================================================

// Session is the mutable state of one exchange. Folds are expected to come
// from a single read loop; the mutex only protects readers on other
// goroutines (a renderer, a signal handler) from torn state.
type Session struct {
	mu sync.Mutex

	exchangeID string
	mode       Mode
	text       strings.Builder

	conversationID string
	messageID      string
	roomID         string

	// roomPinned is set when the room id came from the response
	// rather than from an event.
	roomPinned bool

	err      *ProtocolError
	implicit bool

	startedAt  time.Time
	finishedAt time.Time

	handler Handler
}

// New creates an idle session.
func New() *Session {
	return &Session{mode: ModeIdle}
}

// Snapshot is a copy of the session state.
type Snapshot struct {
	ExchangeID     string
	Mode           Mode
	Text           string
	ConversationID string
	MessageID      string
	RoomID         string
	Err            *ProtocolError

	// Implicit is set when the stream ended without message_end or error.
	Implicit bool

	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration is the wall time between Start and completion.
func (s Snapshot) Duration() time.Duration {
	if s.StartedAt.IsZero() || s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// Start begins a new exchange. Whatever was in flight is abandoned: text,
// error and identifiers are cleared and the old handler will not be called
// again. The returned Exchange stops affecting the session as soon as
// another exchange starts.
func (s *Session) Start(h Handler) *Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearLocked()
	s.exchangeID = uuid.NewString()
	s.mode = ModeSending
	s.startedAt = time.Now()
	s.handler = h
	return &Exchange{s: s, id: s.exchangeID}
}

// Reset returns the session to Idle, dropping everything.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
	s.mode = ModeIdle
}

func (s *Session) clearLocked() {
	s.exchangeID = ""
	s.text.Reset()
	s.conversationID = ""
	s.messageID = ""
	s.roomID = ""
	s.roomPinned = false
	s.err = nil
	s.implicit = false
	s.startedAt = time.Time{}
	s.finishedAt = time.Time{}
	s.handler = nil
}

// SetRoomID records a room id delivered outside the event stream on the
// current exchange. A non-empty value pins the room: events can no longer
// assign it.
func (s *Session) SetRoomID(id string) {
	s.setRoomID("", id)
}

func (s *Session) setRoomID(exchangeID, id string) {
	if id == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.currentLocked(exchangeID) || !s.mode.Active() {
		return
	}
	s.roomID = id
	s.roomPinned = true
}

// Fold applies one event to the current exchange and passes it to the
// handler. It returns false, without calling the handler, when no exchange
// is in flight.
func (s *Session) Fold(ev sse.Event) bool {
	return s.fold("", ev)
}

// currentLocked reports whether exchangeID names the exchange in progress.
// The empty id means whichever exchange is current.
func (s *Session) currentLocked(exchangeID string) bool {
	return exchangeID == "" || exchangeID == s.exchangeID
}

func (s *Session) fold(exchangeID string, ev sse.Event) bool {
	s.mu.Lock()
	if !s.currentLocked(exchangeID) || !s.mode.Active() {
		s.mu.Unlock()
		return false
	}

	switch ev.Kind {
	case sse.KindMessage:
		s.mode = ModeStreaming
		s.text.WriteString(ev.Answer)
		s.assignLocked(ev)
	case sse.KindAgentThought:
		s.mode = ModeStreaming
		s.assignLocked(ev)
	case sse.KindMessageEnd:
		// Ids present here overwrite; absent ones keep earlier values.
		if ev.ConversationID != "" {
			s.conversationID = ev.ConversationID
		}
		if ev.MessageID != "" {
			s.messageID = ev.MessageID
		}
		s.assignRoomLocked(ev.RoomID)
		s.completeLocked()
	case sse.KindError:
		s.err = protocolErrorFrom(ev)
		s.assignLocked(ev)
		s.completeLocked()
	default:
		s.assignLocked(ev)
	}

	h := s.handler
	s.mu.Unlock()

	if h != nil {
		h(ev)
	}
	return true
}

// Finish records the end of the transport stream for the current
// exchange. An exchange that never saw a terminal event completes
// implicitly with whatever text it has.
func (s *Session) Finish() Snapshot {
	snap, _ := s.finish("")
	return snap
}

func (s *Session) finish(exchangeID string) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.currentLocked(exchangeID) {
		return Snapshot{}, false
	}
	if s.mode.Active() {
		s.implicit = true
		s.completeLocked()
	}
	return s.snapshotLocked(), true
}

func (s *Session) completeLocked() {
	s.mode = ModeComplete
	s.finishedAt = time.Now()
}

// assignLocked applies first-write-wins to the identifiers an event carries.
func (s *Session) assignLocked(ev sse.Event) {
	if s.conversationID == "" {
		s.conversationID = ev.ConversationID
	}
	if s.messageID == "" {
		s.messageID = ev.MessageID
	}
	s.assignRoomLocked(ev.RoomID)
}

func (s *Session) assignRoomLocked(id string) {
	if s.roomPinned || s.roomID != "" {
		return
	}
	s.roomID = id
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Mode returns the current display mode.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// ExchangeID returns the id handed out by the last Start.
func (s *Session) ExchangeID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exchangeID
}

// Text returns the answer text accumulated so far.
func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text.String()
}

// ConversationID returns the conversation id, if assigned.
func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// MessageID returns the message id, if assigned.
func (s *Session) MessageID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messageID
}

// RoomID returns the room id, if assigned.
func (s *Session) RoomID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

// Err returns the protocol error, or nil.
func (s *Session) Err() *ProtocolError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		ExchangeID:     s.exchangeID,
		Mode:           s.mode,
		Text:           s.text.String(),
		ConversationID: s.conversationID,
		MessageID:      s.messageID,
		RoomID:         s.roomID,
		Err:            s.err,
		Implicit:       s.implicit,
		StartedAt:      s.startedAt,
		FinishedAt:     s.finishedAt,
	}
}
