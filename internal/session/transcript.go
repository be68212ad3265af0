// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTranscriptLimit is how many turns a Transcript keeps by default.
const DefaultTranscriptLimit = 200

// Role identifies who produced a transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the conversation as the user saw it.
type Message struct {
	ID        string
	Role      Role
	Content   string
	Timestamp time.Time

	// Failed marks an assistant turn that ended in an error.
	Failed bool
}

// Transcript is a bounded, ordered list of turns. Oldest turns are dropped
// first once the limit is reached.
type Transcript struct {
	mu       sync.Mutex
	messages []Message
	limit    int
}

// NewTranscript creates a transcript holding at most limit turns.
// A non-positive limit uses DefaultTranscriptLimit.
func NewTranscript(limit int) *Transcript {
	if limit <= 0 {
		limit = DefaultTranscriptLimit
	}
	return &Transcript{limit: limit}
}

// AppendUser records a user query.
func (t *Transcript) AppendUser(content string) Message {
	return t.append(Message{Role: RoleUser, Content: content})
}

// AppendAssistant records a finished assistant reply.
func (t *Transcript) AppendAssistant(content string, failed bool) Message {
	return t.append(Message{Role: RoleAssistant, Content: content, Failed: failed})
}

func (t *Transcript) append(m Message) Message {
	m.ID = uuid.NewString()
	m.Timestamp = time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, m)
	if over := len(t.messages) - t.limit; over > 0 {
		t.messages = append([]Message(nil), t.messages[over:]...)
	}
	return m
}

// Messages returns a copy of the turns, oldest first.
func (t *Transcript) Messages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of turns held.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.messages)
}

// Clear drops every turn.
func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = nil
}
