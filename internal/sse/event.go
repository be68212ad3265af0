// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import "encoding/json"

// =============================================================================
// EVENT TAGS
// =============================================================================

// Wire tags recognized in the "event" field of a record.
const (
	TagMessage      = "message"
	TagAgentMessage = "agent_message"
	TagMessageEnd   = "message_end"
	TagError        = "error"
	TagAgentThought = "agent_thought"
)

// Kind classifies an Event.
type Kind int

const (
	// KindOther is any record whose tag is absent or not recognized.
	KindOther Kind = iota
	// KindMessage carries incremental answer text.
	KindMessage
	// KindAgentThought carries display-only agent reasoning.
	KindAgentThought
	// KindMessageEnd terminates the exchange with authoritative identifiers.
	KindMessageEnd
	// KindError terminates the exchange with a failure.
	KindError
)

// String returns a short name for the kind.
func (k Kind) String() string {
	switch k {
	case KindMessage:
		return "message"
	case KindAgentThought:
		return "agent_thought"
	case KindMessageEnd:
		return "message_end"
	case KindError:
		return "error"
	default:
		return "other"
	}
}

// kindForTag maps a wire tag to its Kind.
func kindForTag(tag string) Kind {
	switch tag {
	case TagMessage, TagAgentMessage:
		return KindMessage
	case TagAgentThought:
		return KindAgentThought
	case TagMessageEnd:
		return KindMessageEnd
	case TagError:
		return KindError
	default:
		return KindOther
	}
}

// =============================================================================
// EVENT
// =============================================================================

// Event is one classified record from the stream.
type Event struct {
	Kind Kind
	// Tag is the raw "event" field; for KindMessage it tells "message"
	// from "agent_message", for KindOther it is whatever the backend sent.
	Tag string

	TaskID         string
	ConversationID string
	MessageID      string
	RoomID         string

	// Answer is the text increment of a message event.
	Answer string

	// Error fields.
	Status  int
	Code    string
	Message string

	// Agent thought fields.
	ThoughtID   string
	Position    int
	Thought     string
	Observation string
	Tool        string
	ToolInput   string

	// Raw is the undecoded JSON object.
	Raw json.RawMessage
}

// Terminal reports whether the event ends the exchange.
func (e Event) Terminal() bool {
	return e.Kind == KindMessageEnd || e.Kind == KindError
}

// Name is the callback name for the event: the raw tag when present,
// otherwise the kind.
func (e Event) Name() string {
	if e.Tag != "" {
		return e.Tag
	}
	return e.Kind.String()
}
