// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Marker prefixes every line that carries a record.
const Marker = "data: "

// Skip explains why a line produced no event.
type Skip int

const (
	// SkipNone means the line produced an event.
	SkipNone Skip = iota
	// SkipNoMarker covers blank lines, comments and keep-alives.
	SkipNoMarker
	// SkipEmpty is a marker with no payload.
	SkipEmpty
	// SkipMalformed is a payload that is not a JSON object.
	SkipMalformed
)

func (s Skip) String() string {
	switch s {
	case SkipNone:
		return "none"
	case SkipNoMarker:
		return "no marker"
	case SkipEmpty:
		return "empty payload"
	case SkipMalformed:
		return "malformed payload"
	default:
		return "unknown"
	}
}

// Result is the outcome of parsing one line.
type Result struct {
	Event Event
	Skip  Skip
}

// OK reports whether the line produced an event.
func (r Result) OK() bool {
	return r.Skip == SkipNone
}

func skip(reason Skip) Result {
	return Result{Skip: reason}
}

// Parse classifies one line. Skipping is the ordinary outcome for most
// lines of a stream, so it is reported in the Result rather than as an error.
func Parse(line string) Result {
	data, ok := strings.CutPrefix(line, Marker)
	if !ok {
		return skip(SkipNoMarker)
	}
	data = strings.TrimSpace(data)
	if data == "" {
		return skip(SkipEmpty)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(data), &fields); err != nil || fields == nil {
		return skip(SkipMalformed)
	}

	tag := stringField(fields, "event")
	ev := Event{
		Kind:           kindForTag(tag),
		Tag:            tag,
		TaskID:         stringField(fields, "task_id"),
		ConversationID: stringField(fields, "conversation_id"),
		MessageID:      stringField(fields, "message_id"),
		RoomID:         stringField(fields, "room_id"),
		Raw:            json.RawMessage(data),
	}

	switch ev.Kind {
	case KindMessage:
		ev.Answer = stringField(fields, "answer")
	case KindError:
		ev.Status = intField(fields, "status")
		ev.Code = stringField(fields, "code")
		ev.Message = stringField(fields, "message")
	case KindAgentThought:
		ev.ThoughtID = stringField(fields, "id")
		ev.Position = intField(fields, "position")
		ev.Thought = stringField(fields, "thought")
		ev.Observation = stringField(fields, "observation")
		ev.Tool = stringField(fields, "tool")
		ev.ToolInput = stringField(fields, "tool_input")
	}
	return Result{Event: ev}
}

// stringField returns fields[key] if it is a JSON string, else "".
func stringField(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// intField accepts a JSON number or a numeric string; anything else is 0.
func intField(fields map[string]json.RawMessage, key string) int {
	raw, ok := fields[key]
	if !ok {
		return 0
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if v, err := n.Int64(); err == nil {
			return int(v)
		}
		if f, err := n.Float64(); err == nil {
			return int(f)
		}
		return 0
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return v
		}
	}
	return 0
}
