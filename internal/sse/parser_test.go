// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Skips(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Skip
	}{
		{"blank", "", SkipNoMarker},
		{"comment", ": keep-alive", SkipNoMarker},
		{"event field", "event: ping", SkipNoMarker},
		{"marker without space", `data:{"event":"message"}`, SkipNoMarker},
		{"empty payload", "data: ", SkipEmpty},
		{"whitespace payload", "data:    ", SkipEmpty},
		{"not json", "data: [DONE]", SkipMalformed},
		{"truncated json", `data: {"event":"message","answer":"Hi`, SkipMalformed},
		{"array", "data: [1,2,3]", SkipMalformed},
		{"string", `data: "message"`, SkipMalformed},
		{"null", "data: null", SkipMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var res Result
			require.NotPanics(t, func() { res = Parse(tt.line) })
			assert.False(t, res.OK())
			assert.Equal(t, tt.want, res.Skip)
		})
	}
}

func TestParse_Message(t *testing.T) {
	res := Parse(`data: {"event":"message","answer":"Hi","conversation_id":"c1","message_id":"m1","task_id":"t1"}`)
	require.True(t, res.OK())

	ev := res.Event
	assert.Equal(t, KindMessage, ev.Kind)
	assert.Equal(t, "message", ev.Name())
	assert.Equal(t, "Hi", ev.Answer)
	assert.Equal(t, "c1", ev.ConversationID)
	assert.Equal(t, "m1", ev.MessageID)
	assert.Equal(t, "t1", ev.TaskID)
	assert.False(t, ev.Terminal())
}

func TestParse_AgentMessageKeepsTag(t *testing.T) {
	res := Parse(`data: {"event":"agent_message","answer":"step"}`)
	require.True(t, res.OK())
	assert.Equal(t, KindMessage, res.Event.Kind)
	assert.Equal(t, TagAgentMessage, res.Event.Name())
	assert.Equal(t, "step", res.Event.Answer)
}

func TestParse_MessageEnd(t *testing.T) {
	res := Parse(`data: {"event":"message_end","conversation_id":"c1","message_id":"m1","metadata":{"usage":{}}}`)
	require.True(t, res.OK())
	assert.Equal(t, KindMessageEnd, res.Event.Kind)
	assert.True(t, res.Event.Terminal())
	assert.Equal(t, "c1", res.Event.ConversationID)
	assert.Equal(t, "m1", res.Event.MessageID)
}

func TestParse_ErrorStatusForms(t *testing.T) {
	numeric := Parse(`data: {"event":"error","status":400,"code":"invalid_param","message":"bad"}`)
	require.True(t, numeric.OK())
	assert.Equal(t, KindError, numeric.Event.Kind)
	assert.Equal(t, 400, numeric.Event.Status)
	assert.Equal(t, "invalid_param", numeric.Event.Code)
	assert.Equal(t, "bad", numeric.Event.Message)
	assert.True(t, numeric.Event.Terminal())

	str := Parse(`data: {"event":"error","status":"503","message":"down"}`)
	require.True(t, str.OK())
	assert.Equal(t, 503, str.Event.Status)

	junk := Parse(`data: {"event":"error","status":{"x":1},"message":"odd"}`)
	require.True(t, junk.OK())
	assert.Equal(t, 0, junk.Event.Status)
	assert.Equal(t, "odd", junk.Event.Message)
}

func TestParse_AgentThought(t *testing.T) {
	res := Parse(`data: {"event":"agent_thought","id":"th1","position":2,"thought":"look up","tool":"search","tool_input":"{}","observation":"found"}`)
	require.True(t, res.OK())

	ev := res.Event
	assert.Equal(t, KindAgentThought, ev.Kind)
	assert.Equal(t, "th1", ev.ThoughtID)
	assert.Equal(t, 2, ev.Position)
	assert.Equal(t, "look up", ev.Thought)
	assert.Equal(t, "search", ev.Tool)
	assert.Equal(t, "found", ev.Observation)
	assert.Empty(t, ev.Answer)
}

func TestParse_UnknownTagPassesThrough(t *testing.T) {
	line := `data: {"event":"workflow_started","workflow_run_id":"w1","conversation_id":"c9"}`
	res := Parse(line)
	require.True(t, res.OK())
	assert.Equal(t, KindOther, res.Event.Kind)
	assert.Equal(t, "workflow_started", res.Event.Name())
	assert.Equal(t, "c9", res.Event.ConversationID)
	assert.JSONEq(t, line[len(Marker):], string(res.Event.Raw))
}

func TestParse_MissingTag(t *testing.T) {
	res := Parse(`data: {"answer":"orphan"}`)
	require.True(t, res.OK())
	assert.Equal(t, KindOther, res.Event.Kind)
	assert.Equal(t, "other", res.Event.Name())
	assert.Empty(t, res.Event.Answer)
}

func TestParse_WrongFieldTypesIgnored(t *testing.T) {
	res := Parse(`data: {"event":"message","answer":42,"conversation_id":["a"]}`)
	require.True(t, res.OK())
	assert.Equal(t, KindMessage, res.Event.Kind)
	assert.Empty(t, res.Event.Answer)
	assert.Empty(t, res.Event.ConversationID)
}
