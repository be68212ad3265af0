// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatstream/internal/sse"
)

func msg(answer, conv, id string) sse.Event {
	return sse.Event{Kind: sse.KindMessage, Tag: sse.TagMessage, Answer: answer, ConversationID: conv, MessageID: id}
}

func end(conv, id string) sse.Event {
	return sse.Event{Kind: sse.KindMessageEnd, Tag: sse.TagMessageEnd, ConversationID: conv, MessageID: id}
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestSession_StartsIdle(t *testing.T) {
	s := New()
	assert.Equal(t, ModeIdle, s.Mode())
	assert.False(t, s.Fold(msg("ignored", "", "")))
	assert.Empty(t, s.Text())
}

func TestSession_HappyPath(t *testing.T) {
	s := New()
	var seen []string
	x := s.Start(func(ev sse.Event) { seen = append(seen, ev.Name()) })
	require.NotEmpty(t, x.ID())
	assert.Equal(t, ModeSending, s.Mode())

	assert.True(t, s.Fold(msg("Hel", "", "")))
	assert.Equal(t, ModeStreaming, s.Mode())
	assert.True(t, s.Fold(msg("lo", "", "")))
	assert.True(t, s.Fold(end("c1", "m1")))

	snap := s.Snapshot()
	assert.Equal(t, ModeComplete, snap.Mode)
	assert.Equal(t, "Hello", snap.Text)
	assert.Equal(t, "c1", snap.ConversationID)
	assert.Equal(t, "m1", snap.MessageID)
	assert.Nil(t, snap.Err)
	assert.False(t, snap.Implicit)
	assert.Equal(t, []string{"message", "message", "message_end"}, seen)
}

func TestSession_StartClearsPreviousExchange(t *testing.T) {
	s := New()
	s.Start(nil)
	s.Fold(msg("old", "c0", "m0"))
	s.Fold(sse.Event{Kind: sse.KindError, Message: "boom"})
	require.NotNil(t, s.Err())

	s.Start(nil)
	snap := s.Snapshot()
	assert.Equal(t, ModeSending, snap.Mode)
	assert.Empty(t, snap.Text)
	assert.Empty(t, snap.ConversationID)
	assert.Empty(t, snap.MessageID)
	assert.Nil(t, snap.Err)
}

func TestSession_Reset(t *testing.T) {
	s := New()
	s.Start(nil)
	s.Fold(msg("partial", "c1", ""))
	s.Reset()

	assert.Equal(t, ModeIdle, s.Mode())
	assert.Empty(t, s.Text())
	assert.Empty(t, s.ConversationID())
	assert.False(t, s.Fold(msg("late", "", "")))
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

func TestSession_FirstWriteWins(t *testing.T) {
	s := New()
	s.Start(nil)

	s.Fold(msg("", "A", ""))
	s.Fold(msg("", "B", ""))
	assert.Equal(t, "A", s.ConversationID())

	s.Fold(end("C", ""))
	assert.Equal(t, "C", s.ConversationID())
}

func TestSession_MessageIDFirstWriteWinsAcrossKinds(t *testing.T) {
	s := New()
	s.Start(nil)

	s.Fold(sse.Event{Kind: sse.KindAgentThought, MessageID: "m-thought"})
	s.Fold(msg("x", "", "m-msg"))
	s.Fold(sse.Event{Kind: sse.KindOther, Tag: "ping", MessageID: "m-other"})
	assert.Equal(t, "m-thought", s.MessageID())
}

func TestSession_MessageEndKeepsIdsWhenAbsent(t *testing.T) {
	s := New()
	s.Start(nil)
	s.Fold(msg("hi", "c1", "m1"))
	s.Fold(end("", ""))

	assert.Equal(t, "c1", s.ConversationID())
	assert.Equal(t, "m1", s.MessageID())
}

func TestSession_RoomIDFromEvent(t *testing.T) {
	s := New()
	s.Start(nil)
	s.Fold(sse.Event{Kind: sse.KindMessage, RoomID: "r1"})
	s.Fold(sse.Event{Kind: sse.KindMessage, RoomID: "r2"})
	assert.Equal(t, "r1", s.RoomID())
}

func TestSession_OutOfBandRoomWins(t *testing.T) {
	s := New()
	s.Start(nil)
	s.Fold(sse.Event{Kind: sse.KindMessage, RoomID: "from-event"})
	s.SetRoomID("from-header")
	s.Fold(sse.Event{Kind: sse.KindMessageEnd, RoomID: "later"})

	assert.Equal(t, "from-header", s.RoomID())
}

func TestSession_EmptyOutOfBandRoomIgnored(t *testing.T) {
	s := New()
	s.Start(nil)
	s.SetRoomID("")
	s.Fold(sse.Event{Kind: sse.KindMessage, RoomID: "r1"})
	assert.Equal(t, "r1", s.RoomID())
}

// =============================================================================
// TERMINAL EVENTS
// =============================================================================

func TestSession_ErrorCompletes(t *testing.T) {
	s := New()
	s.Start(nil)
	s.Fold(msg("partial", "", ""))
	s.Fold(sse.Event{Kind: sse.KindError, Status: 400, Code: "invalid_param", Message: "bad"})

	snap := s.Snapshot()
	assert.Equal(t, ModeComplete, snap.Mode)
	require.NotNil(t, snap.Err)
	assert.Equal(t, 400, snap.Err.Status)
	assert.Equal(t, "bad", snap.Err.Message)
	assert.Contains(t, snap.Err.Error(), "invalid_param")
}

func TestSession_ErrorFromSending(t *testing.T) {
	s := New()
	s.Start(nil)
	s.Fold(sse.Event{Kind: sse.KindError, Message: "rejected"})
	assert.Equal(t, ModeComplete, s.Mode())
	assert.Equal(t, "backend error: rejected", s.Err().Error())
}

func TestSession_FoldsAfterTerminalAreIgnored(t *testing.T) {
	s := New()
	calls := 0
	s.Start(func(sse.Event) { calls++ })

	s.Fold(msg("done", "c1", "m1"))
	s.Fold(end("c1", "m1"))
	require.Equal(t, 2, calls)

	assert.False(t, s.Fold(msg(" more", "c2", "m2")))
	assert.False(t, s.Fold(end("c3", "m3")))
	assert.False(t, s.Fold(sse.Event{Kind: sse.KindError, Message: "late"}))

	snap := s.Snapshot()
	assert.Equal(t, ModeComplete, snap.Mode)
	assert.Equal(t, "done", snap.Text)
	assert.Equal(t, "c1", snap.ConversationID)
	assert.Equal(t, "m1", snap.MessageID)
	assert.Nil(t, snap.Err)
	assert.Equal(t, 2, calls)
}

func TestSession_AgentThoughtNotAccumulated(t *testing.T) {
	s := New()
	var thoughts []string
	s.Start(func(ev sse.Event) {
		if ev.Kind == sse.KindAgentThought {
			thoughts = append(thoughts, ev.Thought)
		}
	})

	s.Fold(sse.Event{Kind: sse.KindAgentThought, Thought: "planning"})
	assert.Equal(t, ModeStreaming, s.Mode())
	s.Fold(msg("answer", "", ""))

	assert.Equal(t, "answer", s.Text())
	assert.Equal(t, []string{"planning"}, thoughts)
}

func TestSession_OtherEventForwardedWithoutTransition(t *testing.T) {
	s := New()
	var names []string
	s.Start(func(ev sse.Event) { names = append(names, ev.Name()) })

	assert.True(t, s.Fold(sse.Event{Kind: sse.KindOther, Tag: "workflow_started"}))
	assert.Equal(t, ModeSending, s.Mode())
	assert.Equal(t, []string{"workflow_started"}, names)
}

// =============================================================================
// END OF STREAM
// =============================================================================

func TestSession_FinishWithoutTerminal(t *testing.T) {
	s := New()
	s.Start(nil)
	s.Fold(msg("cut off", "c1", ""))

	snap := s.Finish()
	assert.Equal(t, ModeComplete, snap.Mode)
	assert.True(t, snap.Implicit)
	assert.Equal(t, "cut off", snap.Text)
	assert.Nil(t, snap.Err)
}

func TestSession_FinishWithNothingReceived(t *testing.T) {
	s := New()
	s.Start(nil)

	snap := s.Finish()
	assert.Equal(t, ModeComplete, snap.Mode)
	assert.True(t, snap.Implicit)
	assert.Empty(t, snap.Text)
	assert.Nil(t, snap.Err)
}

func TestSession_FinishAfterTerminalIsNotImplicit(t *testing.T) {
	s := New()
	s.Start(nil)
	s.Fold(end("c1", "m1"))

	snap := s.Finish()
	assert.False(t, snap.Implicit)
	assert.Equal(t, ModeComplete, snap.Mode)
	assert.False(t, snap.FinishedAt.IsZero())
}

// =============================================================================
// SUPERSEDED EXCHANGES
// =============================================================================

func TestExchange_StaleHandleIsInert(t *testing.T) {
	s := New()
	oldCalls := 0
	old := s.Start(func(sse.Event) { oldCalls++ })
	old.Fold(msg("old ", "c-old", ""))

	cur := s.Start(nil)
	assert.False(t, old.Current())
	assert.True(t, cur.Current())

	assert.False(t, old.Fold(msg("stale", "c-stale", "")))
	old.SetRoomID("r-stale")
	_, ok := old.Finish()
	assert.False(t, ok)

	snap, ok := cur.Snapshot()
	require.True(t, ok)
	assert.Equal(t, ModeSending, snap.Mode)
	assert.Empty(t, snap.Text)
	assert.Empty(t, snap.ConversationID)
	assert.Empty(t, snap.RoomID)
	assert.Equal(t, 1, oldCalls)
}

func TestExchange_CurrentHandleFolds(t *testing.T) {
	s := New()
	x := s.Start(nil)
	x.SetRoomID("r1")
	assert.True(t, x.Fold(msg("hi", "c1", "m1")))

	snap, ok := x.Finish()
	require.True(t, ok)
	assert.Equal(t, "hi", snap.Text)
	assert.Equal(t, "r1", snap.RoomID)
	assert.Equal(t, x.ID(), snap.ExchangeID)
}

func TestExchange_ResetInvalidatesHandle(t *testing.T) {
	s := New()
	x := s.Start(nil)
	s.Reset()
	assert.False(t, x.Current())
	assert.False(t, x.Fold(msg("late", "", "")))
}
