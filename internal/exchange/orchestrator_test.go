// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package exchange

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatstream/internal/backend"
	"github.com/jeranaias/chatstream/internal/session"
	"github.com/jeranaias/chatstream/internal/sse"
	"github.com/jeranaias/chatstream/internal/typing"
)

// =============================================================================
// FAKES
// =============================================================================

// chunkedBody returns one chunk per Read, then err (or EOF).
type chunkedBody struct {
	chunks [][]byte
	i      int
	err    error
	before func(i int)
	closed bool
}

func (b *chunkedBody) Read(p []byte) (int, error) {
	if b.i < len(b.chunks) {
		if b.before != nil {
			b.before(b.i)
		}
		n := copy(p, b.chunks[b.i])
		b.i++
		return n, nil
	}
	if b.err != nil {
		return 0, b.err
	}
	return 0, io.EOF
}

func (b *chunkedBody) Close() error {
	b.closed = true
	return nil
}

func chunks(parts ...string) [][]byte {
	out := make([][]byte, len(parts))
	for i, p := range parts {
		out[i] = []byte(p)
	}
	return out
}

type fakeOpener struct {
	body   *chunkedBody
	roomID string
	err    error
	calls  int
}

func (f *fakeOpener) Open(ctx context.Context, req backend.Request) (*backend.StreamResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &backend.StreamResponse{Body: f.body, Status: http.StatusOK, RoomID: f.roomID}, nil
}

// eventLog records handler calls.
type eventLog struct {
	mu     sync.Mutex
	events []sse.Event
}

func (l *eventLog) handle(ev sse.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.events))
	for i, ev := range l.events {
		out[i] = ev.Name()
	}
	return out
}

func chatReq() backend.Request {
	return backend.Request{Mode: backend.ModeChat, Query: "hi", Model: "m", Provider: "p"}
}

func fastAnimator() *typing.Animator {
	return typing.NewAnimator(typing.Config{
		Base: time.Millisecond, Floor: time.Millisecond,
		Medium: 200, Long: 500, VeryLong: 1000,
	})
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// =============================================================================
// END TO END OVER HTTP
// =============================================================================

func newStreamServer(t *testing.T, handler http.HandlerFunc) *backend.Client {
	t.Helper()
	r := mux.NewRouter()
	r.HandleFunc(backend.PathChatMessages, handler).Methods(http.MethodPost)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return backend.NewClient(srv.URL, "tok")
}

func TestRun_StreamsOverHTTP(t *testing.T) {
	client := newStreamServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		_, _ = io.WriteString(w, "data: {\"event\":\"message\",\"answer\":\"Hi\"}\n")
		flusher.Flush()
		_, _ = io.WriteString(w, "data: {\"event\":\"message_end\",\"conversation_id\":\"c1\",\"message_id\":\"m1\"}\n\n")
		flusher.Flush()
	})

	s := session.New()
	anim := fastAnimator()
	orch := New(client, s, WithAnimator(anim, nil))
	log := &eventLog{}

	res, err := orch.Run(testCtx(t), chatReq(), log.handle)
	require.NoError(t, err)

	assert.Equal(t, []string{"message", "message_end"}, log.names())
	assert.Equal(t, "Hi", log.events[0].Answer)
	assert.Equal(t, "c1", res.ConversationID)
	assert.Equal(t, "m1", res.MessageID)
	assert.Equal(t, "Hi", res.Text)
	assert.False(t, res.Implicit)
	assert.Equal(t, session.ModeComplete, s.Mode())

	require.NotNil(t, res.Playback)
	shown, err := res.Playback.Wait(testCtx(t))
	require.NoError(t, err)
	assert.Equal(t, "Hi", shown)
	assert.Equal(t, "Hi", anim.Displayed())
}

func TestRun_TransportFailureOverHTTP(t *testing.T) {
	client := newStreamServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"message":"boom"}`)
	})

	s := session.New()
	anim := fastAnimator()
	orch := New(client, s, WithAnimator(anim, nil))
	log := &eventLog{}

	res, err := orch.Run(testCtx(t), chatReq(), log.handle)
	assert.Nil(t, res)

	var apiErr *backend.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 500, apiErr.Status)
	assert.Equal(t, "boom", apiErr.Message)

	require.Equal(t, []string{"error"}, log.names())
	assert.Equal(t, 500, log.events[0].Status)
	assert.Equal(t, "boom", log.events[0].Message)
	assert.JSONEq(t, `{"event":"error","status":500,"message":"boom"}`, string(log.events[0].Raw))

	assert.Equal(t, session.ModeComplete, s.Mode())
	require.NotNil(t, s.Err())
	assert.Equal(t, 500, s.Err().Status)
	assert.False(t, anim.Active())
	assert.Empty(t, anim.Displayed())
}

func TestRun_HeaderRoomWinsOverEvent(t *testing.T) {
	client := newStreamServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(backend.HeaderRoomID, "room-header")
		_, _ = io.WriteString(w, "data: {\"event\":\"message\",\"answer\":\"x\",\"room_id\":\"room-event\"}\n\n"+
			"data: {\"event\":\"message_end\"}\n\n")
	})

	res, err := New(client, session.New()).Run(testCtx(t), chatReq(), nil)
	require.NoError(t, err)
	assert.Equal(t, "room-header", res.RoomID)
	assert.Nil(t, res.Playback)
}

// =============================================================================
// STREAM HANDLING
// =============================================================================

func TestRun_EventSplitAcrossChunks(t *testing.T) {
	full := "data: {\"event\":\"message\",\"answer\":\"héllo\"}\n\ndata: {\"event\":\"message_end\",\"conversation_id\":\"c\"}\n\n"
	accent := strings.Index(full, "é")
	op := &fakeOpener{body: &chunkedBody{chunks: chunks(full[:10], full[10:accent+1], full[accent+1:])}}

	res, err := New(op, session.New()).Run(testCtx(t), chatReq(), nil)
	require.NoError(t, err)
	assert.Equal(t, "héllo", res.Text)
	assert.Equal(t, "c", res.ConversationID)
	assert.True(t, op.body.closed)
}

func TestRun_StopsAtTerminalEvent(t *testing.T) {
	op := &fakeOpener{body: &chunkedBody{chunks: chunks(
		"data: {\"event\":\"message\",\"answer\":\"kept\"}\n",
		"data: {\"event\":\"message_end\",\"message_id\":\"m1\"}\ndata: {\"event\":\"message\",\"answer\":\" same chunk\"}\n",
		"data: {\"event\":\"message\",\"answer\":\" later chunk\"}\n",
	)}}
	log := &eventLog{}

	res, err := New(op, session.New()).Run(testCtx(t), chatReq(), log.handle)
	require.NoError(t, err)
	assert.Equal(t, "kept", res.Text)
	assert.Equal(t, []string{"message", "message_end"}, log.names())
	assert.Equal(t, 2, op.body.i, "chunks after the terminal event should not be read")
}

func TestRun_SkipsNoiseAndMalformedRecords(t *testing.T) {
	op := &fakeOpener{body: &chunkedBody{chunks: chunks(
		": keep-alive\n\n",
		"data: {not json}\n",
		"event: message\n",
		"data: {\"event\":\"agent_thought\",\"thought\":\"hmm\"}\n",
		"data: {\"event\":\"agent_message\",\"answer\":\"ok\"}\n",
		"data: {\"event\":\"tts_message\",\"audio\":\"...\"}\n",
		"data: {\"event\":\"message_end\"}\n",
	)}}
	log := &eventLog{}

	res, err := New(op, session.New()).Run(testCtx(t), chatReq(), log.handle)
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Text)
	assert.Equal(t, []string{"agent_thought", "agent_message", "tts_message", "message_end"}, log.names())
}

func TestRun_ProtocolErrorSkipsReveal(t *testing.T) {
	op := &fakeOpener{body: &chunkedBody{chunks: chunks(
		"data: {\"event\":\"message\",\"answer\":\"partial\",\"conversation_id\":\"c1\"}\n",
		"data: {\"event\":\"error\",\"status\":400,\"code\":\"quota\",\"message\":\"limit reached\"}\n",
	)}}
	anim := fastAnimator()

	res, err := New(op, session.New(), WithAnimator(anim, nil)).Run(testCtx(t), chatReq(), nil)

	var perr *session.ProtocolError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 400, perr.Status)
	assert.Equal(t, "limit reached", perr.Message)

	require.NotNil(t, res)
	assert.Equal(t, "c1", res.ConversationID)
	assert.Nil(t, res.Playback)
	assert.False(t, anim.Active())
}

func TestRun_ImplicitCompletionWithText(t *testing.T) {
	op := &fakeOpener{body: &chunkedBody{chunks: chunks(
		"data: {\"event\":\"message\",\"answer\":\"no end\"}\n",
		"data: {\"event\":\"message\",\"answer\":\" marker\"}\ndata: trailing-without-newline",
	)}}

	res, err := New(op, session.New(), WithAnimator(fastAnimator(), nil)).Run(testCtx(t), chatReq(), nil)
	require.NoError(t, err)
	assert.True(t, res.Implicit)
	assert.Equal(t, "no end marker", res.Text)
	require.NotNil(t, res.Playback)
	_, err = res.Playback.Wait(testCtx(t))
	assert.NoError(t, err)
}

func TestRun_EmptyStreamCompletesSilently(t *testing.T) {
	op := &fakeOpener{body: &chunkedBody{}}
	s := session.New()
	log := &eventLog{}

	res, err := New(op, s, WithAnimator(fastAnimator(), nil)).Run(testCtx(t), chatReq(), log.handle)
	require.NoError(t, err)
	assert.True(t, res.Implicit)
	assert.Empty(t, res.Text)
	assert.Nil(t, res.Playback)
	assert.Empty(t, log.names())
	assert.Equal(t, session.ModeComplete, s.Mode())
	assert.Nil(t, s.Err())
}

func TestRun_ReadFailureMidStream(t *testing.T) {
	readErr := errors.New("connection reset")
	op := &fakeOpener{body: &chunkedBody{
		chunks: chunks("data: {\"event\":\"message\",\"answer\":\"half\"}\n"),
		err:    readErr,
	}}
	log := &eventLog{}
	anim := fastAnimator()

	res, err := New(op, session.New(), WithAnimator(anim, nil)).Run(testCtx(t), chatReq(), log.handle)
	assert.Nil(t, res)

	var serr *StreamError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "half", serr.Partial)
	assert.ErrorIs(t, err, readErr)
	assert.Equal(t, []string{"message", "error"}, log.names())
	assert.False(t, anim.Active())
}

func TestRun_ConnectFailure(t *testing.T) {
	op := &fakeOpener{err: errors.New("dial tcp: refused")}
	log := &eventLog{}

	_, err := New(op, session.New()).Run(testCtx(t), chatReq(), log.handle)
	require.Error(t, err)
	require.Equal(t, []string{"error"}, log.names())
	assert.Equal(t, 0, log.events[0].Status)
	assert.Contains(t, log.events[0].Message, "refused")
}

// =============================================================================
// SUPERSEDED EXCHANGES
// =============================================================================

func TestRun_SupersededMidStream(t *testing.T) {
	s := session.New()
	body := &chunkedBody{chunks: chunks(
		"data: {\"event\":\"message\",\"answer\":\"old\"}\n",
		"data: {\"event\":\"message\",\"answer\":\" stale\"}\n",
	)}
	body.before = func(i int) {
		if i == 1 {
			s.Start(nil)
		}
	}
	log := &eventLog{}

	_, err := New(&fakeOpener{body: body}, s).Run(testCtx(t), chatReq(), log.handle)
	assert.ErrorIs(t, err, ErrSuperseded)
	assert.Equal(t, []string{"message"}, log.names())
	assert.Empty(t, s.Text())
	assert.Equal(t, session.ModeSending, s.Mode())
}

func TestRun_NewExchangeCancelsReveal(t *testing.T) {
	slow := typing.NewAnimator(typing.Config{
		Base: 50 * time.Millisecond, Floor: 50 * time.Millisecond,
		Medium: 200, Long: 500, VeryLong: 1000,
	})
	s := session.New()
	orch := New(&fakeOpener{body: &chunkedBody{chunks: chunks("data: {\"event\":\"message\",\"answer\":\"first answer\"}\n")}}, s,
		WithAnimator(slow, nil))

	first, err := orch.Run(testCtx(t), chatReq(), nil)
	require.NoError(t, err)
	require.NotNil(t, first.Playback)

	orch.opener = &fakeOpener{err: &backend.APIError{Status: 503, Message: "busy"}}
	_, err = orch.Run(testCtx(t), chatReq(), nil)
	require.Error(t, err)

	_, err = first.Playback.Wait(testCtx(t))
	assert.ErrorIs(t, err, typing.ErrCancelled)
}

func TestClear(t *testing.T) {
	s := session.New()
	orch := New(&fakeOpener{body: &chunkedBody{chunks: chunks("data: {\"event\":\"message\",\"answer\":\"x\"}\n")}}, s)
	_, err := orch.Run(testCtx(t), chatReq(), nil)
	require.NoError(t, err)

	orch.Clear()
	assert.Equal(t, session.ModeIdle, s.Mode())
	assert.Empty(t, s.Text())
}
