// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/chatstream/internal/backend"
	"github.com/jeranaias/chatstream/internal/session"
	"github.com/jeranaias/chatstream/internal/sse"
	"github.com/jeranaias/chatstream/internal/typing"
)

// DefaultReadSize is the buffer size of one body read.
const DefaultReadSize = 32 * 1024

// Opener issues the streaming request. *backend.Client implements it.
type Opener interface {
	Open(ctx context.Context, req backend.Request) (*backend.StreamResponse, error)
}

// Result describes a completed exchange.
type Result struct {
	ExchangeID     string
	ConversationID string
	MessageID      string
	RoomID         string
	Text           string

	// Implicit is set when the stream ended without message_end or error.
	Implicit bool

	Duration time.Duration

	// Playback is the reveal of Text, nil when there is no animator or no
	// text to show.
	Playback *typing.Playback
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator drives exchanges on one session.
type Orchestrator struct {
	opener   Opener
	session  *session.Session
	animator *typing.Animator
	onStep   typing.StepFunc
	readSize int
	logger   zerolog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithAnimator reveals completed answers through anim, calling onStep
// after each character.
func WithAnimator(anim *typing.Animator, onStep typing.StepFunc) Option {
	return func(o *Orchestrator) {
		o.animator = anim
		o.onStep = onStep
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// WithReadSize sets the body read buffer size.
func WithReadSize(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.readSize = n
		}
	}
}

// New creates an orchestrator.
func New(opener Opener, s *session.Session, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		opener:   opener,
		session:  s,
		readSize: DefaultReadSize,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Session returns the session the orchestrator folds into.
func (o *Orchestrator) Session() *session.Session {
	return o.session
}

// Clear abandons any exchange in flight, stops the reveal and returns the
// session to idle.
func (o *Orchestrator) Clear() {
	if o.animator != nil {
		o.animator.Cancel()
	}
	o.session.Reset()
}

// Run performs one exchange. onEvent is called synchronously for every
// event, in arrival order.
//
// A non-2xx response or a failure to connect is reported to onEvent as an
// error event and returned without reading any stream. An error event
// inside the stream completes the exchange; Run then returns the Result
// together with the *session.ProtocolError. Only an exchange that
// completes without an error and with text starts a reveal.
func (o *Orchestrator) Run(ctx context.Context, req backend.Request, onEvent session.Handler) (*Result, error) {
	if o.animator != nil {
		o.animator.Cancel()
	}
	x := o.session.Start(onEvent)
	log := o.logger.With().Str("exchange_id", x.ID()).Str("mode", string(req.Mode)).Logger()

	resp, err := o.opener.Open(ctx, req)
	if err != nil {
		x.Fold(transportErrorEvent(err))
		log.Warn().Err(err).Msg("exchange request failed")
		return nil, err
	}
	defer resp.Close()

	x.SetRoomID(resp.RoomID)

	if err := o.pump(ctx, x, resp.Body, log); err != nil {
		return nil, err
	}

	snap, ok := x.Finish()
	if !ok {
		return nil, ErrSuperseded
	}

	res := &Result{
		ExchangeID:     snap.ExchangeID,
		ConversationID: snap.ConversationID,
		MessageID:      snap.MessageID,
		RoomID:         snap.RoomID,
		Text:           snap.Text,
		Implicit:       snap.Implicit,
		Duration:       snap.Duration(),
	}

	ev := log.Debug().
		Str("conversation_id", res.ConversationID).
		Str("message_id", res.MessageID).
		Str("room_id", res.RoomID).
		Int("text_bytes", len(res.Text)).
		Dur("elapsed", res.Duration)

	if snap.Err != nil {
		ev.Str("error", snap.Err.Error()).Msg("exchange failed")
		return res, snap.Err
	}

	if res.Implicit {
		if res.Text == "" {
			log.Warn().Msg("stream ended without a terminal event or any text")
		} else {
			log.Debug().Msg("stream ended without a terminal event")
		}
	}
	ev.Bool("implicit", res.Implicit).Msg("exchange complete")

	if o.animator != nil && res.Text != "" {
		res.Playback = o.animator.Play(context.WithoutCancel(ctx), res.Text, o.onStep)
	}
	return res, nil
}

// pump reads body until EOF or a terminal event and folds what it parses.
func (o *Orchestrator) pump(ctx context.Context, x *session.Exchange, body io.Reader, log zerolog.Logger) error {
	dec := sse.NewDecoder()
	defer func() {
		if dropped := dec.Close(); dropped > 0 {
			log.Debug().Int("bytes", dropped).Msg("discarded unterminated trailing line")
		}
	}()

	buf := make([]byte, o.readSize)
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			for _, line := range dec.Feed(buf[:n]) {
				res := sse.Parse(line)
				if !res.OK() {
					if res.Skip == sse.SkipMalformed {
						log.Trace().Str("line", line).Msg("skipped malformed record")
					}
					continue
				}
				if !x.Fold(res.Event) {
					if !x.Current() {
						return ErrSuperseded
					}
					return nil
				}
				if res.Event.Terminal() {
					return nil
				}
			}
		}

		switch {
		case rerr == nil:
		case errors.Is(rerr, io.EOF):
			return nil
		default:
			if !x.Current() {
				return ErrSuperseded
			}
			snap, _ := x.Snapshot()
			x.Fold(transportErrorEvent(rerr))
			log.Warn().Err(rerr).Int("partial_bytes", len(snap.Text)).Msg("stream read failed")
			if ctx.Err() != nil {
				rerr = errors.Join(ctx.Err(), rerr)
			}
			return &StreamError{Partial: snap.Text, Err: rerr}
		}
	}
}

// transportErrorEvent describes a transport failure as an error event so
// the caller's handler sees it the same way as one sent by the backend.
func transportErrorEvent(err error) sse.Event {
	ev := sse.Event{
		Kind:    sse.KindError,
		Tag:     sse.TagError,
		Message: err.Error(),
	}

	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		ev.Status = apiErr.Status
		ev.Code = apiErr.Code
		ev.Message = apiErr.Message
	}

	ev.Raw, _ = json.Marshal(struct {
		Event   string `json:"event"`
		Status  int    `json:"status,omitempty"`
		Code    string `json:"code,omitempty"`
		Message string `json:"message"`
	}{sse.TagError, ev.Status, ev.Code, ev.Message})
	return ev
}
