// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// conversation.go - One or more exchanges sharing a session, renderer and
// history store.

package cli

import (
	"context"
	"errors"
	"time"

	"github.com/jeranaias/chatstream/internal/backend"
	"github.com/jeranaias/chatstream/internal/exchange"
	"github.com/jeranaias/chatstream/internal/session"
	"github.com/jeranaias/chatstream/internal/storage"
	"github.com/jeranaias/chatstream/internal/typing"
)

type conversation struct {
	app        *app
	client     *backend.Client
	orch       *exchange.Orchestrator
	render     *renderer
	store      *storage.HistoryStore
	transcript *session.Transcript
}

func (a *app) newConversation(client *backend.Client, markdown bool) *conversation {
	r := &renderer{
		out:      a.out,
		errOut:   a.errOut,
		animated: a.animate(markdown),
		markdown: markdown && isTerminal(a.out),
		thoughts: !a.flags.JSON,
	}

	opts := []exchange.Option{exchange.WithLogger(a.logger)}
	if r.animated {
		opts = append(opts, exchange.WithAnimator(typing.NewAnimator(a.typingConfig()), r.onStep()))
	}

	return &conversation{
		app:        a,
		client:     client,
		orch:       exchange.New(client, session.New(), opts...),
		render:     r,
		store:      a.history(),
		transcript: session.NewTranscript(0),
	}
}

// send runs one exchange, shows it and records it.
func (c *conversation) send(ctx context.Context, command string, req backend.Request) (*exchange.Result, error) {
	c.render.mu.Lock()
	c.render.shown = 0
	c.render.mu.Unlock()

	started := c.app.now()
	c.transcript.AppendUser(req.Query)

	res, err := c.orch.Run(ctx, req, c.render.event)

	if c.app.flags.JSON {
		var resp *JSONResponse
		if err != nil {
			resp = NewJSONErrorResponse(command, err, newExchangeJSON(res, err))
		} else {
			resp = NewJSONResponse(command, newExchangeJSON(res, nil))
		}
		if perr := resp.Print(c.app.out); perr != nil {
			return res, perr
		}
		err = reported(err)
	} else {
		c.render.finish(ctx, res, err)
	}

	answer := answerText(res, err)
	if answer != "" || err != nil {
		c.transcript.AppendAssistant(answer, err != nil)
	}
	c.record(ctx, req, res, err, c.app.now().Sub(started))
	return res, err
}

// record stores the exchange in the local history. Failures are logged
// and otherwise ignored.
func (c *conversation) record(ctx context.Context, req backend.Request, res *exchange.Result, runErr error, elapsed time.Duration) {
	if c.store == nil {
		return
	}
	e := storage.Entry{
		Mode:       string(req.Mode),
		Query:      req.Query,
		RoomID:     req.RoomID,
		Answer:     answerText(res, runErr),
		DurationMs: elapsed.Milliseconds(),
	}
	if res != nil {
		e.RoomID = res.RoomID
		e.ConversationID = res.ConversationID
		e.MessageID = res.MessageID
		e.Implicit = res.Implicit
		e.DurationMs = res.Duration.Milliseconds()
	}
	if runErr != nil {
		e.Error = runErr.Error()
	}

	// The exchange context may already be cancelled by an interrupt.
	if _, err := c.store.Record(context.WithoutCancel(ctx), e); err != nil {
		c.app.logger.Warn().Err(err).Msg("failed to record history")
	}
}

// clear abandons the current exchange and forgets the transcript.
func (c *conversation) clear() {
	c.orch.Clear()
	c.transcript.Clear()
}

func (c *conversation) close() {
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			c.app.logger.Warn().Err(err).Msg("failed to close history")
		}
	}
}

func answerText(res *exchange.Result, err error) string {
	if res != nil {
		return res.Text
	}
	var serr *exchange.StreamError
	if errors.As(err, &serr) {
		return serr.Partial
	}
	return ""
}
