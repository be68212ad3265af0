// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - Machine-readable output for --json.

package cli

import (
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/jeranaias/chatstream/internal/backend"
	"github.com/jeranaias/chatstream/internal/exchange"
	"github.com/jeranaias/chatstream/internal/session"
)

// JSONResponse is the envelope every command prints in --json mode.
type JSONResponse struct {
	Success   bool    `json:"success"`
	Status    int     `json:"status,omitempty"`
	Data      any     `json:"data"`
	Error     *string `json:"error"`
	Timestamp string  `json:"timestamp"`
	Command   string  `json:"command,omitempty"`
}

// NewJSONResponse creates a successful response.
func NewJSONResponse(command string, data any) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a failed response. Backend errors carry
// their HTTP status, stream errors the partial answer.
func NewJSONErrorResponse(command string, err error, data any) *JSONResponse {
	msg := err.Error()
	resp := &JSONResponse{
		Success:   false,
		Data:      data,
		Error:     &msg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}

	var (
		apiErr   *backend.APIError
		protoErr *session.ProtocolError
	)
	switch {
	case errors.As(err, &apiErr):
		f := apiErr.Failure()
		resp.Status, resp.Error = f.Status, &f.Message
	case errors.As(err, &protoErr):
		resp.Status, resp.Error = protoErr.Status, &protoErr.Message
	}
	return resp
}

// Print writes the response as indented JSON.
func (r *JSONResponse) Print(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// exchangeJSON is the data of ask/agent responses.
type exchangeJSON struct {
	ExchangeID     string `json:"exchange_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	MessageID      string `json:"message_id,omitempty"`
	RoomID         string `json:"room_id,omitempty"`
	Text           string `json:"text"`
	Implicit       bool   `json:"implicit,omitempty"`
	DurationMs     int64  `json:"duration_ms"`
}

func newExchangeJSON(res *exchange.Result, err error) *exchangeJSON {
	if res == nil {
		var serr *exchange.StreamError
		if errors.As(err, &serr) {
			return &exchangeJSON{Text: serr.Partial}
		}
		return nil
	}
	return &exchangeJSON{
		ExchangeID:     res.ExchangeID,
		ConversationID: res.ConversationID,
		MessageID:      res.MessageID,
		RoomID:         res.RoomID,
		Text:           res.Text,
		Implicit:       res.Implicit,
		DurationMs:     res.Duration.Milliseconds(),
	}
}
