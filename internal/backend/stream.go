// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// StreamResponse is an open 2xx streaming response.
type StreamResponse struct {
	Body   io.ReadCloser
	Status int
	Header http.Header

	// RoomID is the X-Room-Id header, empty when absent.
	RoomID string

	// RequestID is the id sent in X-Request-Id.
	RequestID string
}

// Close closes the body.
func (r *StreamResponse) Close() error {
	return r.Body.Close()
}

// Open sends req and returns the streaming body. A non-2xx response is
// read in full and returned as an *APIError; the body is never handed to
// the caller in that case.
func (c *Client) Open(ctx context.Context, req Request) (*StreamResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	endpoint, err := c.url(req.endpoint())
	if err != nil {
		return nil, err
	}

	body, contentType, err := req.encode()
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	requestID := c.setHeaders(httpReq, contentType)
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")

	start := time.Now()
	resp, err := c.streamClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("stream request failed: %w", err)
	}

	c.logger.Debug().
		Str("mode", string(req.Mode)).
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Int("attachments", len(req.Attachments)).
		Dur("ttfb", time.Since(start)).
		Msg("stream opened")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, readAPIError(resp)
	}

	return &StreamResponse{
		Body:      resp.Body,
		Status:    resp.StatusCode,
		Header:    resp.Header,
		RoomID:    resp.Header.Get(HeaderRoomID),
		RequestID: requestID,
	}, nil
}
