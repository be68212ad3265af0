// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// Backend endpoints.
const (
	PathChatMessages = "/api/chat/messages"
	PathAgentInvoke  = "/api/chat/agents/invoke"

	PathRoomList   = "/api/chat/rooms/list"
	PathRoomDetail = "/api/chat/rooms/detail"
	PathRoomCreate = "/api/chat/rooms/create"
	PathRoomRename = "/api/chat/rooms/update-title"
	PathRoomDelete = "/api/chat/rooms/delete"

	PathModels     = "/api/app/models"
	PathAgents     = "/api/app/agents"
	PathDailyUsage = "/api/model/daily-usage"
)

const (
	// HeaderRoomID carries the authoritative room id on a stream response.
	HeaderRoomID = "X-Room-Id"

	// HeaderRequestID tags each request for correlation in backend logs.
	HeaderRequestID = "X-Request-Id"

	// DefaultTimeout bounds non-streaming calls.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent identifies the client.
	DefaultUserAgent = "chatstream/0.1.0"

	// MaxErrorBodySize caps how much of an error body is read (1MB).
	MaxErrorBodySize = 1 << 20

	// MaxResponseSize caps non-streaming response bodies (10MB).
	MaxResponseSize = 10 << 20
)

var (
	// sharedStreamingClient has no overall timeout; streams are bounded by
	// the request context.
	sharedStreamingClient = &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
)

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to one backend with one bearer credential.
type Client struct {
	baseURL   string
	userAgent string

	mu    sync.RWMutex
	token string

	streamClient *http.Client
	apiClient    *http.Client

	logger zerolog.Logger
}

// NewClient creates a client for baseURL. token may be empty for backends
// that do not require one.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:      strings.TrimSuffix(strings.TrimSpace(baseURL), "/"),
		userAgent:    DefaultUserAgent,
		token:        strings.TrimSpace(token),
		streamClient: sharedStreamingClient,
		apiClient:    &http.Client{Timeout: DefaultTimeout},
		logger:       zerolog.Nop(),
	}
}

// WithHTTPClient replaces both the streaming and the API HTTP clients.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.streamClient = hc
	c.apiClient = hc
	return c
}

// WithTimeout sets the timeout of non-streaming calls.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.apiClient = &http.Client{
		Transport: c.apiClient.Transport,
		Timeout:   timeout,
	}
	return c
}

// WithUserAgent sets the User-Agent header.
func (c *Client) WithUserAgent(ua string) *Client {
	if ua != "" {
		c.userAgent = ua
	}
	return c
}

// WithLogger sets the request logger.
func (c *Client) WithLogger(l zerolog.Logger) *Client {
	c.logger = l
	return c
}

// BaseURL returns the backend address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetToken swaps the bearer credential, e.g. after it was rotated on disk.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = strings.TrimSpace(token)
}

// Token returns the current bearer credential.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// setHeaders sets the headers every backend request carries.
func (c *Client) setHeaders(req *http.Request, contentType string) string {
	requestID := uuid.NewString()
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(HeaderRequestID, requestID)
	return requestID
}

func (c *Client) url(path string) (string, error) {
	if c.baseURL == "" {
		return "", ErrNoBaseURL
	}
	return c.baseURL + path, nil
}

// =============================================================================
// JSON CALLS
// =============================================================================

// doJSON sends body as JSON to path and decodes a 2xx response into out.
// A nil body sends no request body.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	endpoint, err := c.url(path)
	if err != nil {
		return err
	}

	var payload io.Reader
	contentType := ""
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		payload = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, payload)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	requestID := c.setHeaders(req, contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.apiClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("backend call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readAPIError(resp)
	}

	data, err := readResponse(resp.Body, MaxResponseSize)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// readResponse reads at most limit bytes of body.
func readResponse(body io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", limit)
	}
	return data, nil
}

// readAPIError drains a non-2xx response into an APIError. A body too
// large to read is truncated rather than failing.
func readAPIError(resp *http.Response) *APIError {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, MaxErrorBodySize))
	return newAPIError(resp.StatusCode, data)
}
