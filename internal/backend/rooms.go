// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Paging defaults used by the room endpoints.
const (
	DefaultRoomPageSize    = 20
	DefaultMessagePageSize = 50
)

// excludedAgentNames marks agent lists that must not be offered in a room.
// If any agent's name contains one of these, the whole list is dropped.
var excludedAgentNames = []string{"WEB Portal"}

// Room is one chat room as listed by the backend.
type Room struct {
	RoomID    string `json:"roomId"`
	Title     string `json:"title"`
	Status    string `json:"status,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// RoomPage is one page of rooms.
type RoomPage struct {
	Rooms      []Room `json:"rooms"`
	Page       int    `json:"page"`
	Size       int    `json:"size"`
	TotalCount int    `json:"totalCount"`
}

// RoomMessage is one stored turn of a room.
type RoomMessage struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId,omitempty"`
	Role           string `json:"role"`
	Content        string `json:"content"`
	CreatedAt      string `json:"createdAt,omitempty"`
}

// Agent is an agent attached to a room.
type Agent struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RoomDetail is a room with a page of its messages.
type RoomDetail struct {
	RoomID   string        `json:"roomId"`
	Title    string        `json:"title"`
	Messages []RoomMessage `json:"messages"`
	Agents   []Agent       `json:"agents"`
	Page     int           `json:"page"`
	Size     int           `json:"size"`
}

// envelope is the {success,status,data,message} wrapper most app
// endpoints use. Responses without it decode directly.
type envelope struct {
	Success *bool           `json:"success"`
	Status  int             `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// ListRooms returns one page of rooms. A size of 0 uses DefaultRoomPageSize.
// status filters by room status when non-empty.
func (c *Client) ListRooms(ctx context.Context, page, size int, status string) (*RoomPage, error) {
	if size <= 0 {
		size = DefaultRoomPageSize
	}
	body := map[string]any{"page": page, "size": size}
	if status != "" {
		body["status"] = status
	}

	var out RoomPage
	if err := c.call(ctx, http.MethodPost, PathRoomList, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RoomDetail returns a room and one page of its messages. A size of 0
// uses DefaultMessagePageSize.
func (c *Client) RoomDetail(ctx context.Context, roomID string, page, size int) (*RoomDetail, error) {
	if strings.TrimSpace(roomID) == "" {
		return nil, fmt.Errorf("%w: room id is required", ErrInvalidRequest)
	}
	if size <= 0 {
		size = DefaultMessagePageSize
	}

	var out RoomDetail
	body := map[string]any{"roomId": roomID, "page": page, "size": size}
	if err := c.call(ctx, http.MethodPost, PathRoomDetail, body, &out); err != nil {
		return nil, err
	}
	out.Agents = FilterAgents(out.Agents)
	return &out, nil
}

// CreateRoom creates a room, optionally titled.
func (c *Client) CreateRoom(ctx context.Context, title string) (*Room, error) {
	body := map[string]any{}
	if title != "" {
		body["title"] = title
	}
	var out Room
	if err := c.call(ctx, http.MethodPost, PathRoomCreate, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RenameRoom changes a room's title.
func (c *Client) RenameRoom(ctx context.Context, roomID, title string) error {
	if strings.TrimSpace(roomID) == "" || strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: room id and title are required", ErrInvalidRequest)
	}
	return c.call(ctx, http.MethodPost, PathRoomRename, map[string]any{"roomId": roomID, "title": title}, nil)
}

// DeleteRoom removes a room.
func (c *Client) DeleteRoom(ctx context.Context, roomID string) error {
	if strings.TrimSpace(roomID) == "" {
		return fmt.Errorf("%w: room id is required", ErrInvalidRequest)
	}
	return c.call(ctx, http.MethodPost, PathRoomDelete, map[string]any{"roomId": roomID}, nil)
}

// call performs a JSON call and unwraps the envelope if present.
// An envelope reporting success=false is an APIError even on HTTP 200.
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	var raw json.RawMessage
	if err := c.doJSON(ctx, method, path, body, &raw); err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Success != nil {
		if !*env.Success {
			status := env.Status
			if status == 0 {
				status = 200
			}
			return newAPIError(status, raw)
		}
		raw = env.Data
	}
	if out == nil || len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// FilterAgents returns agents unchanged unless one of them is an excluded
// portal agent, in which case the whole list is dropped.
func FilterAgents(agents []Agent) []Agent {
	for _, a := range agents {
		for _, excluded := range excludedAgentNames {
			if strings.Contains(a.Name, excluded) {
				return []Agent{}
			}
		}
	}
	return agents
}
