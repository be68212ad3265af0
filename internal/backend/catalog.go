// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
)

// Model is one AI model offered by the backend.
type Model struct {
	Provider  string `json:"provider"`
	ModelName string `json:"modelName"`
	Label     string `json:"label,omitempty"`
	Desc      string `json:"desc,omitempty"`
}

// Value is the provider-qualified name sent as a chat request's model.
func (m Model) Value() string {
	return qualifiedModel(m.Provider, m.ModelName)
}

// ModelUsage is today's call count for one model.
type ModelUsage struct {
	Provider       string `json:"provider"`
	ModelName      string `json:"modelName"`
	Desc           string `json:"desc,omitempty"`
	CurrentUsage   int    `json:"currentUsage"`
	MaxCalls       int    `json:"maxCalls"`
	RemainingCalls int    `json:"remainingCalls"`
}

// Value is the provider-qualified model name.
func (u ModelUsage) Value() string {
	return qualifiedModel(u.Provider, u.ModelName)
}

// Exhausted reports whether the model has no calls left today.
func (u ModelUsage) Exhausted() bool {
	return u.MaxCalls > 0 && u.RemainingCalls <= 0
}

func qualifiedModel(provider, name string) string {
	if provider == "" {
		return name
	}
	return provider + "/" + name
}

// ListModels returns the models the backend offers.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	var raw json.RawMessage
	if err := c.call(ctx, http.MethodGet, PathModels, nil, &raw); err != nil {
		return nil, err
	}
	return decodeList[Model](raw)
}

// ListAgents returns the agents the backend offers for agent mode.
func (c *Client) ListAgents(ctx context.Context) ([]Agent, error) {
	var raw json.RawMessage
	if err := c.call(ctx, http.MethodGet, PathAgents, nil, &raw); err != nil {
		return nil, err
	}
	return decodeList[Agent](raw)
}

// DailyUsage returns today's usage for every model the user can call.
func (c *Client) DailyUsage(ctx context.Context) ([]ModelUsage, error) {
	var raw json.RawMessage
	if err := c.call(ctx, http.MethodPost, PathDailyUsage, map[string]any{}, &raw); err != nil {
		return nil, err
	}
	return decodeList[ModelUsage](raw)
}

// decodeList accepts a bare array, an object holding the array under
// "data", or an object keyed by id. Keyed objects come back in key order.
func decodeList[T any](raw json.RawMessage) ([]T, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return []T{}, nil
	}

	var list []T
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	var nested struct {
		Data []T `json:"data"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil && nested.Data != nil {
		return nested.Data, nil
	}

	var keyed map[string]T
	if err := json.Unmarshal(raw, &keyed); err != nil {
		return nil, fmt.Errorf("failed to parse list response: %w", err)
	}
	keys := make([]string, 0, len(keyed))
	for k := range keyed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	list = make([]T, 0, len(keyed))
	for _, k := range keys {
		list = append(list, keyed[k])
	}
	return list, nil
}
