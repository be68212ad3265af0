// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for chatstream.
//
// Supports TOML (preferred) and JSON configuration files, with defaults,
// environment variable overrides, validation and live reload.
//
// # Key Types
//
//   - Config: Main configuration structure
//   - BackendConfig: Service URL, credentials and timeouts
//   - ChatConfig: Default mode, model, provider, agent and room
//   - TypingConfig: Reveal animation pacing
//   - HistoryConfig: Local sqlite history
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (CHATSTREAM_*)
//   - ~/.chatstream/config.toml
//   - ~/.chatstream/config.json
//   - Built-in defaults
//
// CHATSTREAM_HOME replaces ~/.chatstream.
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Follow edits (for example a rotated token file):
//
//	go config.Watch(ctx, path, 0, func(cfg *config.Config, err error) {
//	    if err == nil {
//	        token, _ := cfg.ResolveToken()
//	        client.SetToken(token)
//	    }
//	})
package config
