// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging configures zerolog for chatstream.
//
// Diagnostics go to stderr (or a log file) so they never interleave with
// the answer text written to stdout.
//
// # Usage
//
//	logger := logging.New(os.Stderr, "debug", true)
//	logger.Info().Str("room_id", id).Msg("stream opened")
package logging
