// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes recorded exchanges to shareable documents.
//
// A Transcript is a chronological run of history entries, usually one
// room. Exporters render it as Markdown, JSON or a standalone HTML page.
//
// # Key Types
//
//   - Transcript: the exchanges being exported
//   - Exporter: one output format
//   - Options: metadata, timestamps, theme and output directory
//
// # Supported Formats
//
//   - markdown: YAML frontmatter, answers kept as received
//   - json: the transcript as stored
//   - html: embedded CSS, answers rendered with goldmark
//
// # Usage
//
//	entries, _ := store.ByRoom(ctx, roomID)
//	t := export.FromEntries("", entries)
//	exp, err := export.ForFormat("html", export.DefaultOptions())
//	path, err := export.WriteFile(t, exp, opts)
package export
