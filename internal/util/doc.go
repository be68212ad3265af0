// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the chatstream packages.
//
// # Key Functions
//
// Display text:
//   - Truncate: cut to a display width with an ellipsis
//   - Pad: right-pad to a display width for table columns
//   - Preview: first line of a message, collapsed and truncated
//
// File Operations:
//   - AtomicWriteFile: Crash-safe file writing with fsync
//
// # Usage
//
//	row := util.Pad(room.Title, 30) + " " + util.Truncate(preview, 40)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
