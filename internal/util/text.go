// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// Ellipsis marks truncated text.
const Ellipsis = "..."

// Width returns the terminal column width of s (CJK and emoji count as two).
func Width(s string) int {
	return runewidth.StringWidth(s)
}

// Truncate cuts s to at most width columns, ending in Ellipsis when cut.
// Code points are never split.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	if width <= len(Ellipsis) {
		return runewidth.Truncate(s, width, "")
	}
	return runewidth.Truncate(s, width, Ellipsis)
}

// Pad right-pads s with spaces to width columns, truncating first if needed.
func Pad(s string, width int) string {
	return runewidth.FillRight(Truncate(s, width), width)
}

// Preview collapses whitespace in s and truncates it to width columns.
func Preview(s string, width int) string {
	return Truncate(strings.Join(strings.Fields(s), " "), width)
}
