// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"strconv"
	"strings"

	"github.com/jeranaias/chatstream/internal/util"
)

// FormatEntries renders entries as a fixed-width table for terminals.
func FormatEntries(entries []Entry) string {
	if len(entries) == 0 {
		return "No history found."
	}

	var sb strings.Builder
	sb.WriteString(util.Pad("ID", 8) + " " + util.Pad("When", 16) + " " +
		util.Pad("Room", 10) + " " + util.Pad("Time", 7) + " Query\n")
	sb.WriteString(strings.Repeat("-", 72) + "\n")

	for _, e := range entries {
		query := util.Preview(e.Query, 30)
		if e.Failed() {
			query = "[error] " + query
		}
		sb.WriteString(util.Pad(shortID(e.ID), 8) + " " +
			util.Pad(e.CreatedAt.Format("2006-01-02 15:04"), 16) + " " +
			util.Pad(e.RoomID, 10) + " " +
			util.Pad(formatDuration(e.DurationMs), 7) + " " +
			query + "\n")
	}
	return sb.String()
}

// shortID keeps the leading characters of an id, which are enough to tell
// uuids apart in a listing.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatDuration(ms int64) string {
	if ms < 1000 {
		return strconv.FormatInt(ms, 10) + "ms"
	}
	return strconv.FormatFloat(float64(ms)/1000, 'f', 1, 64) + "s"
}
