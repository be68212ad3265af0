// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/chatstream/internal/storage"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports transcripts as Markdown with YAML frontmatter.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a transcript to Markdown. Answers are already Markdown
// and are written as they were received.
func (e *MarkdownExporter) Export(t *Transcript) ([]byte, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}

	var sb strings.Builder

	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		fmt.Fprintf(&sb, "title: %s\n", escapeYAML(t.Title))
		if t.RoomID != "" {
			fmt.Fprintf(&sb, "room: %s\n", escapeYAML(t.RoomID))
		}
		fmt.Fprintf(&sb, "date: %s\n", t.CreatedAt.Format(time.RFC3339))
		fmt.Fprintf(&sb, "updated: %s\n", t.UpdatedAt.Format(time.RFC3339))
		fmt.Fprintf(&sb, "exchanges: %d\n", len(t.Exchanges))
		fmt.Fprintf(&sb, "exported: %s\n", e.options.clock().Format(time.RFC3339))
		sb.WriteString("generator: chatstream\n")
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(t.Title))

	for i, ex := range t.Exchanges {
		if e.options.IncludeTimestamps {
			fmt.Fprintf(&sb, "### [User] <sub>%s</sub>\n\n", formatShortTimestamp(ex.CreatedAt))
		} else {
			sb.WriteString("### [User]\n\n")
		}
		sb.WriteString(strings.TrimSpace(ex.Query))
		sb.WriteString("\n\n")

		sb.WriteString("### " + roleLabel(ex) + "\n\n")
		if answer := strings.TrimSpace(ex.Answer); answer != "" {
			sb.WriteString(answer)
			sb.WriteString("\n\n")
		}
		if ex.Failed() {
			fmt.Fprintf(&sb, "> **Error:** %s\n\n", ex.Error)
		}
		if e.options.IncludeMetadata && ex.DurationMs > 0 {
			fmt.Fprintf(&sb, "<sub>%s</sub>\n\n", formatDuration(ex.DurationMs))
		}

		if i < len(t.Exchanges)-1 {
			sb.WriteString("---\n\n")
		}
	}

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// roleLabel names the answering side of an exchange.
func roleLabel(e storage.Entry) string {
	if e.Mode == "agent" {
		return "[Agent]"
	}
	return "[Assistant]"
}

// =============================================================================
// ESCAPING HELPERS
// =============================================================================

// escapeMarkdown escapes characters that would break a heading.
func escapeMarkdown(s string) string {
	return strings.NewReplacer(
		"#", `\#`,
		"*", `\*`,
		"_", `\_`,
		"[", `\[`,
		"]", `\]`,
	).Replace(s)
}

// escapeYAML quotes a frontmatter value when it contains special characters.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		s = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`).Replace(s)
		return `"` + s + `"`
	}
	return s
}
