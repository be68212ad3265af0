// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/jeranaias/chatstream/internal/storage"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter writes a standalone page with embedded CSS. Answers are
// converted from Markdown; raw HTML inside them is dropped.
type HTMLExporter struct {
	options *Options
	md      goldmark.Markdown
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{
		options: opts,
		md:      goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// Export converts a transcript to HTML.
func (e *HTMLExporter) Export(t *Transcript) ([]byte, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}

	theme := e.options.Theme
	if theme != "light" {
		theme = "dark"
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&sb, "    <title>%s</title>\n", html.EscapeString(t.Title))
	sb.WriteString("    <meta name=\"generator\" content=\"chatstream\">\n")
	fmt.Fprintf(&sb, "    <meta name=\"date\" content=\"%s\">\n", t.CreatedAt.Format(time.RFC3339))
	sb.WriteString(css)
	sb.WriteString("</head>\n")
	fmt.Fprintf(&sb, "<body class=\"%s-theme\">\n<div class=\"container\">\n", theme)

	if e.options.IncludeMetadata {
		e.writeHeader(&sb, t)
	}

	sb.WriteString("<main class=\"conversation\">\n")
	for _, ex := range t.Exchanges {
		if err := e.writeExchange(&sb, ex); err != nil {
			return nil, err
		}
	}
	sb.WriteString("</main>\n")

	fmt.Fprintf(&sb, "<footer class=\"footer\">Exported from chatstream on %s</footer>\n",
		e.options.clock().Format("January 2, 2006 at 3:04 PM"))
	sb.WriteString("</div>\n</body>\n</html>\n")

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

func (e *HTMLExporter) writeHeader(sb *strings.Builder, t *Transcript) {
	sb.WriteString("<header class=\"header\">\n")
	fmt.Fprintf(sb, "    <h1>%s</h1>\n", html.EscapeString(t.Title))
	sb.WriteString("    <div class=\"metadata\">\n")
	if t.RoomID != "" {
		fmt.Fprintf(sb, "        <span class=\"meta-item\"><strong>Room:</strong> %s</span>\n", html.EscapeString(t.RoomID))
	}
	fmt.Fprintf(sb, "        <span class=\"meta-item\"><strong>Created:</strong> %s</span>\n", formatTimestamp(t.CreatedAt))
	fmt.Fprintf(sb, "        <span class=\"meta-item\"><strong>Exchanges:</strong> %d</span>\n", len(t.Exchanges))
	sb.WriteString("    </div>\n</header>\n")
}

func (e *HTMLExporter) writeExchange(sb *strings.Builder, ex storage.Entry) error {
	stamp := ""
	if e.options.IncludeTimestamps {
		stamp = fmt.Sprintf("<span class=\"timestamp\">%s</span>", formatShortTimestamp(ex.CreatedAt))
	}

	sb.WriteString("<div class=\"message user-message\">\n")
	fmt.Fprintf(sb, "    <div class=\"message-header\"><span class=\"role-label\">[User]</span>%s</div>\n", stamp)
	fmt.Fprintf(sb, "    <div class=\"message-content\"><p>%s</p></div>\n",
		strings.ReplaceAll(html.EscapeString(strings.TrimSpace(ex.Query)), "\n", "<br>\n"))
	sb.WriteString("</div>\n")

	sb.WriteString("<div class=\"message assistant-message\">\n")
	fmt.Fprintf(sb, "    <div class=\"message-header\"><span class=\"role-label\">%s</span></div>\n", roleLabel(ex))
	sb.WriteString("    <div class=\"message-content\">\n")
	if ex.Answer != "" {
		var buf bytes.Buffer
		if err := e.md.Convert([]byte(ex.Answer), &buf); err != nil {
			return fmt.Errorf("render answer %s: %w", ex.ID, err)
		}
		sb.Write(buf.Bytes())
	}
	if ex.Failed() {
		fmt.Fprintf(sb, "<p class=\"error\">Error: %s</p>\n", html.EscapeString(ex.Error))
	}
	sb.WriteString("    </div>\n")
	if e.options.IncludeMetadata && ex.DurationMs > 0 {
		fmt.Fprintf(sb, "    <div class=\"message-stats\"><span class=\"stat\">Time: %s</span></div>\n", formatDuration(ex.DurationMs))
	}
	sb.WriteString("</div>\n")
	return nil
}

// =============================================================================
// EMBEDDED CSS
// =============================================================================

const css = `    <style>
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; line-height: 1.6; }
        .dark-theme { --bg: #1e1e2e; --fg: #cdd6f4; --muted: #7f849c; --card: #313244; --accent: #89b4fa; --user: #45475a; --err: #f38ba8; }
        .light-theme { --bg: #eff1f5; --fg: #4c4f69; --muted: #8c8fa1; --card: #ffffff; --accent: #1e66f5; --user: #dce0e8; --err: #d20f39; }
        body { background: var(--bg); color: var(--fg); }
        .container { max-width: 900px; margin: 0 auto; padding: 2rem 1rem; }
        .header { margin-bottom: 2rem; border-bottom: 1px solid var(--muted); padding-bottom: 1rem; }
        .header h1 { font-size: 1.6rem; margin-bottom: 0.5rem; }
        .metadata { display: flex; flex-wrap: wrap; gap: 1rem; color: var(--muted); font-size: 0.9rem; }
        .message { background: var(--card); border-radius: 8px; padding: 1rem 1.25rem; margin-bottom: 1rem; }
        .user-message { background: var(--user); }
        .message-header { display: flex; justify-content: space-between; margin-bottom: 0.5rem; }
        .role-label { font-weight: 600; color: var(--accent); }
        .timestamp, .message-stats { color: var(--muted); font-size: 0.8rem; }
        .message-content p { margin-bottom: 0.75rem; }
        .message-content pre { background: var(--bg); padding: 0.75rem; border-radius: 6px; overflow-x: auto; margin-bottom: 0.75rem; }
        .message-content code { font-family: "JetBrains Mono", Menlo, Consolas, monospace; font-size: 0.9em; }
        .message-content ul, .message-content ol { margin: 0 0 0.75rem 1.5rem; }
        .message-content table { border-collapse: collapse; margin-bottom: 0.75rem; }
        .message-content th, .message-content td { border: 1px solid var(--muted); padding: 0.25rem 0.5rem; }
        .error { color: var(--err); }
        .footer { margin-top: 2rem; text-align: center; color: var(--muted); font-size: 0.8rem; }
    </style>
`
