// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// render.go - Writing exchanges to the terminal.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/chatstream/internal/exchange"
	"github.com/jeranaias/chatstream/internal/sse"
	"github.com/jeranaias/chatstream/internal/typing"
	"github.com/jeranaias/chatstream/internal/util"
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

var (
	markdownRenderer     *glamour.TermRenderer
	markdownRendererOnce sync.Once
)

// renderMarkdown renders content for the terminal, returning it unchanged
// if the renderer cannot be built or fails.
func renderMarkdown(content string) string {
	markdownRendererOnce.Do(func() {
		width := GetTerminalWidth()
		if width > MaxRenderWidth {
			width = MaxRenderWidth
		}
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width-4),
		)
		if err == nil {
			markdownRenderer = r
		}
	})
	if markdownRenderer == nil {
		return content
	}
	rendered, err := markdownRenderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// =============================================================================
// EXCHANGE RENDERER
// =============================================================================

// renderer writes one exchange. In animated mode the answer arrives through
// step; otherwise it is written whole by finish.
type renderer struct {
	out    io.Writer
	errOut io.Writer

	animated bool
	markdown bool
	// thoughts shows agent reasoning on errOut.
	thoughts bool

	mu    sync.Mutex
	shown int
}

// event receives every parsed event while the stream is read.
func (r *renderer) event(ev sse.Event) {
	if !r.thoughts || ev.Kind != sse.KindAgentThought {
		return
	}
	var parts []string
	if ev.Thought != "" {
		parts = append(parts, ev.Thought)
	}
	if ev.Tool != "" {
		parts = append(parts, "tool: "+ev.Tool)
	}
	if ev.Observation != "" {
		parts = append(parts, "observed: "+util.Preview(ev.Observation, 120))
	}
	if len(parts) == 0 {
		return
	}
	fmt.Fprintln(r.errOut, RenderConditional(DimStyle, "[thinking] "+strings.Join(parts, " | ")))
}

// step writes the newly revealed suffix. It runs on the playback goroutine.
func (r *renderer) step(revealed string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(revealed) > r.shown {
		io.WriteString(r.out, revealed[r.shown:])
		r.shown = len(revealed)
	}
}

// finish writes whatever the user has not seen yet. An interrupted reveal
// is cancelled and the rest of the answer printed at once.
func (r *renderer) finish(ctx context.Context, res *exchange.Result, runErr error) {
	var text string
	switch {
	case res != nil:
		text = res.Text
	default:
		var serr *exchange.StreamError
		if errors.As(runErr, &serr) {
			text = serr.Partial
		}
	}

	if res != nil && res.Playback != nil {
		if _, err := res.Playback.Wait(ctx); err != nil {
			// Cancel returning means step will not run again.
			res.Playback.Cancel()
		}
	}

	if text == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.shown > 0 || (res != nil && res.Playback != nil):
		if r.shown < len(text) {
			io.WriteString(r.out, text[r.shown:])
		}
	case r.markdown:
		io.WriteString(r.out, renderMarkdown(text))
	default:
		io.WriteString(r.out, text)
	}
	r.shown = len(text)
	if !strings.HasSuffix(text, "\n") {
		io.WriteString(r.out, "\n")
	}
}

// onStep returns the animator callback, or nil when not animating.
func (r *renderer) onStep() typing.StepFunc {
	if !r.animated {
		return nil
	}
	return r.step
}
