// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - Single exchange commands.
//
// Examples:
//
//	chatstream ask "What is the capital of France?"
//	chatstream ask --room 8f2c... "And its population?"
//	chatstream ask -f report.pdf "Summarize this"
//	git diff | chatstream ask --markdown
//	chatstream agent --agent support-bot "Reset my password"

package cli

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jeranaias/chatstream/internal/backend"
)

// exchangeFlags are the per-request flags of ask, agent and chat.
type exchangeFlags struct {
	Model    string
	Provider string
	Agent    string
	Room     string
	NewRoom  bool
	Files    []string
	Markdown bool
}

func (f *exchangeFlags) register(cmd *cobra.Command, agent bool) {
	fl := cmd.Flags()
	fl.StringVarP(&f.Model, "model", "m", "", "model name (default from config)")
	fl.StringVarP(&f.Provider, "provider", "p", "", "model provider (default from config)")
	fl.StringVarP(&f.Room, "room", "r", "", "continue an existing room")
	fl.BoolVar(&f.NewRoom, "new", false, "start a new room even if one is configured")
	fl.StringArrayVarP(&f.Files, "file", "f", nil, "attach a file (repeatable, at most 3)")
	fl.BoolVar(&f.Markdown, "markdown", false, "render the answer as markdown")
	if agent {
		fl.StringVarP(&f.Agent, "agent", "a", "", "agent id (default from config)")
	}
}

func (a *app) newAskCmd() *cobra.Command {
	var f exchangeFlags
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question",
		Long: `Send one question and stream the answer to stdout.

With no arguments, or "-", the question is read from stdin.`,
		Example: `  chatstream ask "What is the capital of France?"
  cat notes.md | chatstream ask --markdown`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSingle(cmd, backend.ModeChat, args, f)
		},
	}
	f.register(cmd, false)
	return cmd
}

func (a *app) newAgentCmd() *cobra.Command {
	var f exchangeFlags
	cmd := &cobra.Command{
		Use:   "agent [question]",
		Short: "Invoke an agent with a single question",
		Long: `Send one question to a configured agent. Agent reasoning steps are
shown on stderr as they arrive; the answer goes to stdout.`,
		Example: `  chatstream agent --agent support-bot "Why did my build fail?"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSingle(cmd, backend.ModeAgent, args, f)
		},
	}
	f.register(cmd, true)
	return cmd
}

// runSingle performs one exchange for ask/agent. Ctrl+C cancels it.
func (a *app) runSingle(cmd *cobra.Command, mode backend.Mode, args []string, f exchangeFlags) error {
	query, err := a.readQuery(args)
	if err != nil {
		return err
	}
	req, err := a.buildRequest(mode, query, f)
	if err != nil {
		return err
	}
	client, err := a.client()
	if err != nil {
		return err
	}

	ctx, stop := runContext(cmd)
	defer stop()

	conv := a.newConversation(client, f.Markdown)
	defer conv.close()

	_, err = conv.send(ctx, cmd.Name(), req)
	return err
}

// readQuery joins the arguments, or reads stdin when there are none.
func (a *app) readQuery(args []string) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	if isTerminal(a.in) {
		return "", ErrMissingArgument("question", `chatstream ask "What is Go?"`)
	}
	q, err := readAll(a.in)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(q) == "" {
		return "", ErrMissingArgument("question", `echo "What is Go?" | chatstream ask`)
	}
	return q, nil
}

// buildRequest fills a request from flags, falling back to the config.
func (a *app) buildRequest(mode backend.Mode, query string, f exchangeFlags) (backend.Request, error) {
	chat := a.cfg.Chat
	req := backend.Request{
		Mode:     mode,
		Query:    query,
		Model:    firstNonEmpty(f.Model, chat.Model),
		Provider: firstNonEmpty(f.Provider, chat.Provider),
	}
	if mode == backend.ModeAgent {
		req.AgentID = firstNonEmpty(f.Agent, chat.AgentID)
	}
	if !f.NewRoom {
		req.RoomID = firstNonEmpty(f.Room, chat.RoomID)
	}

	if len(f.Files) > backend.MaxAttachments {
		return req, &UsageError{Field: "--file", Reason: "at most 3 files may be attached"}
	}
	for _, path := range f.Files {
		att, err := backend.LoadAttachment(path)
		if err != nil {
			return req, err
		}
		req.Attachments = append(req.Attachments, att)
	}

	if err := req.Validate(); err != nil {
		return req, err
	}
	return req, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// runContext is a helper for subcommands that do a single backend call.
func runContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}
