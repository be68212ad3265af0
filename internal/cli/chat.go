// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat REPL.
//
// Commands available in chat mode:
//
//	/help, /h           Show available commands
//	/clear, /c          Clear the session and transcript, start a new room
//	/room [id]          Show or switch the current room
//	/new                Start a new room on the next message
//	/rooms              List rooms on the backend
//	/agent [id]         Switch to agent mode (no id: back to chat mode)
//	/agents             List agents on the backend
//	/model [name]       Show or switch model
//	/models             List models and today's usage
//	/history            Show this session's transcript
//	/quit, /q           Exit
//
// Ctrl+C cancels the exchange in flight; at the prompt it exits.

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/chatstream/internal/backend"
	"github.com/jeranaias/chatstream/internal/config"
	"github.com/jeranaias/chatstream/internal/session"
	"github.com/jeranaias/chatstream/internal/util"
)

// inputHistoryFile holds REPL line history inside the config directory.
const inputHistoryFile = "chat_history"

// =============================================================================
// LINE INPUT
// =============================================================================

// lineReader abstracts the prompt so piped input works without a terminal.
type lineReader interface {
	ReadLine(prompt string) (string, error)
	Close() error
}

// linerReader provides line editing and persistent history on a terminal.
type linerReader struct {
	line        *liner.State
	historyFile string
}

func newLinerReader() *linerReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	r := &linerReader{line: line}
	if dir, err := config.EnsureConfigDir(); err == nil {
		r.historyFile = filepath.Join(dir, inputHistoryFile)
		if f, err := os.Open(r.historyFile); err == nil {
			r.line.ReadHistory(f)
			f.Close()
		}
	}
	return r
}

func (r *linerReader) ReadLine(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history with owner-only permissions and restores the terminal.
func (r *linerReader) Close() error {
	if r.historyFile != "" {
		if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			r.line.WriteHistory(f)
			f.Close()
		}
	}
	return r.line.Close()
}

// scanReader reads one line per message from a pipe.
type scanReader struct {
	sc *bufio.Scanner
}

func newScanReader(in io.Reader) *scanReader {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), MaxStdinQuery)
	return &scanReader{sc: sc}
}

func (r *scanReader) ReadLine(string) (string, error) {
	if r.sc.Scan() {
		return r.sc.Text(), nil
	}
	if err := r.sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (r *scanReader) Close() error { return nil }

// =============================================================================
// CHAT COMMAND
// =============================================================================

// chatState is what slash commands may change between turns.
type chatState struct {
	mode  backend.Mode
	flags exchangeFlags
	room  string
}

func (a *app) newChatCmd() *cobra.Command {
	var f exchangeFlags
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat",
		Long: `Start an interactive chat. Each message continues the room of the
previous answer. Type /help for commands.

When stdin is not a terminal, each input line is sent as one message.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runChat(cmd, f)
		},
	}
	f.register(cmd, true)
	return cmd
}

func (a *app) runChat(cmd *cobra.Command, f exchangeFlags) error {
	client, err := a.client()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	conv := a.newConversation(client, f.Markdown)
	defer conv.close()

	state := &chatState{mode: backend.ModeChat, flags: f}
	if firstNonEmpty(f.Agent) != "" || a.cfg.Chat.Mode == string(backend.ModeAgent) {
		state.mode = backend.ModeAgent
	}
	if !f.NewRoom {
		state.room = firstNonEmpty(f.Room, a.cfg.Chat.RoomID)
	}
	state.flags.Files = nil

	a.watchCredentials(ctx, client)

	var in lineReader
	interactive := isTerminal(a.in) && isTerminal(a.out)
	if interactive {
		in = newLinerReader()
		a.printWelcome(state)
	} else {
		in = newScanReader(a.in)
	}
	defer in.Close()

	turns := &turnCanceller{}
	stopSignals := turns.listen()
	defer stopSignals()

	var lastErr error
	for {
		input, err := in.ReadLine(RenderConditional(PromptStyle, "chatstream> "))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				if interactive {
					fmt.Fprintln(a.out)
					return nil
				}
				// Piped sessions report the last failure through the exit code.
				return reported(lastErr)
			}
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			cont, err := a.handleSlashCommand(ctx, input, state, conv)
			if err != nil {
				DisplayError(a.errOut, err)
			}
			if !cont {
				return nil
			}
			continue
		}
		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			return nil
		}

		lastErr = a.chatTurn(ctx, turns, state, conv, input)
		if lastErr != nil {
			DisplayError(a.errOut, lastErr)
		}
	}
}

// chatTurn sends one message and carries the room forward.
func (a *app) chatTurn(ctx context.Context, turns *turnCanceller, state *chatState, conv *conversation, input string) error {
	f := state.flags
	f.Room, f.NewRoom = state.room, state.room == ""
	req, err := a.buildRequest(state.mode, input, f)
	if err != nil {
		return err
	}

	turnCtx := turns.begin(ctx)
	defer turns.end()

	res, err := conv.send(turnCtx, "chat", req)
	if res != nil && res.RoomID != "" && res.RoomID != state.room {
		state.room = res.RoomID
		a.logger.Debug().Str("room_id", state.room).Msg("room assigned")
	}
	if errors.Is(err, context.Canceled) && ctx.Err() == nil {
		return errors.New("cancelled")
	}
	return err
}

// watchCredentials reloads the bearer token when the config file or the
// token file it names changes.
func (a *app) watchCredentials(ctx context.Context, client *backend.Client) {
	if a.cfgPath == "" {
		return
	}
	go func() {
		err := config.Watch(ctx, a.cfgPath, 0, func(cfg *config.Config, err error) {
			if err != nil {
				a.logger.Warn().Err(err).Msg("config reload failed")
				return
			}
			if a.flags.Token != "" {
				return
			}
			token, err := cfg.ResolveToken()
			if err != nil {
				a.logger.Warn().Err(err).Msg("credential reload failed")
				return
			}
			if token != client.Token() {
				client.SetToken(token)
				a.checkToken(token)
				a.logger.Info().Msg("credential reloaded")
			}
		})
		if err != nil {
			a.logger.Debug().Err(err).Msg("config watch unavailable")
		}
	}()
}

// =============================================================================
// CANCELLATION
// =============================================================================

// turnCanceller maps Ctrl+C to cancelling the exchange in flight.
type turnCanceller struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

func (t *turnCanceller) begin(ctx context.Context) context.Context {
	turnCtx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	t.cancel = cancel
	t.mu.Unlock()
	return turnCtx
}

func (t *turnCanceller) end() {
	t.mu.Lock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.mu.Unlock()
}

// listen routes interrupts to the current turn until the returned func is
// called.
func (t *turnCanceller) listen() func() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-sig:
				t.end()
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(sig)
		close(done)
	}
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand runs a /command. It returns false to leave the REPL.
func (a *app) handleSlashCommand(ctx context.Context, input string, state *chatState, conv *conversation) (bool, error) {
	parts := strings.Fields(input)
	command, args := strings.ToLower(parts[0]), parts[1:]

	switch command {
	case "/help", "/h", "/?", "/":
		a.printHelp()

	case "/quit", "/q", "/exit":
		return false, nil

	case "/clear", "/c":
		conv.clear()
		state.room = ""
		fmt.Fprintln(a.out, RenderConditional(DimStyle, "[session cleared]"))

	case "/new":
		state.room = ""
		fmt.Fprintln(a.out, RenderConditional(DimStyle, "[next message starts a new room]"))

	case "/room":
		if len(args) > 0 {
			state.room = args[0]
		}
		fmt.Fprintln(a.out, RenderField("room", firstNonEmpty(state.room, "(new)")))

	case "/rooms":
		page, err := conv.client.ListRooms(ctx, 0, 0, "")
		if err != nil {
			return true, err
		}
		fmt.Fprint(a.out, formatRooms(page.Rooms))

	case "/agent":
		if len(args) == 0 {
			state.mode, state.flags.Agent = backend.ModeChat, ""
			fmt.Fprintln(a.out, RenderField("mode", "chat"))
			break
		}
		state.mode, state.flags.Agent = backend.ModeAgent, args[0]
		fmt.Fprintln(a.out, RenderField("mode", "agent "+args[0]))

	case "/model", "/m":
		if len(args) > 0 {
			state.flags.Model = args[0]
		}
		fmt.Fprintln(a.out, RenderField("model", firstNonEmpty(state.flags.Model, a.cfg.Chat.Model, "(none)")))

	case "/agents":
		agents, err := conv.client.ListAgents(ctx)
		if err != nil {
			return true, err
		}
		fmt.Fprint(a.out, formatAgents(agents))

	case "/models":
		rows, err := conv.client.DailyUsage(ctx)
		if err != nil {
			return true, err
		}
		fmt.Fprint(a.out, formatUsage(rows))

	case "/history":
		a.printTranscript(conv.transcript)

	default:
		return true, &UsageError{Field: "command", Reason: command + " is not a command (type /help)"}
	}
	return true, nil
}

func (a *app) printWelcome(state *chatState) {
	fmt.Fprintln(a.out, RenderConditional(TitleStyle, "chatstream "+Version))
	fmt.Fprintln(a.out, RenderField("backend", a.cfg.Backend.URL))
	fmt.Fprintln(a.out, RenderField("mode", string(state.mode)))
	if state.room != "" {
		fmt.Fprintln(a.out, RenderField("room", state.room))
	}
	fmt.Fprintln(a.out, RenderConditional(DimStyle, "Type your message and press Enter. Commands: /help, /quit"))
	fmt.Fprintln(a.out)
}

func (a *app) printHelp() {
	commands := [][2]string{
		{"/help, /h", "Show this help"},
		{"/clear, /c", "Clear the session and start a new room"},
		{"/room [id]", "Show or switch the current room"},
		{"/new", "Start a new room on the next message"},
		{"/rooms", "List rooms"},
		{"/agent [id]", "Switch to an agent, or back to chat"},
		{"/agents", "List agents"},
		{"/model [name]", "Show or switch model"},
		{"/models", "List models and today's usage"},
		{"/history", "Show this session's transcript"},
		{"/quit, /q", "Exit"},
	}
	fmt.Fprintln(a.out)
	for _, c := range commands {
		fmt.Fprintf(a.out, "  %s %s\n", util.Pad(c[0], 16), RenderConditional(DimStyle, c[1]))
	}
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, RenderConditional(DimStyle, "Ctrl+C cancels the current answer, Ctrl+D exits"))
}

func (a *app) printTranscript(t *session.Transcript) {
	msgs := t.Messages()
	if len(msgs) == 0 {
		fmt.Fprintln(a.out, RenderConditional(DimStyle, "(no messages yet)"))
		return
	}
	for _, m := range msgs {
		stamp := m.Timestamp.Format("15:04:05")
		switch {
		case m.Role == session.RoleUser:
			fmt.Fprintf(a.out, "%s %s\n", stamp, RenderConditional(UserStyle, "> "+util.Preview(m.Content, 100)))
		case m.Failed:
			fmt.Fprintf(a.out, "%s %s\n", stamp, RenderConditional(ErrorStyle, "[failed] "+util.Preview(m.Content, 100)))
		default:
			fmt.Fprintf(a.out, "%s %s\n", stamp, util.Preview(m.Content, 100))
		}
	}
}
