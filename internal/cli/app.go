// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/chatstream/internal/backend"
	"github.com/jeranaias/chatstream/internal/config"
	"github.com/jeranaias/chatstream/internal/logging"
	"github.com/jeranaias/chatstream/internal/storage"
	"github.com/jeranaias/chatstream/internal/typing"
)

// tokenExpiryWarning is how close to expiry a credential triggers a notice.
const tokenExpiryWarning = 5 * time.Minute

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	ConfigPath string
	LogLevel   string
	URL        string
	Token      string
	JSON       bool
	NoTyping   bool
	NoHistory  bool
	Verbose    bool
}

// app carries everything a command needs once the configuration is loaded.
type app struct {
	flags globalFlags

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	cfg      *config.Config
	cfgPath  string
	logger   zerolog.Logger
	closeLog func() error

	now func() time.Time
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	return &app{
		in:       in,
		out:      out,
		errOut:   errOut,
		logger:   zerolog.Nop(),
		closeLog: func() error { return nil },
		now:      time.Now,
	}
}

// resolvePath decides which config file the command works on.
func (a *app) resolvePath() error {
	if a.flags.ConfigPath != "" {
		a.cfgPath = a.flags.ConfigPath
		return nil
	}
	path, err := config.ConfigPath()
	if err != nil {
		return err
	}
	a.cfgPath = path
	return nil
}

// load reads the configuration, applies flag overrides and sets up logging.
func (a *app) load() error {
	if err := a.resolvePath(); err != nil {
		return err
	}

	var (
		cfg *config.Config
		err error
	)
	if a.flags.ConfigPath != "" {
		if _, statErr := os.Stat(a.cfgPath); statErr == nil {
			cfg, err = config.LoadFrom(a.cfgPath)
		} else {
			cfg = config.Default()
		}
		if cfg != nil {
			cfg.ApplyEnvOverrides()
		}
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	if a.flags.URL != "" {
		cfg.Backend.URL = a.flags.URL
	}
	if a.flags.Token != "" {
		cfg.Backend.Token = a.flags.Token
		cfg.Backend.TokenFile = ""
	}
	if a.flags.LogLevel != "" {
		cfg.Log.Level = a.flags.LogLevel
	} else if a.flags.Verbose {
		cfg.Log.Level = "debug"
	}
	if a.flags.NoTyping {
		cfg.Typing.Enabled = false
	}
	if a.flags.NoHistory {
		cfg.History.Enabled = false
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	config.SetGlobal(cfg)

	if cfg.Log.File != "" {
		logger, closer, err := logging.Setup(cfg.Log.Level, false, cfg.Log.File)
		if err != nil {
			return err
		}
		a.logger, a.closeLog = logger, closer
	} else {
		a.logger = logging.New(a.errOut, cfg.Log.Level, cfg.Log.Pretty && isTerminal(a.errOut))
	}
	return nil
}

// client builds a backend client from the current configuration and warns
// about an expired credential.
func (a *app) client() (*backend.Client, error) {
	if a.cfg.Backend.URL == "" {
		return nil, backend.ErrNoBaseURL
	}
	token, err := a.cfg.ResolveToken()
	if err != nil {
		return nil, err
	}
	a.checkToken(token)

	c := backend.NewClient(a.cfg.Backend.URL, token).
		WithUserAgent(a.cfg.Backend.UserAgent).
		WithLogger(a.logger)
	if a.cfg.Backend.TimeoutSeconds > 0 {
		c = c.WithTimeout(time.Duration(a.cfg.Backend.TimeoutSeconds) * time.Second)
	}
	return c, nil
}

// checkToken prints a notice when a JWT credential has expired or is about
// to. Opaque tokens are not inspected.
func (a *app) checkToken(token string) {
	if token == "" {
		return
	}
	info, err := backend.InspectToken(token)
	if err != nil {
		if !errors.Is(err, backend.ErrOpaqueToken) {
			a.logger.Debug().Err(err).Msg("could not inspect credential")
		}
		return
	}
	now := a.now()
	switch {
	case info.Expired(now):
		fmt.Fprintln(a.errOut, RenderConditional(WarningStyle, fmt.Sprintf(
			"[WARN] credential expired at %s; the backend will likely reject it",
			info.ExpiresAt.Local().Format(time.RFC822))))
	case info.ExpiresWithin(now, tokenExpiryWarning):
		fmt.Fprintln(a.errOut, RenderConditional(DimStyle, fmt.Sprintf(
			"credential expires in %s", info.ExpiresAt.Sub(now).Round(time.Second))))
	}
}

// history opens the local history store, or returns nil when history is
// disabled or unavailable.
func (a *app) history() *storage.HistoryStore {
	if !a.cfg.History.Enabled {
		return nil
	}
	path, err := a.cfg.HistoryPath()
	if err != nil {
		a.logger.Warn().Err(err).Msg("history disabled")
		return nil
	}
	store, err := storage.Open(path, storage.WithMaxEntries(a.cfg.History.MaxEntries))
	if err != nil {
		a.logger.Warn().Err(err).Str("path", path).Msg("history disabled")
		return nil
	}
	return store
}

// typingConfig converts the configured pacing.
func (a *app) typingConfig() typing.Config {
	t := a.cfg.Typing
	return typing.Config{
		Base:     time.Duration(t.BaseMs) * time.Millisecond,
		Floor:    time.Duration(t.FloorMs) * time.Millisecond,
		Medium:   t.MediumChars,
		Long:     t.LongChars,
		VeryLong: t.VeryLongChars,
	}
}

// animate reports whether answers should be revealed character by character.
func (a *app) animate(markdown bool) bool {
	return a.cfg.Typing.Enabled && !a.flags.JSON && !markdown && isTerminal(a.out)
}

func (a *app) close() {
	if err := a.closeLog(); err != nil {
		fmt.Fprintf(a.errOut, "failed to close log: %v\n", err)
	}
}
