// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"github.com/jeranaias/chatstream/internal/util"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// ConfigDirName is the directory under the user's home holding all state.
	ConfigDirName = ".chatstream"

	// ConfigFileName is the TOML configuration file inside ConfigDirName.
	ConfigFileName = "config.toml"

	// ConfigFileNameJSON is the legacy JSON configuration file.
	ConfigFileNameJSON = "config.json"

	// HistoryFileName is the default sqlite history database.
	HistoryFileName = "history.db"

	// HomeEnv overrides the configuration directory.
	HomeEnv = "CHATSTREAM_HOME"

	// ConfigVersion is written into newly created files.
	ConfigVersion = "1"
)

// ErrNoConfigDir is returned when neither HomeEnv nor a home directory is available.
var ErrNoConfigDir = errors.New("config: cannot determine configuration directory")

// =============================================================================
// CONFIG TYPES
// =============================================================================

// Config is the complete chatstream configuration.
type Config struct {
	Version string        `toml:"version" json:"version"`
	Backend BackendConfig `toml:"backend" json:"backend"`
	Chat    ChatConfig    `toml:"chat" json:"chat"`
	Typing  TypingConfig  `toml:"typing" json:"typing"`
	History HistoryConfig `toml:"history" json:"history"`
	Log     LogConfig     `toml:"log" json:"log"`
}

// BackendConfig describes how to reach the chat service.
type BackendConfig struct {
	URL            string `toml:"url" json:"url"`
	Token          string `toml:"token" json:"token,omitempty"`
	TokenFile      string `toml:"token_file" json:"token_file,omitempty"`  // read at startup and on change
	TimeoutSeconds int    `toml:"timeout_seconds" json:"timeout_seconds"` // 0 disables the per-request timeout
	UserAgent      string `toml:"user_agent" json:"user_agent,omitempty"`
}

// ChatConfig holds defaults for outgoing requests.
type ChatConfig struct {
	Mode     string `toml:"mode" json:"mode"` // "chat" or "agent"
	Model    string `toml:"model" json:"model,omitempty"`
	Provider string `toml:"provider" json:"provider,omitempty"`
	AgentID  string `toml:"agent_id" json:"agent_id,omitempty"`
	RoomID   string `toml:"room_id" json:"room_id,omitempty"`
}

// TypingConfig tunes the reveal animation.
type TypingConfig struct {
	Enabled       bool `toml:"enabled" json:"enabled"`
	BaseMs        int  `toml:"base_ms" json:"base_ms"`
	FloorMs       int  `toml:"floor_ms" json:"floor_ms"`
	MediumChars   int  `toml:"medium_chars" json:"medium_chars"`
	LongChars     int  `toml:"long_chars" json:"long_chars"`
	VeryLongChars int  `toml:"very_long_chars" json:"very_long_chars"`
	Markdown      bool `toml:"markdown" json:"markdown"`
}

// HistoryConfig controls the local exchange history.
type HistoryConfig struct {
	Enabled    bool   `toml:"enabled" json:"enabled"`
	Path       string `toml:"path" json:"path,omitempty"` // empty means ConfigDir/history.db
	MaxEntries int    `toml:"max_entries" json:"max_entries"`
}

// LogConfig controls diagnostic logging on stderr.
type LogConfig struct {
	Level  string `toml:"level" json:"level"`
	Pretty bool   `toml:"pretty" json:"pretty"`
	File   string `toml:"file" json:"file,omitempty"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a configuration with every field set to its default.
func Default() *Config {
	return &Config{
		Version: ConfigVersion,
		Backend: BackendConfig{
			URL:            "http://localhost:8080",
			TimeoutSeconds: 0,
		},
		Chat: ChatConfig{
			Mode: "chat",
		},
		Typing: TypingConfig{
			Enabled:       true,
			BaseMs:        15,
			FloorMs:       5,
			MediumChars:   200,
			LongChars:     500,
			VeryLongChars: 1000,
		},
		History: HistoryConfig{
			Enabled:    true,
			MaxEntries: 1000,
		},
		Log: LogConfig{
			Level:  "warn",
			Pretty: true,
		},
	}
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// String renders the configuration as TOML with the token masked.
func (c *Config) String() string {
	masked := c.Clone()
	if masked.Backend.Token != "" {
		masked.Backend.Token = MaskToken(masked.Backend.Token)
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(masked); err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return buf.String()
}

// MaskToken keeps the last four characters of a secret.
func MaskToken(token string) string {
	if len(token) <= 4 {
		return "****"
	}
	return "****" + token[len(token)-4:]
}

// =============================================================================
// PATHS
// =============================================================================

// ConfigDir returns the configuration directory, honouring CHATSTREAM_HOME.
func ConfigDir() (string, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "", ErrNoConfigDir
	}
	return filepath.Join(home, ConfigDirName), nil
}

// ConfigPath returns the path of the TOML configuration file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

// EnsureConfigDir creates the configuration directory with owner-only permissions.
func EnsureConfigDir() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// HistoryPath resolves the history database location.
func (c *Config) HistoryPath() (string, error) {
	if c.History.Path != "" {
		return expandHome(c.History.Path), nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, HistoryFileName), nil
}

// ResolveToken returns the bearer token, reading TokenFile when one is set.
func (c *Config) ResolveToken() (string, error) {
	if c.Backend.TokenFile == "" {
		return strings.TrimSpace(c.Backend.Token), nil
	}
	data, err := os.ReadFile(expandHome(c.Backend.TokenFile))
	if err != nil {
		return "", fmt.Errorf("failed to read token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the configuration from the default location and applies
// environment overrides. A missing file yields the defaults.
func Load() (*Config, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}

	tomlPath := filepath.Join(dir, ConfigFileName)
	jsonPath := filepath.Join(dir, ConfigFileNameJSON)

	var cfg *Config
	switch {
	case fileExists(tomlPath):
		cfg, err = LoadFrom(tomlPath)
	case fileExists(jsonPath):
		cfg, err = LoadFrom(jsonPath)
	default:
		cfg = Default()
	}
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// LoadFrom reads a TOML or JSON file (chosen by extension) over the defaults.
// Environment overrides are not applied.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	} else {
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			return nil, &ValidationError{
				Field:   "config",
				Message: "unknown keys: " + strings.Join(keys, ", "),
			}
		}
	}

	if cfg.Version == "" {
		cfg.Version = ConfigVersion
	}
	return cfg, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// =============================================================================
// SAVING
// =============================================================================

const fileHeader = `# chatstream configuration
# Environment variables (CHATSTREAM_*) override the values below.

`

// Save writes the configuration as TOML to the default location.
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the configuration to path with 0600 permissions. The format
// follows the extension.
func (c *Config) SaveTo(path string) error {
	var buf bytes.Buffer
	if strings.EqualFold(filepath.Ext(path), ".json") {
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
	} else {
		buf.WriteString(fileHeader)
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError describes one invalid setting.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("config: %s: %s (got %q)", e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors collects every problem found by Validate.
type ValidationErrors []*ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate reports all invalid settings at once, or nil.
func (c *Config) Validate() error {
	var errs ValidationErrors
	add := func(field, value, msg string) {
		errs = append(errs, &ValidationError{Field: field, Value: value, Message: msg})
	}

	if c.Backend.URL != "" {
		u, err := url.Parse(c.Backend.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			add("backend.url", c.Backend.URL, "must be an absolute http or https URL")
		}
	}
	if c.Backend.TimeoutSeconds < 0 {
		add("backend.timeout_seconds", strconv.Itoa(c.Backend.TimeoutSeconds), "must not be negative")
	}

	switch c.Chat.Mode {
	case "chat", "":
	case "agent":
		if c.Chat.AgentID == "" {
			add("chat.agent_id", "", "required when chat.mode is agent")
		}
	default:
		add("chat.mode", c.Chat.Mode, "must be chat or agent")
	}

	t := c.Typing
	if t.BaseMs <= 0 {
		add("typing.base_ms", strconv.Itoa(t.BaseMs), "must be positive")
	}
	if t.FloorMs <= 0 || t.FloorMs > t.BaseMs {
		add("typing.floor_ms", strconv.Itoa(t.FloorMs), "must be positive and at most base_ms")
	}
	if !(t.MediumChars > 0 && t.MediumChars < t.LongChars && t.LongChars < t.VeryLongChars) {
		add("typing", fmt.Sprintf("%d/%d/%d", t.MediumChars, t.LongChars, t.VeryLongChars),
			"thresholds must satisfy 0 < medium_chars < long_chars < very_long_chars")
	}

	if c.History.MaxEntries < 0 {
		add("history.max_entries", strconv.Itoa(c.History.MaxEntries), "must not be negative")
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		add("log.level", c.Log.Level, "unknown level")
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides overlays CHATSTREAM_* variables onto c.
func (c *Config) ApplyEnvOverrides() {
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			*dst = v
		}
	}
	str("CHATSTREAM_URL", &c.Backend.URL)
	str("CHATSTREAM_TOKEN", &c.Backend.Token)
	str("CHATSTREAM_TOKEN_FILE", &c.Backend.TokenFile)
	str("CHATSTREAM_USER_AGENT", &c.Backend.UserAgent)
	str("CHATSTREAM_MODE", &c.Chat.Mode)
	str("CHATSTREAM_MODEL", &c.Chat.Model)
	str("CHATSTREAM_PROVIDER", &c.Chat.Provider)
	str("CHATSTREAM_AGENT_ID", &c.Chat.AgentID)
	str("CHATSTREAM_ROOM_ID", &c.Chat.RoomID)
	str("CHATSTREAM_LOG_LEVEL", &c.Log.Level)
	str("CHATSTREAM_HISTORY_PATH", &c.History.Path)

	if v := os.Getenv("CHATSTREAM_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Backend.TimeoutSeconds = n
		}
	}
	if v := os.Getenv("CHATSTREAM_TYPING"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Typing.Enabled = b
		}
	}
	if v := os.Getenv("CHATSTREAM_HISTORY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.History.Enabled = b
		}
	}
}

// =============================================================================
// KEY ACCESS
// =============================================================================

// Keys lists the dotted names accepted by Get and Set.
func Keys() []string {
	return []string{
		"backend.url", "backend.token", "backend.token_file", "backend.timeout_seconds", "backend.user_agent",
		"chat.mode", "chat.model", "chat.provider", "chat.agent_id", "chat.room_id",
		"typing.enabled", "typing.base_ms", "typing.floor_ms", "typing.markdown",
		"history.enabled", "history.path", "history.max_entries",
		"log.level", "log.pretty", "log.file",
	}
}

// Get returns the value of a dotted key. Tokens are masked.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "backend.url":
		return c.Backend.URL, nil
	case "backend.token":
		if c.Backend.Token == "" {
			return "", nil
		}
		return MaskToken(c.Backend.Token), nil
	case "backend.token_file":
		return c.Backend.TokenFile, nil
	case "backend.timeout_seconds":
		return strconv.Itoa(c.Backend.TimeoutSeconds), nil
	case "backend.user_agent":
		return c.Backend.UserAgent, nil
	case "chat.mode":
		return c.Chat.Mode, nil
	case "chat.model":
		return c.Chat.Model, nil
	case "chat.provider":
		return c.Chat.Provider, nil
	case "chat.agent_id":
		return c.Chat.AgentID, nil
	case "chat.room_id":
		return c.Chat.RoomID, nil
	case "typing.enabled":
		return strconv.FormatBool(c.Typing.Enabled), nil
	case "typing.base_ms":
		return strconv.Itoa(c.Typing.BaseMs), nil
	case "typing.floor_ms":
		return strconv.Itoa(c.Typing.FloorMs), nil
	case "typing.markdown":
		return strconv.FormatBool(c.Typing.Markdown), nil
	case "history.enabled":
		return strconv.FormatBool(c.History.Enabled), nil
	case "history.path":
		return c.History.Path, nil
	case "history.max_entries":
		return strconv.Itoa(c.History.MaxEntries), nil
	case "log.level":
		return c.Log.Level, nil
	case "log.pretty":
		return strconv.FormatBool(c.Log.Pretty), nil
	case "log.file":
		return c.Log.File, nil
	}
	return "", &ValidationError{Field: key, Message: "unknown key"}
}

// Set assigns a dotted key from its string form. The result is not validated.
func (c *Config) Set(key, value string) error {
	var err error
	switch key {
	case "backend.url":
		c.Backend.URL = value
	case "backend.token":
		c.Backend.Token = value
	case "backend.token_file":
		c.Backend.TokenFile = value
	case "backend.timeout_seconds":
		c.Backend.TimeoutSeconds, err = strconv.Atoi(value)
	case "backend.user_agent":
		c.Backend.UserAgent = value
	case "chat.mode":
		c.Chat.Mode = value
	case "chat.model":
		c.Chat.Model = value
	case "chat.provider":
		c.Chat.Provider = value
	case "chat.agent_id":
		c.Chat.AgentID = value
	case "chat.room_id":
		c.Chat.RoomID = value
	case "typing.enabled":
		c.Typing.Enabled, err = strconv.ParseBool(value)
	case "typing.base_ms":
		c.Typing.BaseMs, err = strconv.Atoi(value)
	case "typing.floor_ms":
		c.Typing.FloorMs, err = strconv.Atoi(value)
	case "typing.markdown":
		c.Typing.Markdown, err = strconv.ParseBool(value)
	case "history.enabled":
		c.History.Enabled, err = strconv.ParseBool(value)
	case "history.path":
		c.History.Path = value
	case "history.max_entries":
		c.History.MaxEntries, err = strconv.Atoi(value)
	case "log.level":
		c.Log.Level = value
	case "log.pretty":
		c.Log.Pretty, err = strconv.ParseBool(value)
	case "log.file":
		c.Log.File = value
	default:
		return &ValidationError{Field: key, Message: "unknown key"}
	}
	if err != nil {
		return &ValidationError{Field: key, Value: value, Message: "wrong type"}
	}
	return nil
}

// =============================================================================
// GLOBAL CONFIG
// =============================================================================

var (
	globalConfig *Config
	globalOnce   sync.Once
	globalMu     sync.RWMutex
)

// Global returns the process-wide configuration, loading it on first use.
// Load failures fall back to the defaults with env overrides applied.
func Global() *Config {
	globalOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			cfg = Default()
			cfg.ApplyEnvOverrides()
		}
		globalMu.Lock()
		globalConfig = cfg
		globalMu.Unlock()
	})

	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalConfig
}

// SetGlobal replaces the process-wide configuration.
func SetGlobal(cfg *Config) {
	globalOnce.Do(func() {})
	globalMu.Lock()
	globalConfig = cfg
	globalMu.Unlock()
}

// ReloadGlobal reloads from disk and swaps the result in on success.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	SetGlobal(cfg)
	return nil
}

// ResetGlobalForTesting clears the singleton.
func ResetGlobalForTesting() {
	globalMu.Lock()
	globalConfig = nil
	globalOnce = sync.Once{}
	globalMu.Unlock()
}
