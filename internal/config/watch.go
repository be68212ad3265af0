// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDebounce coalesces the bursts of writes editors produce on save.
const DefaultWatchDebounce = 150 * time.Millisecond

// ChangeFunc receives the reloaded configuration, or the error that
// prevented reloading it.
type ChangeFunc func(cfg *Config, err error)

// Watch reloads path whenever it (or the token file it names) changes and
// passes the result to onChange. It blocks until ctx is done.
//
// Parent directories are watched rather than the files themselves so that
// atomic rename-on-save keeps being observed.
func Watch(ctx context.Context, path string, debounce time.Duration, onChange ChangeFunc) error {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	path = filepath.Clean(path)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer w.Close()

	watched := map[string]bool{}
	targets := map[string]bool{path: true}
	addDir := func(file string) error {
		dir := filepath.Dir(file)
		if watched[dir] {
			return nil
		}
		if err := w.Add(dir); err != nil {
			return err
		}
		watched[dir] = true
		return nil
	}
	if err := addDir(path); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	// trackTokenFile follows the token file named by the latest good config.
	trackTokenFile := func(cfg *Config) {
		if cfg == nil || cfg.Backend.TokenFile == "" {
			return
		}
		tf := filepath.Clean(expandHome(cfg.Backend.TokenFile))
		if !targets[tf] && addDir(tf) == nil {
			targets[tf] = true
		}
	}
	if cfg, err := LoadFrom(path); err == nil {
		trackTokenFile(cfg)
	}

	// fire is nil while no reload is pending.
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !targets[filepath.Clean(ev.Name)] {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			cfg, err := LoadFrom(path)
			if err == nil {
				cfg.ApplyEnvOverrides()
				trackTokenFile(cfg)
			}
			onChange(cfg, err)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			onChange(nil, fmt.Errorf("watch %s: %w", path, err))
		}
	}
}
