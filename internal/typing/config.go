// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package typing

import "time"

// Config controls reveal pacing.
type Config struct {
	// Base is the per-character interval for short text.
	Base time.Duration

	// Floor is the shortest interval ever used.
	Floor time.Duration

	// Length thresholds, in characters. Text longer than Medium types at
	// 60% of Base, longer than Long at 30% of Base, longer than VeryLong
	// at Floor.
	Medium   int
	Long     int
	VeryLong int
}

// DefaultConfig returns 15ms per character with thresholds at 200, 500
// and 1000 characters and a 5ms floor.
func DefaultConfig() Config {
	return Config{
		Base:     15 * time.Millisecond,
		Floor:    5 * time.Millisecond,
		Medium:   200,
		Long:     500,
		VeryLong: 1000,
	}
}

// Interval returns the tick interval for text of n characters.
func (c Config) Interval(n int) time.Duration {
	var d time.Duration
	switch {
	case n > c.VeryLong:
		d = c.Floor
	case n > c.Long:
		d = c.Base * 3 / 10
	case n > c.Medium:
		d = c.Base * 6 / 10
	default:
		d = c.Base
	}
	if d < c.Floor {
		d = c.Floor
	}
	return d
}
