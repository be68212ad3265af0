// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package typing

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/time/rate"
)

// ErrCancelled is returned by Playback.Wait when the reveal was stopped
// before it finished.
var ErrCancelled = errors.New("typing: playback cancelled")

// StepFunc is called after each revealed character with the text shown so
// far. It runs on the playback goroutine and must not call Play.
type StepFunc func(revealed string)

// =============================================================================
// ANIMATOR
// =============================================================================

// Animator owns a display buffer and the single playback allowed to write
// into it.
type Animator struct {
	cfg Config

	// playMu serializes Play so a playback is always cancelled before its
	// replacement is installed.
	playMu sync.Mutex

	mu        sync.Mutex
	current   *Playback
	displayed string
}

// NewAnimator creates an animator with the given pacing.
func NewAnimator(cfg Config) *Animator {
	return &Animator{cfg: cfg}
}

// Config returns the animator's pacing.
func (a *Animator) Config() Config {
	return a.cfg
}

// Play starts revealing text, cancelling any playback still running. Once
// Play returns, the previous playback will not call its StepFunc or touch
// the display buffer again. Empty text resolves immediately.
func (a *Animator) Play(ctx context.Context, text string, onStep StepFunc) *Playback {
	a.playMu.Lock()
	defer a.playMu.Unlock()

	a.mu.Lock()
	prev := a.current
	a.current = nil
	a.mu.Unlock()
	if prev != nil {
		prev.Cancel()
	}

	p := &Playback{
		anim:   a,
		text:   text,
		source: []rune(text),
		onStep: onStep,
		done:   make(chan struct{}),
	}

	// stop must be set before p is visible to a concurrent Cancel.
	runCtx, cancel := context.WithCancel(ctx)
	p.stop = cancel

	a.mu.Lock()
	a.current = p
	a.displayed = ""
	a.mu.Unlock()

	if len(p.source) == 0 {
		cancel()
		p.resolve(nil)
		return p
	}

	lim := rate.NewLimiter(rate.Every(a.cfg.Interval(len(p.source))), 1)
	// Drain the initial token so the first character waits one interval.
	lim.Allow()

	go p.run(runCtx, lim)
	return p
}

// Cancel stops the active playback, if any.
func (a *Animator) Cancel() {
	a.mu.Lock()
	p := a.current
	a.mu.Unlock()
	if p != nil {
		p.Cancel()
	}
}

// Active reports whether a playback is still revealing text.
func (a *Animator) Active() bool {
	a.mu.Lock()
	p := a.current
	a.mu.Unlock()
	return p != nil && !p.Finished()
}

// Displayed returns the text currently shown by the active playback.
func (a *Animator) Displayed() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.displayed
}

// show updates the display buffer if p still owns it.
func (a *Animator) show(p *Playback, revealed string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == p {
		a.displayed = revealed
	}
}

// =============================================================================
// PLAYBACK
// =============================================================================

// Playback is one reveal of one text.
type Playback struct {
	anim   *Animator
	text   string
	source []rune
	onStep StepFunc
	stop   context.CancelFunc

	// mu is held across each step, so Cancel returning means no step is
	// running and none will start.
	mu        sync.Mutex
	cursor    int
	cancelled bool

	once sync.Once
	done chan struct{}
	err  error
}

// Text returns the full text being revealed.
func (p *Playback) Text() string {
	return p.text
}

// Revealed returns the prefix shown so far.
func (p *Playback) Revealed() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return string(p.source[:p.cursor])
}

// Done is closed when the playback finishes or is cancelled.
func (p *Playback) Done() <-chan struct{} {
	return p.done
}

// Finished reports whether Done is closed.
func (p *Playback) Finished() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the playback resolves and returns the full text, or
// ErrCancelled. If ctx ends first its error is returned and the playback
// keeps running.
func (p *Playback) Wait(ctx context.Context) (string, error) {
	select {
	case <-p.done:
		if p.err != nil {
			return "", p.err
		}
		return p.text, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Cancel stops the playback. It is safe to call more than once and after
// the playback has finished.
func (p *Playback) Cancel() {
	p.mu.Lock()
	p.cancelled = true
	p.mu.Unlock()

	if p.stop != nil {
		p.stop()
	}
	p.resolve(ErrCancelled)
}

func (p *Playback) run(ctx context.Context, lim *rate.Limiter) {
	defer p.stop()
	for {
		if err := lim.Wait(ctx); err != nil {
			p.Cancel()
			return
		}
		finished, ok := p.step()
		if !ok {
			return
		}
		if finished {
			p.resolve(nil)
			return
		}
	}
}

// step reveals one more character. ok is false if the playback was
// cancelled in the meantime.
func (p *Playback) step() (finished, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelled {
		return false, false
	}

	p.cursor++
	revealed := string(p.source[:p.cursor])
	p.anim.show(p, revealed)
	if p.onStep != nil {
		p.onStep(revealed)
	}
	return p.cursor == len(p.source), true
}

func (p *Playback) resolve(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}
