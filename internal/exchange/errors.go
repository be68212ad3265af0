// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package exchange

import (
	"errors"
	"fmt"
)

// ErrSuperseded is returned by Run when another exchange started on the
// same session before this one finished.
var ErrSuperseded = errors.New("exchange superseded by a newer one")

// StreamError is a read failure after the stream was opened. Partial is
// the answer text received before it.
type StreamError struct {
	Partial string
	Err     error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream interrupted after %d bytes of answer: %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream interrupted: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *StreamError) Unwrap() error {
	return e.Err
}
