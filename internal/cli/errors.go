// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error display and exit codes for chatstream commands.
//
// Commands always return errors; Execute decides how to show them and
// which exit code to use.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/jeranaias/chatstream/internal/backend"
	"github.com/jeranaias/chatstream/internal/config"
	"github.com/jeranaias/chatstream/internal/exchange"
	"github.com/jeranaias/chatstream/internal/session"
	"github.com/jeranaias/chatstream/internal/storage"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitAuthError indicates authentication or authorization failure
	ExitAuthError = 4
	// ExitNetworkError indicates network or connectivity error
	ExitNetworkError = 5
	// ExitServerError indicates the backend answered with a 5xx
	ExitServerError = 6
	// ExitNotFoundError indicates a resource was not found
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8
	// ExitProtocolError indicates the stream reported an error event
	ExitProtocolError = 9
	// ExitInterrupted indicates the user interrupted the command
	ExitInterrupted = 130
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError is invalid command input.
type UsageError struct {
	Field   string
	Reason  string
	Example string
}

func (e *UsageError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Example != "" {
		msg += "\nExample: " + e.Example
	}
	return msg
}

// ErrMissingArgument creates an error for a missing required argument.
func ErrMissingArgument(name, example string) error {
	return &UsageError{Field: name, Reason: "required argument missing", Example: example}
}

// reportedError wraps an error that a command already printed (for example
// as JSON) so Execute does not print it again.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

func reported(err error) error {
	if err == nil {
		return nil
	}
	return &reportedError{err: err}
}

// =============================================================================
// DISPLAY
// =============================================================================

// DisplayError writes a human-readable error to w, including the partial
// answer of an interrupted stream.
func DisplayError(w io.Writer, err error) {
	if err == nil {
		return
	}
	var rerr *reportedError
	if errors.As(err, &rerr) {
		return
	}

	fmt.Fprintf(w, "%s %s\n", RenderConditional(ErrorStyle, "[ERROR]"), err.Error())

	switch {
	case errors.Is(err, backend.ErrUnauthorized):
		fmt.Fprintln(w, RenderConditional(DimStyle, "Check backend.token or CHATSTREAM_TOKEN."))
	case errors.Is(err, backend.ErrNoBaseURL):
		fmt.Fprintln(w, RenderConditional(DimStyle, "Set backend.url with: chatstream config set backend.url https://..."))
	}
}

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// GetExitCode determines the exit code for an error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var (
		usageErr    *UsageError
		cfgErr      *config.ValidationError
		cfgErrs     config.ValidationErrors
		protoErr    *session.ProtocolError
		streamErr   *exchange.StreamError
		netErr      net.Error
		deadlineErr = context.DeadlineExceeded
	)

	switch {
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.Is(err, deadlineErr):
		return ExitTimeoutError
	case errors.As(err, &usageErr), errors.Is(err, backend.ErrInvalidRequest):
		return ExitUsageError
	case errors.As(err, &cfgErr), errors.As(err, &cfgErrs), errors.Is(err, backend.ErrNoBaseURL),
		errors.Is(err, config.ErrNoConfigDir):
		return ExitConfigError
	case errors.Is(err, backend.ErrUnauthorized):
		return ExitAuthError
	case errors.Is(err, backend.ErrNotFound), errors.Is(err, storage.ErrEntryNotFound):
		return ExitNotFoundError
	case errors.Is(err, backend.ErrServer):
		return ExitServerError
	case errors.As(err, &protoErr):
		return ExitProtocolError
	case errors.As(err, &netErr) && netErr.Timeout():
		return ExitTimeoutError
	case errors.As(err, &streamErr), errors.As(err, &netErr):
		return ExitNetworkError
	}
	return ExitGeneralError
}
