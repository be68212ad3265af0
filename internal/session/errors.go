// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"fmt"

	"github.com/jeranaias/chatstream/internal/sse"
)

// ProtocolError is an error event the backend sent inside the stream.
type ProtocolError struct {
	Status  int
	Code    string
	Message string
}

// Error implements error.
func (e *ProtocolError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "stream reported an error"
	}
	switch {
	case e.Status != 0 && e.Code != "":
		return fmt.Sprintf("backend error %d (%s): %s", e.Status, e.Code, msg)
	case e.Status != 0:
		return fmt.Sprintf("backend error %d: %s", e.Status, msg)
	case e.Code != "":
		return fmt.Sprintf("backend error (%s): %s", e.Code, msg)
	default:
		return "backend error: " + msg
	}
}

func protocolErrorFrom(ev sse.Event) *ProtocolError {
	return &ProtocolError{
		Status:  ev.Status,
		Code:    ev.Code,
		Message: ev.Message,
	}
}
