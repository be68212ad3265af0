// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// MaxAttachments is the most files one request may carry.
const MaxAttachments = 3

// Mode selects the endpoint and execution mode of an exchange.
type Mode string

const (
	// ModeChat is a plain model conversation.
	ModeChat Mode = "chat"
	// ModeAgent invokes a configured agent.
	ModeAgent Mode = "agent"
)

// Attachment is one file sent with a request.
type Attachment struct {
	Name        string `validate:"required"`
	ContentType string
	Content     []byte
}

// LoadAttachment reads a file from disk.
func LoadAttachment(path string) (Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Attachment{}, fmt.Errorf("failed to read attachment: %w", err)
	}
	name := filepath.Base(path)
	ctype := mime.TypeByExtension(filepath.Ext(name))
	if ctype == "" {
		ctype = http.DetectContentType(data)
	}
	return Attachment{Name: name, ContentType: ctype, Content: data}, nil
}

// Request is one user query.
type Request struct {
	Mode    Mode   `validate:"required,oneof=chat agent"`
	Query   string `validate:"required"`
	AgentID string `validate:"required_if=Mode agent"`

	// Model and Provider are required for chat and optional for agents.
	Model    string `validate:"required_if=Mode chat"`
	Provider string `validate:"required_if=Mode chat"`

	// RoomID continues an existing room; empty starts a new one.
	RoomID string

	Attachments []Attachment `validate:"max=3,dive"`
}

// wireRequest is the JSON body, or the "request" part of a multipart body.
type wireRequest struct {
	AgentID          string `json:"agentId,omitempty"`
	Query            string `json:"query"`
	ExecutionMode    Mode   `json:"executionMode"`
	CurrentModel     string `json:"currentModel,omitempty"`
	CurrentProvider  string `json:"currentProvider,omitempty"`
	ResponseMode     string `json:"responseMode,omitempty"`
	AutoGenerateName bool   `json:"autoGenerateName,omitempty"`
	RoomID           string `json:"roomId,omitempty"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func requestValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks the request before anything is sent.
func (r Request) Validate() error {
	r.Query = strings.TrimSpace(r.Query)
	err := requestValidator().Struct(r)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(msgs, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required", "required_if":
		return field + " is required"
	case "max":
		return fmt.Sprintf("%s allows at most %s items", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

// endpoint returns the path for the request's mode.
func (r Request) endpoint() string {
	if r.Mode == ModeAgent {
		return PathAgentInvoke
	}
	return PathChatMessages
}

func (r Request) wire() wireRequest {
	w := wireRequest{
		Query:           strings.TrimSpace(r.Query),
		ExecutionMode:   r.Mode,
		CurrentModel:    r.Model,
		CurrentProvider: r.Provider,
		RoomID:          r.RoomID,
	}
	if r.Mode == ModeAgent {
		w.AgentID = r.AgentID
	} else {
		w.ResponseMode = "streaming"
		w.AutoGenerateName = true
	}
	return w
}

// encode returns the body and its content type: multipart when there are
// attachments, JSON otherwise.
func (r Request) encode() (io.Reader, string, error) {
	payload, err := json.Marshal(r.wire())
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal request: %w", err)
	}
	if len(r.Attachments) == 0 {
		return bytes.NewReader(payload), "application/json", nil
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreatePart(partHeader("request", "", "application/json"))
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request part: %w", err)
	}
	if _, err := part.Write(payload); err != nil {
		return nil, "", fmt.Errorf("failed to write request part: %w", err)
	}

	for _, a := range r.Attachments {
		ctype := a.ContentType
		if ctype == "" {
			ctype = "application/octet-stream"
		}
		fp, err := mw.CreatePart(partHeader("files", a.Name, ctype))
		if err != nil {
			return nil, "", fmt.Errorf("failed to create file part: %w", err)
		}
		if _, err := fp.Write(a.Content); err != nil {
			return nil, "", fmt.Errorf("failed to write file part %s: %w", a.Name, err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish multipart body: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

func partHeader(field, filename, ctype string) textproto.MIMEHeader {
	disp := map[string]string{"name": field}
	if filename != "" {
		disp["filename"] = filename
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", mime.FormatMediaType("form-data", disp))
	h.Set("Content-Type", ctype)
	return h
}
