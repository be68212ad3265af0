// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/gorilla/mux"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jeranaias/chatstream/internal/backend"
)

// captured is what the fake backend saw of the last request.
type captured struct {
	path        string
	auth        string
	accept      string
	contentType string
	requestID   string
	body        map[string]any
	fileNames   []string
	fileData    []string
}

var _ = Describe("Client", func() {
	var (
		server *httptest.Server
		client *backend.Client
		last   *captured
		ctx    context.Context
	)

	streamHandler := func(w http.ResponseWriter, r *http.Request) {
		defer GinkgoRecover()
		last = &captured{
			path:        r.URL.Path,
			auth:        r.Header.Get("Authorization"),
			accept:      r.Header.Get("Accept"),
			contentType: r.Header.Get("Content-Type"),
			requestID:   r.Header.Get(backend.HeaderRequestID),
		}

		if r.Header.Get("Content-Type") == "application/json" {
			_ = json.NewDecoder(r.Body).Decode(&last.body)
		} else {
			Expect(r.ParseMultipartForm(1 << 20)).To(Succeed())
			Expect(json.Unmarshal([]byte(r.MultipartForm.Value["request"][0]), &last.body)).To(Succeed())
			for _, fh := range r.MultipartForm.File["files"] {
				last.fileNames = append(last.fileNames, fh.Filename)
				f, err := fh.Open()
				Expect(err).NotTo(HaveOccurred())
				data, _ := io.ReadAll(f)
				f.Close()
				last.fileData = append(last.fileData, string(data))
			}
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set(backend.HeaderRoomID, "room-42")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "data: {\"event\":\"message\",\"answer\":\"Hi\"}\n\n")
	}

	BeforeEach(func() {
		ctx = context.Background()
		last = nil

		r := mux.NewRouter()
		r.HandleFunc(backend.PathChatMessages, streamHandler).Methods(http.MethodPost)
		r.HandleFunc(backend.PathAgentInvoke, streamHandler).Methods(http.MethodPost)
		server = httptest.NewServer(r)
		client = backend.NewClient(server.URL+"/", "tok-123")
	})

	AfterEach(func() {
		server.Close()
	})

	chatRequest := func() backend.Request {
		return backend.Request{
			Mode:     backend.ModeChat,
			Query:    "  hello  ",
			Model:    "gpt-4o",
			Provider: "openai",
		}
	}

	Describe("Open", func() {
		It("sends a chat request as JSON with the bearer token", func() {
			resp, err := client.Open(ctx, chatRequest())
			Expect(err).NotTo(HaveOccurred())
			defer resp.Close()

			Expect(last.path).To(Equal(backend.PathChatMessages))
			Expect(last.auth).To(Equal("Bearer tok-123"))
			Expect(last.accept).To(Equal("text/event-stream"))
			Expect(last.contentType).To(Equal("application/json"))
			Expect(last.requestID).NotTo(BeEmpty())
			Expect(resp.RequestID).To(Equal(last.requestID))

			Expect(last.body).To(HaveKeyWithValue("query", "hello"))
			Expect(last.body).To(HaveKeyWithValue("executionMode", "chat"))
			Expect(last.body).To(HaveKeyWithValue("currentModel", "gpt-4o"))
			Expect(last.body).To(HaveKeyWithValue("currentProvider", "openai"))
			Expect(last.body).To(HaveKeyWithValue("responseMode", "streaming"))
			Expect(last.body).To(HaveKeyWithValue("autoGenerateName", true))
			Expect(last.body).NotTo(HaveKey("roomId"))
			Expect(last.body).NotTo(HaveKey("agentId"))
		})

		It("exposes the room header and the open body", func() {
			resp, err := client.Open(ctx, chatRequest())
			Expect(err).NotTo(HaveOccurred())
			defer resp.Close()

			Expect(resp.Status).To(Equal(http.StatusOK))
			Expect(resp.RoomID).To(Equal("room-42"))
			data, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring(`"answer":"Hi"`))
		})

		It("invokes an agent on the agent endpoint", func() {
			req := backend.Request{
				Mode:    backend.ModeAgent,
				AgentID: "agent-7",
				Query:   "plan my week",
				RoomID:  "room-1",
			}
			resp, err := client.Open(ctx, req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Close()

			Expect(last.path).To(Equal(backend.PathAgentInvoke))
			Expect(last.body).To(HaveKeyWithValue("agentId", "agent-7"))
			Expect(last.body).To(HaveKeyWithValue("executionMode", "agent"))
			Expect(last.body).To(HaveKeyWithValue("roomId", "room-1"))
			Expect(last.body).NotTo(HaveKey("responseMode"))
		})

		It("switches to multipart when files are attached", func() {
			req := chatRequest()
			req.Attachments = []backend.Attachment{
				{Name: "notes.txt", ContentType: "text/plain", Content: []byte("alpha")},
				{Name: "data.bin", Content: []byte("beta")},
			}
			resp, err := client.Open(ctx, req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Close()

			Expect(last.contentType).To(HavePrefix("multipart/form-data; boundary="))
			Expect(last.body).To(HaveKeyWithValue("query", "hello"))
			Expect(last.fileNames).To(Equal([]string{"notes.txt", "data.bin"}))
			Expect(last.fileData).To(Equal([]string{"alpha", "beta"}))
		})

		It("omits the Authorization header without a token", func() {
			client.SetToken("")
			resp, err := client.Open(ctx, chatRequest())
			Expect(err).NotTo(HaveOccurred())
			defer resp.Close()
			Expect(last.auth).To(BeEmpty())
		})

		It("rejects an invalid request before sending", func() {
			req := chatRequest()
			req.Model = ""
			_, err := client.Open(ctx, req)
			Expect(errors.Is(err, backend.ErrInvalidRequest)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("Model is required"))
			Expect(last).To(BeNil())
		})

		It("fails without a base URL", func() {
			_, err := backend.NewClient("", "t").Open(ctx, chatRequest())
			Expect(err).To(MatchError(backend.ErrNoBaseURL))
		})
	})

	Describe("non-2xx responses", func() {
		var status int
		var body string

		BeforeEach(func() {
			server.Close()
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
				_, _ = io.WriteString(w, body)
			}))
			client = backend.NewClient(server.URL, "tok")
		})

		It("parses the JSON message", func() {
			status, body = http.StatusInternalServerError, `{"message":"boom"}`
			_, err := client.Open(ctx, chatRequest())

			var apiErr *backend.APIError
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			Expect(apiErr.Status).To(Equal(500))
			Expect(apiErr.Message).To(Equal("boom"))
			Expect(errors.Is(err, backend.ErrServer)).To(BeTrue())
			Expect(apiErr.Failure()).To(Equal(backend.Failure{Success: false, Status: 500, Message: "boom"}))
		})

		It("falls back to the raw body", func() {
			status, body = http.StatusBadGateway, "upstream unavailable\n"
			_, err := client.Open(ctx, chatRequest())

			var apiErr *backend.APIError
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			Expect(apiErr.Message).To(Equal("upstream unavailable"))
		})

		It("falls back to a generic message for an empty body", func() {
			status, body = http.StatusUnauthorized, ""
			_, err := client.Open(ctx, chatRequest())

			Expect(errors.Is(err, backend.ErrUnauthorized)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("Error 401"))
		})

		It("maps 404 and 429 onto sentinels", func() {
			status, body = http.StatusNotFound, `{"message":"no such agent"}`
			_, err := client.Open(ctx, chatRequest())
			Expect(errors.Is(err, backend.ErrNotFound)).To(BeTrue())

			status = http.StatusTooManyRequests
			_, err = client.Open(ctx, chatRequest())
			Expect(errors.Is(err, backend.ErrRateLimited)).To(BeTrue())
			Expect(errors.Is(err, backend.ErrServer)).To(BeFalse())
		})
	})
})
