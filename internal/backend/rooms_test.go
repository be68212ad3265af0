// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/gorilla/mux"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jeranaias/chatstream/internal/backend"
)

var _ = Describe("Rooms", func() {
	var (
		server   *httptest.Server
		client   *backend.Client
		received map[string]map[string]any
		agents   string
		ctx      context.Context
	)

	record := func(r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		received[r.URL.Path] = body
	}

	BeforeEach(func() {
		ctx = context.Background()
		received = map[string]map[string]any{}
		agents = `[{"id":"a1","name":"Planner"},{"id":"a2","name":"Writer"}]`

		r := mux.NewRouter()
		r.HandleFunc(backend.PathRoomList, func(w http.ResponseWriter, r *http.Request) {
			record(r)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"success":true,"status":200,"data":{"rooms":[{"roomId":"r1","title":"First"},{"roomId":"r2","title":"Second"}],"page":0,"size":20,"totalCount":2}}`))
		}).Methods(http.MethodPost)
		r.HandleFunc(backend.PathRoomDetail, func(w http.ResponseWriter, r *http.Request) {
			record(r)
			_, _ = w.Write([]byte(`{"roomId":"r1","title":"First","messages":[{"messageId":"m1","role":"user","content":"hi"}],"agents":` + agents + `}`))
		}).Methods(http.MethodPost)
		r.HandleFunc(backend.PathRoomCreate, func(w http.ResponseWriter, r *http.Request) {
			record(r)
			_, _ = w.Write([]byte(`{"success":true,"data":{"roomId":"new-room","title":"Fresh"}}`))
		}).Methods(http.MethodPost)
		r.HandleFunc(backend.PathRoomRename, func(w http.ResponseWriter, r *http.Request) {
			record(r)
			_, _ = w.Write([]byte(`{"success":false,"status":409,"message":"title taken"}`))
		}).Methods(http.MethodPost)
		r.HandleFunc(backend.PathRoomDelete, func(w http.ResponseWriter, r *http.Request) {
			record(r)
			w.WriteHeader(http.StatusNoContent)
		}).Methods(http.MethodPost)

		server = httptest.NewServer(r)
		client = backend.NewClient(server.URL, "tok")
	})

	AfterEach(func() {
		server.Close()
	})

	It("lists rooms with the default page size and unwraps the envelope", func() {
		page, err := client.ListRooms(ctx, 0, 0, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(page.Rooms).To(HaveLen(2))
		Expect(page.Rooms[0].RoomID).To(Equal("r1"))
		Expect(page.TotalCount).To(Equal(2))

		Expect(received[backend.PathRoomList]).To(HaveKeyWithValue("size", BeNumerically("==", 20)))
		Expect(received[backend.PathRoomList]).NotTo(HaveKey("status"))
	})

	It("passes the status filter", func() {
		_, err := client.ListRooms(ctx, 2, 5, "ACTIVE")
		Expect(err).NotTo(HaveOccurred())
		Expect(received[backend.PathRoomList]).To(HaveKeyWithValue("status", "ACTIVE"))
		Expect(received[backend.PathRoomList]).To(HaveKeyWithValue("page", BeNumerically("==", 2)))
	})

	It("returns room detail with agents", func() {
		detail, err := client.RoomDetail(ctx, "r1", 0, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(detail.Messages).To(HaveLen(1))
		Expect(detail.Agents).To(HaveLen(2))
		Expect(received[backend.PathRoomDetail]).To(HaveKeyWithValue("size", BeNumerically("==", 50)))
		Expect(received[backend.PathRoomDetail]).To(HaveKeyWithValue("roomId", "r1"))
	})

	It("drops the agent list when a portal agent is present", func() {
		agents = `[{"id":"a1","name":"Planner"},{"id":"a9","name":"[RELEASE]OCI WEB Portal"}]`
		detail, err := client.RoomDetail(ctx, "r1", 0, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(detail.Agents).NotTo(BeNil())
		Expect(detail.Agents).To(BeEmpty())
	})

	It("requires a room id for detail", func() {
		_, err := client.RoomDetail(ctx, " ", 0, 0)
		Expect(errors.Is(err, backend.ErrInvalidRequest)).To(BeTrue())
	})

	It("creates a room", func() {
		room, err := client.CreateRoom(ctx, "Fresh")
		Expect(err).NotTo(HaveOccurred())
		Expect(room.RoomID).To(Equal("new-room"))
		Expect(received[backend.PathRoomCreate]).To(HaveKeyWithValue("title", "Fresh"))
	})

	It("treats success=false as an error", func() {
		err := client.RenameRoom(ctx, "r1", "Dup")
		var apiErr *backend.APIError
		Expect(errors.As(err, &apiErr)).To(BeTrue())
		Expect(apiErr.Status).To(Equal(409))
		Expect(apiErr.Message).To(Equal("title taken"))
	})

	It("deletes a room with an empty response", func() {
		Expect(client.DeleteRoom(ctx, "r2")).To(Succeed())
		Expect(received[backend.PathRoomDelete]).To(HaveKeyWithValue("roomId", "r2"))
	})
})

var _ = Describe("FilterAgents", func() {
	It("keeps a clean list", func() {
		in := []backend.Agent{{ID: "1", Name: "A"}}
		Expect(backend.FilterAgents(in)).To(Equal(in))
	})

	It("keeps an empty list", func() {
		Expect(backend.FilterAgents(nil)).To(BeEmpty())
	})
})
