// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/gorilla/mux"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jeranaias/chatstream/internal/backend"
)

var _ = Describe("Catalog", func() {
	var (
		server *httptest.Server
		client *backend.Client
		usage  string
		ctx    context.Context
		auth   string
	)

	BeforeEach(func() {
		ctx = context.Background()
		usage = `{"success":true,"data":[{"provider":"azure_openai","modelName":"gpt-4","currentUsage":15,"maxCalls":100,"remainingCalls":85},{"provider":"anthropic","modelName":"claude","currentUsage":20,"maxCalls":20,"remainingCalls":0}]}`

		r := mux.NewRouter()
		r.HandleFunc(backend.PathModels, func(w http.ResponseWriter, r *http.Request) {
			auth = r.Header.Get("Authorization")
			_, _ = w.Write([]byte(`{"success":true,"status":200,"data":{"data":[{"provider":"azure_openai","modelName":"gpt-4","label":"GPT-4"}]}}`))
		}).Methods(http.MethodGet)
		r.HandleFunc(backend.PathAgents, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success":true,"data":{"b":{"id":"a2","name":"Writer"},"a":{"id":"a1","name":"Planner"}}}`))
		}).Methods(http.MethodGet)
		r.HandleFunc(backend.PathDailyUsage, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(usage))
		}).Methods(http.MethodPost)

		server = httptest.NewServer(r)
		client = backend.NewClient(server.URL, "tok")
	})

	AfterEach(func() {
		server.Close()
	})

	It("lists models from a nested data array", func() {
		models, err := client.ListModels(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(models).To(HaveLen(1))
		Expect(models[0].Value()).To(Equal("azure_openai/gpt-4"))
		Expect(models[0].Label).To(Equal("GPT-4"))
		Expect(auth).To(Equal("Bearer tok"))
	})

	It("lists agents from a keyed object in key order", func() {
		agents, err := client.ListAgents(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(agents).To(Equal([]backend.Agent{{ID: "a1", Name: "Planner"}, {ID: "a2", Name: "Writer"}}))
	})

	It("reports daily usage and flags exhausted models", func() {
		rows, err := client.DailyUsage(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(2))
		Expect(rows[0].RemainingCalls).To(Equal(85))
		Expect(rows[0].Exhausted()).To(BeFalse())
		Expect(rows[1].Value()).To(Equal("anthropic/claude"))
		Expect(rows[1].Exhausted()).To(BeTrue())
	})

	It("returns an empty list when the envelope carries no data", func() {
		usage = `{"success":true,"status":200,"data":null}`
		rows, err := client.DailyUsage(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(BeEmpty())
	})

	It("surfaces a failed envelope as an APIError", func() {
		usage = `{"success":false,"status":401,"message":"expired"}`
		_, err := client.DailyUsage(ctx)
		var apiErr *backend.APIError
		Expect(errors.As(err, &apiErr)).To(BeTrue())
		Expect(apiErr.Status).To(Equal(401))
	})
})
