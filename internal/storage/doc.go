// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage keeps a local history of completed exchanges.
//
// Each exchange (query, answer or error, and the identifiers the service
// assigned) is one row in a sqlite database, by default
// ~/.chatstream/history.db.
//
// # Key Types
//
//   - HistoryStore: sqlite-backed store
//   - Entry: one recorded exchange
//
// # Usage
//
//	store, err := storage.Open(path)
//	defer store.Close()
//
//	_, err = store.Record(ctx, storage.Entry{Query: q, Answer: res.Text, RoomID: res.RoomID})
//	recent, err := store.Recent(ctx, 20)
//	hits, err := store.Search(ctx, "kubernetes")
package storage
