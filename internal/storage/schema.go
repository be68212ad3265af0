// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

// SchemaVersion is stored in the metadata table.
const SchemaVersion = "1"

// Schema creates the history tables.
const Schema = `
CREATE TABLE IF NOT EXISTS exchanges (
    id              TEXT PRIMARY KEY,
    room_id         TEXT NOT NULL DEFAULT '',
    conversation_id TEXT NOT NULL DEFAULT '',
    message_id      TEXT NOT NULL DEFAULT '',
    mode            TEXT NOT NULL DEFAULT 'chat',
    query           TEXT NOT NULL,
    answer          TEXT NOT NULL DEFAULT '',
    error           TEXT NOT NULL DEFAULT '',
    implicit        INTEGER NOT NULL DEFAULT 0,
    created_at      INTEGER NOT NULL,
    duration_ms     INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_exchanges_created ON exchanges(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_exchanges_room ON exchanges(room_id, created_at);

CREATE TABLE IF NOT EXISTS metadata (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// InitMetadata seeds the metadata table.
const InitMetadata = `
INSERT OR IGNORE INTO metadata (key, value) VALUES ('schema_version', '` + SchemaVersion + `');
`
