// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrEntryNotFound is returned by Get and Delete for unknown ids.
	ErrEntryNotFound = errors.New("history entry not found")

	// ErrEmptyQuery is returned when recording an entry without a query.
	ErrEmptyQuery = errors.New("history entry has no query")
)

// =============================================================================
// ENTRY
// =============================================================================

// Entry is one recorded exchange.
type Entry struct {
	ID             string    `json:"id"`
	RoomID         string    `json:"room_id,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
	MessageID      string    `json:"message_id,omitempty"`
	Mode           string    `json:"mode"`
	Query          string    `json:"query"`
	Answer         string    `json:"answer,omitempty"`
	Error          string    `json:"error,omitempty"`
	Implicit       bool      `json:"implicit,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	DurationMs     int64     `json:"duration_ms"`
}

// Failed reports whether the exchange ended in an error.
func (e Entry) Failed() bool {
	return e.Error != ""
}

// =============================================================================
// HISTORY STORE
// =============================================================================

// HistoryStore persists entries in sqlite. It is safe for concurrent use.
type HistoryStore struct {
	db         *sql.DB
	path       string
	maxEntries int
	now        func() time.Time
}

// Option configures a HistoryStore.
type Option func(*HistoryStore)

// WithMaxEntries keeps at most n entries, dropping the oldest on Record.
// Zero means unlimited.
func WithMaxEntries(n int) Option {
	return func(s *HistoryStore) { s.maxEntries = n }
}

// WithClock replaces time.Now for CreatedAt defaults.
func WithClock(now func() time.Time) Option {
	return func(s *HistoryStore) { s.now = now }
}

// Open opens (creating if needed) the database at path.
func Open(path string, opts ...Option) (*HistoryStore, error) {
	if path == "" {
		return nil, errors.New("history path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}

	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := db.Exec(InitMetadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize metadata: %w", err)
	}

	s := &HistoryStore{db: db, path: path, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Path returns the database file location.
func (s *HistoryStore) Path() string {
	return s.path
}

// Close releases the database.
func (s *HistoryStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// WRITE OPERATIONS
// =============================================================================

// Record stores e, filling ID, Mode and CreatedAt when unset, and returns
// the stored entry.
func (s *HistoryStore) Record(ctx context.Context, e Entry) (Entry, error) {
	if strings.TrimSpace(e.Query) == "" {
		return Entry{}, ErrEmptyQuery
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Mode == "" {
		e.Mode = "chat"
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO exchanges (id, room_id, conversation_id, message_id, mode, query,
			answer, error, implicit, created_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.RoomID, e.ConversationID, e.MessageID, e.Mode, e.Query,
		e.Answer, e.Error, boolToInt(e.Implicit), e.CreatedAt.UnixMilli(), e.DurationMs)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to record exchange: %w", err)
	}

	if s.maxEntries > 0 {
		_, err = tx.ExecContext(ctx, `
			DELETE FROM exchanges WHERE id NOT IN (
				SELECT id FROM exchanges ORDER BY created_at DESC, rowid DESC LIMIT ?
			)`, s.maxEntries)
		if err != nil {
			return Entry{}, fmt.Errorf("failed to prune history: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Entry{}, fmt.Errorf("failed to commit: %w", err)
	}
	e.CreatedAt = time.UnixMilli(e.CreatedAt.UnixMilli())
	return e, nil
}

// Delete removes one entry.
func (s *HistoryStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM exchanges WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// DeleteRoom removes every entry recorded for roomID and returns the count.
func (s *HistoryStore) DeleteRoom(ctx context.Context, roomID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM exchanges WHERE room_id = ?", roomID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete room history: %w", err)
	}
	return res.RowsAffected()
}

// =============================================================================
// READ OPERATIONS
// =============================================================================

const selectColumns = `SELECT id, room_id, conversation_id, message_id, mode, query,
	answer, error, implicit, created_at, duration_ms FROM exchanges`

// Get returns one entry by id.
func (s *HistoryStore) Get(ctx context.Context, id string) (Entry, error) {
	entries, err := s.query(ctx, selectColumns+" WHERE id = ?", id)
	if err != nil {
		return Entry{}, err
	}
	if len(entries) == 0 {
		return Entry{}, ErrEntryNotFound
	}
	return entries[0], nil
}

// Recent returns up to limit entries, newest first.
func (s *HistoryStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	return s.query(ctx, selectColumns+" ORDER BY created_at DESC, rowid DESC LIMIT ?", limit)
}

// ByRoom returns the entries of one room in the order they were recorded.
func (s *HistoryStore) ByRoom(ctx context.Context, roomID string) ([]Entry, error) {
	return s.query(ctx, selectColumns+" WHERE room_id = ? ORDER BY created_at, rowid", roomID)
}

// Search returns entries whose query or answer contains text
// (case-insensitive for ASCII), newest first.
func (s *HistoryStore) Search(ctx context.Context, text string) ([]Entry, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	pattern := "%" + escapeLike(text) + "%"
	return s.query(ctx, selectColumns+
		` WHERE query LIKE ? ESCAPE '\' OR answer LIKE ? ESCAPE '\'
		ORDER BY created_at DESC, rowid DESC`, pattern, pattern)
}

// Count returns the number of stored entries.
func (s *HistoryStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM exchanges").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return n, nil
}

func (s *HistoryStore) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e        Entry
			implicit int
			created  int64
		)
		if err := rows.Scan(&e.ID, &e.RoomID, &e.ConversationID, &e.MessageID, &e.Mode,
			&e.Query, &e.Answer, &e.Error, &implicit, &created, &e.DurationMs); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		e.Implicit = implicit != 0
		e.CreatedAt = time.UnixMilli(created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
