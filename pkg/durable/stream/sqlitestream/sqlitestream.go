// Copyright 2026 The Durably Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sqlitestream provides a SQLite-backed stream.Stream for
// single-node deployments that need a workflow to survive a process
// restart: events are appended to an on-disk, append-only table instead
// of an in-memory slice, so a Stream opened against the same path picks
// up exactly where the prior process left off.
package sqlitestream

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/durably-run/durably/pkg/durable/event"
	"github.com/durably-run/durably/pkg/durable/stream"
	durablyerrors "github.com/durably-run/durably/pkg/errors"
)

// Stream is a SQLite-backed stream.Stream. One Stream owns one on-disk
// database and therefore one workflow's event log; open a distinct
// Config.Path per workflow run.
type Stream struct {
	db *sql.DB

	// mu serializes Append the way the teacher's sqlite backend limits
	// its pool to a single write connection: SQLite itself serializes
	// writers, so holding the lock for the read-modify-write offset
	// assignment avoids a busy-retry loop under concurrent Append calls.
	mu sync.Mutex
}

// Config contains SQLite connection configuration.
type Config struct {
	// Path is the database file path.
	Path string

	// WAL enables Write-Ahead Logging mode for concurrent reads.
	WAL bool
}

// Open creates or resumes a SQLite-backed stream at cfg.Path, running
// migrations if the events table does not yet exist.
func Open(ctx context.Context, cfg Config) (*Stream, error) {
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlitestream: open database: %w", err)
	}

	// SQLite serializes writes; only one connection avoids lock
	// contention surfacing as SQLITE_BUSY under our own mutex.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestream: connect: %w", err)
	}

	s := &Stream{db: db}
	if err := s.configurePragmas(ctx, cfg.WAL); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestream: configure pragmas: %w", err)
	}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestream: migrate: %w", err)
	}

	return s, nil
}

func (s *Stream) configurePragmas(ctx context.Context, enableWAL bool) error {
	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	if enableWAL {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, pragma := range pragmas {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}

func (s *Stream) migrate(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS events (
			offset INTEGER PRIMARY KEY,
			payload TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS stream_state (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			closed INTEGER NOT NULL DEFAULT 0
		);
		INSERT OR IGNORE INTO stream_state (id, closed) VALUES (1, 0);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Append implements stream.Stream.
func (s *Stream) Append(ctx context.Context, ev event.Event) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlitestream: begin append: %w", err)
	}
	defer tx.Rollback()

	var closed bool
	if err := tx.QueryRowContext(ctx, `SELECT closed FROM stream_state WHERE id = 1`).Scan(&closed); err != nil {
		return 0, fmt.Errorf("sqlitestream: read stream state: %w", err)
	}
	if closed {
		return 0, &durablyerrors.ClosedStreamError{Op: "append"}
	}

	var next sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(offset) FROM events`).Scan(&next); err != nil {
		return 0, fmt.Errorf("sqlitestream: read tail offset: %w", err)
	}
	offset := uint64(0)
	if next.Valid {
		offset = uint64(next.Int64) + 1
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return 0, &durablyerrors.SerializationError{Context: "stream event", Cause: err}
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO events (offset, payload) VALUES (?, ?)`, offset, string(payload)); err != nil {
		return 0, fmt.Errorf("sqlitestream: insert event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlitestream: commit append: %w", err)
	}

	return offset, nil
}

// Read implements stream.Stream.
func (s *Stream) Read(ctx context.Context, fromOffset int64) ([]stream.Entry, error) {
	if fromOffset < 0 {
		return nil, &durablyerrors.InvalidOffsetError{Offset: fromOffset}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT offset, payload FROM events WHERE offset >= ? ORDER BY offset ASC`, fromOffset)
	if err != nil {
		return nil, fmt.Errorf("sqlitestream: read: %w", err)
	}
	defer rows.Close()

	var entries []stream.Entry
	for rows.Next() {
		var offset uint64
		var payload string
		if err := rows.Scan(&offset, &payload); err != nil {
			return nil, fmt.Errorf("sqlitestream: scan event: %w", err)
		}
		var ev event.Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, &durablyerrors.CorruptLogError{Offset: int64(offset), Reason: err.Error()}
		}
		entries = append(entries, stream.Entry{Offset: offset, Event: ev})
	}
	return entries, rows.Err()
}

// Len implements stream.Stream.
func (s *Stream) Len(ctx context.Context) (uint64, error) {
	var n uint64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlitestream: len: %w", err)
	}
	return n, nil
}

// Closed implements stream.Stream.
func (s *Stream) Closed(ctx context.Context) (bool, error) {
	var closed bool
	err := s.db.QueryRowContext(ctx, `SELECT closed FROM stream_state WHERE id = 1`).Scan(&closed)
	if err != nil {
		return false, fmt.Errorf("sqlitestream: closed: %w", err)
	}
	return closed, nil
}

// Close implements stream.Stream. It marks the stream closed and
// releases the database handle. It is not idempotent: a second call
// returns an error, since the handle it would update is released.
func (s *Stream) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `UPDATE stream_state SET closed = 1 WHERE id = 1`); err != nil {
		return fmt.Errorf("sqlitestream: close: %w", err)
	}
	return s.db.Close()
}

// ReleaseHandle closes the underlying database connection without
// marking the stream closed, for read-only consumers (durably-inspect)
// that must not affect a workflow that may still be running against
// this file.
func (s *Stream) ReleaseHandle() error {
	return s.db.Close()
}

var _ stream.Stream = (*Stream)(nil)
