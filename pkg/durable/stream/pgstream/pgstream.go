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

// Package pgstream provides a PostgreSQL-backed stream.Stream for
// multi-node deployments, where several processes may need to resume
// the same workflow's log from a shared database rather than a local
// file.
package pgstream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/durably-run/durably/pkg/durable/event"
	"github.com/durably-run/durably/pkg/durable/stream"
	durablyerrors "github.com/durably-run/durably/pkg/errors"
)

// Stream is a PostgreSQL-backed stream.Stream. Rows are scoped by
// WorkflowID, so one pool can back many concurrent workflows' streams,
// unlike sqlitestream's one-file-per-workflow layout.
type Stream struct {
	pool       *pgxpool.Pool
	workflowID string
}

// New creates a Stream over an existing, externally-owned pool,
// scoped to workflowID. The caller is responsible for closing pool.
func New(pool *pgxpool.Pool, workflowID string) *Stream {
	return &Stream{pool: pool, workflowID: workflowID}
}

// Migrate creates the events table and its supporting index if they do
// not already exist. Call it once at startup before constructing any
// Stream against the pool.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS durably_events (
			workflow_id TEXT NOT NULL,
			offset_n BIGINT NOT NULL,
			payload JSONB NOT NULL,
			PRIMARY KEY (workflow_id, offset_n)
		);
		CREATE TABLE IF NOT EXISTS durably_streams (
			workflow_id TEXT PRIMARY KEY,
			closed BOOLEAN NOT NULL DEFAULT FALSE
		);
	`
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("pgstream: migrate: %w", err)
	}
	return nil
}

// Append implements stream.Stream.
func (s *Stream) Append(ctx context.Context, ev event.Event) (uint64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("pgstream: begin append: %w", err)
	}
	defer tx.Rollback(ctx)

	var closed bool
	err = tx.QueryRow(ctx, `
		INSERT INTO durably_streams (workflow_id, closed) VALUES ($1, FALSE)
		ON CONFLICT (workflow_id) DO UPDATE SET workflow_id = durably_streams.workflow_id
		RETURNING closed
	`, s.workflowID).Scan(&closed)
	if err != nil {
		return 0, fmt.Errorf("pgstream: read stream state: %w", err)
	}
	if closed {
		return 0, &durablyerrors.ClosedStreamError{Op: "append"}
	}

	var next *int64
	if err := tx.QueryRow(ctx, `SELECT MAX(offset_n) FROM durably_events WHERE workflow_id = $1`, s.workflowID).Scan(&next); err != nil {
		return 0, fmt.Errorf("pgstream: read tail offset: %w", err)
	}
	offset := uint64(0)
	if next != nil {
		offset = uint64(*next) + 1
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return 0, &durablyerrors.SerializationError{Context: "stream event", Cause: err}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO durably_events (workflow_id, offset_n, payload) VALUES ($1, $2, $3)
	`, s.workflowID, int64(offset), payload); err != nil {
		return 0, fmt.Errorf("pgstream: insert event: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("pgstream: commit append: %w", err)
	}

	return offset, nil
}

// Read implements stream.Stream.
func (s *Stream) Read(ctx context.Context, fromOffset int64) ([]stream.Entry, error) {
	if fromOffset < 0 {
		return nil, &durablyerrors.InvalidOffsetError{Offset: fromOffset}
	}

	rows, err := s.pool.Query(ctx, `
		SELECT offset_n, payload FROM durably_events
		WHERE workflow_id = $1 AND offset_n >= $2
		ORDER BY offset_n ASC
	`, s.workflowID, fromOffset)
	if err != nil {
		return nil, fmt.Errorf("pgstream: read: %w", err)
	}
	defer rows.Close()

	var entries []stream.Entry
	for rows.Next() {
		var offset int64
		var payload []byte
		if err := rows.Scan(&offset, &payload); err != nil {
			return nil, fmt.Errorf("pgstream: scan event: %w", err)
		}
		var ev event.Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, &durablyerrors.CorruptLogError{Offset: offset, Reason: err.Error()}
		}
		entries = append(entries, stream.Entry{Offset: uint64(offset), Event: ev})
	}
	return entries, rows.Err()
}

// Len implements stream.Stream.
func (s *Stream) Len(ctx context.Context) (uint64, error) {
	var n uint64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM durably_events WHERE workflow_id = $1`, s.workflowID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("pgstream: len: %w", err)
	}
	return n, nil
}

// Closed implements stream.Stream.
func (s *Stream) Closed(ctx context.Context) (bool, error) {
	var closed bool
	err := s.pool.QueryRow(ctx, `SELECT closed FROM durably_streams WHERE workflow_id = $1`, s.workflowID).Scan(&closed)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("pgstream: closed: %w", err)
	}
	return closed, nil
}

// Close implements stream.Stream. It marks the row closed in place; the
// pool itself is owned by the caller and is left open.
func (s *Stream) Close(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO durably_streams (workflow_id, closed) VALUES ($1, TRUE)
		ON CONFLICT (workflow_id) DO UPDATE SET closed = TRUE
	`, s.workflowID)
	if err != nil {
		return fmt.Errorf("pgstream: close: %w", err)
	}
	return nil
}

var _ stream.Stream = (*Stream)(nil)
