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

// Package stream defines the durable execution runtime's append-only
// event log and an in-memory reference implementation.
//
// A Stream is a workflow's identity: a workflow and its stream are
// one-to-one, and the offset after the last event is the workflow's
// checkpoint. All durability in this module is expressed in terms of
// this interface; a production backend (see sqlitestream) replaces the
// in-memory implementation without touching the reducer.
package stream

import (
	"context"
	"sync"

	durablyerrors "github.com/durably-run/durably/pkg/errors"

	"github.com/durably-run/durably/pkg/durable/event"
)

// Entry pairs a dense, monotonically-assigned offset with the event
// appended at that position.
type Entry struct {
	Offset uint64      `json:"offset"`
	Event  event.Event `json:"event"`
}

// Stream is the append-only, offset-indexed log a reducer records
// against and replays from. Implementations must serialize Append calls
// so offsets are assigned without gaps or races (see Memory for the
// reference behavior).
type Stream interface {
	// Append writes event to the tail of the stream and returns the
	// offset it was assigned. Fails with a *errors.ClosedStreamError if
	// the stream has been closed.
	Append(ctx context.Context, ev event.Event) (uint64, error)

	// Read returns every entry from fromOffset (inclusive) to the
	// current tail, in offset order. Fails with a
	// *errors.InvalidOffsetError if fromOffset is negative.
	Read(ctx context.Context, fromOffset int64) ([]Entry, error)

	// Len returns the current number of entries in the stream.
	Len(ctx context.Context) (uint64, error)

	// Closed reports whether Close has been called.
	Closed(ctx context.Context) (bool, error)

	// Close puts the stream into its terminal state; subsequent Append
	// calls fail. Close is idempotent.
	Close(ctx context.Context) error
}

// Memory is an in-memory Stream, the reference implementation used for
// tests and for ephemeral workflows that don't need cross-process
// resume.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
	closed  bool
}

// NewMemory creates an empty, open in-memory stream.
func NewMemory() *Memory {
	return &Memory{}
}

// FromEvents constructs a pre-populated in-memory stream, for tests and
// for resuming from a log already loaded from persistent storage.
func FromEvents(events []event.Event, closed bool) *Memory {
	m := &Memory{
		entries: make([]Entry, len(events)),
		closed:  closed,
	}
	for i, ev := range events {
		m.entries[i] = Entry{Offset: uint64(i), Event: ev}
	}
	return m
}

// Append implements Stream.
func (m *Memory) Append(_ context.Context, ev event.Event) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, &durablyerrors.ClosedStreamError{Op: "append"}
	}
	offset := uint64(len(m.entries))
	m.entries = append(m.entries, Entry{Offset: offset, Event: ev})
	return offset, nil
}

// Read implements Stream.
func (m *Memory) Read(_ context.Context, fromOffset int64) ([]Entry, error) {
	if fromOffset < 0 {
		return nil, &durablyerrors.InvalidOffsetError{Offset: fromOffset}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if uint64(fromOffset) >= uint64(len(m.entries)) {
		return nil, nil
	}
	out := make([]Entry, len(m.entries)-int(fromOffset))
	copy(out, m.entries[fromOffset:])
	return out, nil
}

// Len implements Stream.
func (m *Memory) Len(_ context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return uint64(len(m.entries)), nil
}

// Closed implements Stream.
func (m *Memory) Closed(_ context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed, nil
}

// Close implements Stream.
func (m *Memory) Close(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var _ Stream = (*Memory)(nil)
