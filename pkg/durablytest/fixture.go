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

// Package durablytest provides fixtures, a record/replay property
// harness, and log-shape assertions for testing workflows built on
// pkg/durable, in the style of the teacher's internal/testing/fixture
// and internal/testing/assert packages.
package durablytest

import (
	"github.com/durably-run/durably/pkg/durable/event"
	"github.com/durably-run/durably/pkg/durable/stream"
)

// LogBuilder assembles a hand-rolled event log for tests that need to
// exercise the reducer or replay index against a specific, known
// history without first running a workflow to produce one.
type LogBuilder struct {
	events []event.Event
}

// NewLogBuilder returns an empty builder.
func NewLogBuilder() *LogBuilder {
	return &LogBuilder{}
}

// Yield appends a Yield event.
func (b *LogBuilder) Yield(coroutineID, effectID, description string) *LogBuilder {
	b.events = append(b.events, event.Yield(coroutineID, effectID, description))
	return b
}

// NextOK appends a successful Next event.
func (b *LogBuilder) NextOK(coroutineID, effectID string, value event.Value) *LogBuilder {
	b.events = append(b.events, event.NextOK(coroutineID, effectID, value))
	return b
}

// NextErr appends a failing Next event.
func (b *LogBuilder) NextErr(coroutineID, effectID string, err *event.SerializedError) *LogBuilder {
	b.events = append(b.events, event.NextErr(coroutineID, effectID, err))
	return b
}

// Spawn appends a Spawn event.
func (b *LogBuilder) Spawn(parentCoroutineID, childCoroutineID string) *LogBuilder {
	b.events = append(b.events, event.SpawnEvent(parentCoroutineID, childCoroutineID))
	return b
}

// CloseOK appends a successful Close event.
func (b *LogBuilder) CloseOK(coroutineID string, value event.Value) *LogBuilder {
	b.events = append(b.events, event.CloseOK(coroutineID, value))
	return b
}

// CloseErr appends a failing Close event.
func (b *LogBuilder) CloseErr(coroutineID string, err *event.SerializedError) *LogBuilder {
	b.events = append(b.events, event.CloseErr(coroutineID, err))
	return b
}

// CloseCancelled appends a cancelled Close event.
func (b *LogBuilder) CloseCancelled(coroutineID string) *LogBuilder {
	b.events = append(b.events, event.CloseCancelled(coroutineID))
	return b
}

// Events returns the built event slice.
func (b *LogBuilder) Events() []event.Event {
	return append([]event.Event(nil), b.events...)
}

// Stream builds an in-memory stream pre-populated with the built
// events, open or closed per the closed argument.
func (b *LogBuilder) Stream(closed bool) *stream.Memory {
	return stream.FromEvents(b.Events(), closed)
}
