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

// Package runctx stamps a workflow run's correlation id into a
// context.Context, so a run's logs, traces, and metrics can all be
// joined by the same id even though they come from the reducer, the
// scope middleware, and the stream implementation independently.
package runctx

import (
	"context"
	"regexp"

	"github.com/google/uuid"
)

// RunID identifies one durable.Run invocation, in RFC 4122 UUID form.
type RunID string

type runIDKeyType struct{}

var runIDKey = runIDKeyType{}

var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// NewRunID mints a fresh run id.
func NewRunID() RunID {
	return RunID(uuid.New().String())
}

// String returns the run id's string form.
func (id RunID) String() string { return string(id) }

// IsValid reports whether id is a well-formed UUID.
func (id RunID) IsValid() bool {
	return uuidRegex.MatchString(string(id))
}

// ToContext attaches id to ctx.
func ToContext(ctx context.Context, id RunID) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// FromContext retrieves the run id stamped by ToContext, minting a new
// one if ctx carries none. Useful at a boundary (a new goroutine spawned
// without the parent's run id, a test) that still needs a usable id.
func FromContext(ctx context.Context) RunID {
	if id, ok := ctx.Value(runIDKey).(RunID); ok {
		return id
	}
	return NewRunID()
}

// FromContextOrEmpty retrieves the run id stamped by ToContext, or the
// empty RunID if ctx carries none.
func FromContextOrEmpty(ctx context.Context) RunID {
	if id, ok := ctx.Value(runIDKey).(RunID); ok {
		return id
	}
	return ""
}
