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

package scope

import (
	"context"
	"sync"

	"github.com/durably-run/durably/pkg/durable/event"
	"github.com/durably-run/durably/pkg/durable/host"
	"github.com/durably-run/durably/pkg/durable/replay"
	"github.com/durably-run/durably/pkg/durable/stream"
)

// Outcome is a scope's terminal state, as the host's structured
// teardown reports it: the delimiter's return value, a thrown error, or
// a cancellation imposed by an ancestor.
type Outcome struct {
	Status event.Status
	Value  event.Value
	Err    error
}

// OK builds a successful Outcome.
func OK(value event.Value) Outcome { return Outcome{Status: event.StatusOK, Value: value} }

// Failed builds a failing Outcome.
func Failed(err error) Outcome { return Outcome{Status: event.StatusErr, Err: err} }

// Cancelled builds an Outcome for a scope torn down by an ancestor's
// cancellation rather than its own return or throw.
func Cancelled() Outcome { return Outcome{Status: event.StatusCancelled} }

// Teardown is the host's native per-scope teardown operation, wrapped
// by Middleware.Destroy in a try/finally that records the result.
type Teardown func(ctx context.Context) Outcome

// Middleware is the scope-lifecycle middleware described in §4.5: it
// intercepts the host's create/destroy/set/delete scope operations to
// assign stable coroutine identities and to record Spawn/Close events.
// It is installed once, on a workflow's root scope.
type Middleware struct {
	registry *registry
	index    *replay.Index
	stream   stream.Stream

	mu         sync.Mutex
	rootOutcome *Outcome
	rootClosed  bool
}

// New constructs a Middleware bound to idx (built from the stream's
// current contents) and str (the stream new events are appended to).
func New(idx *replay.Index, str stream.Stream) *Middleware {
	return &Middleware{
		registry: newRegistry(),
		index:    idx,
		stream:   str,
	}
}

// Create implements the host's create(parent) -> (child, destroy)
// operation. parent is the ScopeHandle of the scope creating child; for
// the workflow's very first (root) scope, parent is the zero
// host.ScopeHandle and has no registered coroutine id.
func (m *Middleware) Create(ctx context.Context, parent, child host.ScopeHandle) (coroutineID string, err error) {
	parentID, hasParent := m.registry.coroutineID(parent)
	if !hasParent {
		m.registry.register(child, event.RootCoroutineID, "")
		return event.RootCoroutineID, nil
	}

	if spawn, ok := m.index.PeekSpawn(); ok && spawn.CoroutineID == parentID {
		m.index.ConsumeSpawn()
		m.registry.register(child, spawn.ChildCoroutineID, parentID)
		return spawn.ChildCoroutineID, nil
	}

	coroutineID = m.registry.mintCoroutineID()
	if _, err := m.stream.Append(ctx, event.SpawnEvent(parentID, coroutineID)); err != nil {
		return "", err
	}
	m.registry.register(child, coroutineID, parentID)
	return coroutineID, nil
}

// Destroy implements the host's destroy(scope) operation: it runs
// teardown, then records the scope's Close (or consumes the already-
// recorded one on replay) before unregistering the scope.
func (m *Middleware) Destroy(ctx context.Context, scope host.ScopeHandle, teardown Teardown) (Outcome, error) {
	coroutineID, known := m.registry.coroutineID(scope)
	if !known {
		// Already unregistered; nothing to record. Still run teardown so
		// the host's own cleanup happens.
		return teardown(ctx), nil
	}
	parentID, _ := m.registry.parentID(coroutineID)

	outcome := teardown(ctx)

	defer m.registry.unregister(scope, coroutineID)

	if err := m.recordClose(ctx, coroutineID, outcome); err != nil {
		return outcome, err
	}

	if coroutineID != event.RootCoroutineID && parentID == event.RootCoroutineID {
		if err := m.closeRootIfLatent(ctx); err != nil {
			return outcome, err
		}
	}

	return outcome, nil
}

func (m *Middleware) recordClose(ctx context.Context, coroutineID string, outcome Outcome) error {
	if _, ok := m.index.Close(coroutineID); ok {
		m.index.ConsumeClose(coroutineID)
		return nil
	}

	var ev event.Event
	switch outcome.Status {
	case event.StatusErr:
		ev = event.CloseErr(coroutineID, event.SerializeError(outcome.Err))
	case event.StatusCancelled:
		ev = event.CloseCancelled(coroutineID)
	default:
		ev = event.CloseOK(coroutineID, outcome.Value)
	}
	_, err := m.stream.Append(ctx, ev)
	return err
}

// SetRootOutcome records the workflow's terminal outcome as soon as the
// runtime driver knows it. It only stores the outcome and writes
// nothing: the root's Close is written by the next Destroy of a direct
// child of the root (the latch below) or by CloseRoot. A direct child
// that finished tearing down before this call does not trigger it.
func (m *Middleware) SetRootOutcome(o Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rootOutcome = &o
}

// closeRootIfLatent emits the root's Close exactly once, as soon as
// both a direct child of the root has torn down and the root's own
// outcome is known. This lets the root's close be written synchronously
// within structured teardown, ahead of any outer resource cleanup that
// might close the stream (§4.5).
func (m *Middleware) closeRootIfLatent(ctx context.Context) error {
	m.mu.Lock()
	if m.rootClosed || m.rootOutcome == nil {
		m.mu.Unlock()
		return nil
	}
	m.rootClosed = true
	outcome := *m.rootOutcome
	m.mu.Unlock()

	return m.recordClose(ctx, event.RootCoroutineID, outcome)
}

// CloseRoot closes the root scope, for drivers whose host does not
// route the root through Destroy like any other scope. It is a no-op
// if the latch in closeRootIfLatent already fired.
func (m *Middleware) CloseRoot(ctx context.Context, outcome Outcome) error {
	m.SetRootOutcome(outcome)
	return m.closeRootIfLatent(ctx)
}

// Set implements the host's set(scope, context, value) operation. Per
// §4.5 this runtime's 4-event schema treats scope-local context as
// live-only state: it is passed straight through to the host without
// recording anything.
func (m *Middleware) Set(_ context.Context, _ host.ScopeHandle, _, _ any) {}

// Delete implements the host's delete(scope, context) operation, also
// passed through unrecorded.
func (m *Middleware) Delete(_ context.Context, _ host.ScopeHandle, _ any) {}

// CoroutineID exposes the coroutine id registered for scope, for
// collaborators (the reducer) that need it outside the create/destroy
// calls above.
func (m *Middleware) CoroutineID(scope host.ScopeHandle) (string, bool) {
	return m.registry.coroutineID(scope)
}
