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

// Package scope implements the scope-lifecycle middleware installed
// once on a workflow's root scope: it assigns stable coroutine
// identities to every scope the host creates, and records their
// Spawn/Close lifecycle transitions.
package scope

import (
	"fmt"
	"sync"

	"github.com/durably-run/durably/pkg/durable/host"
)

// registry tracks the scope <-> coroutine_id <-> parent relationships
// the middleware needs. It is mutated only from within the reduce
// loop's middleware callbacks, which the runtime's single-threaded
// cooperative model already serializes (§5); the mutex here guards
// against a host that calls create/destroy from a different goroutine
// than the one driving the reducer, which the interfaces in this
// module do not forbid.
type registry struct {
	mu                sync.Mutex
	scopeToCoroutine  map[host.ScopeHandle]string
	coroutineToParent map[string]string
	counter           int
}

func newRegistry() *registry {
	return &registry{
		scopeToCoroutine:  make(map[host.ScopeHandle]string),
		coroutineToParent: make(map[string]string),
	}
}

// mintCoroutineID produces a fresh identifier for a live (non-replayed)
// spawn. The "coroutine-N" shape is a convention for readability in
// logs and the durably-inspect CLI; nothing treats it as meaningful.
func (r *registry) mintCoroutineID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counter++
	return fmt.Sprintf("coroutine-%d", r.counter)
}

func (r *registry) register(s host.ScopeHandle, coroutineID, parentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scopeToCoroutine[s] = coroutineID
	r.coroutineToParent[coroutineID] = parentID
}

func (r *registry) unregister(s host.ScopeHandle, coroutineID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.scopeToCoroutine, s)
	delete(r.coroutineToParent, coroutineID)
}

// coroutineID returns the coroutine id registered for s, if s is
// currently a registered scope. Looking up an unregistered scope (one
// mid-teardown, or never registered) reports ok=false, which callers
// use to fall back to the infrastructure effect path (§4.6 step 2).
func (r *registry) coroutineID(s host.ScopeHandle) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.scopeToCoroutine[s]
	return id, ok
}

func (r *registry) parentID(coroutineID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.coroutineToParent[coroutineID]
	return id, ok
}
