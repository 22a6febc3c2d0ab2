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

// Package host defines the seam between the reducer (pkg/durable/reducer)
// and the coroutine/effect host it drives. This is deliberately an
// out-of-scope collaborator per the runtime's design: the reducer only
// ever depends on these interfaces, never on a concrete coroutine
// implementation. Generator (generator.go) is the reference
// implementation used by this module's own tests and by workflow
// authors who want an imperative coroutine body.
package host

import "github.com/durably-run/durably/pkg/durable/event"

// Resolution is the outcome fed back into a coroutine after one of its
// effects is resolved: a JSON-safe value on success, or an error.
type Resolution struct {
	OK    bool
	Value event.Value
	Err   error
}

// OK builds a successful Resolution.
func OK(v event.Value) Resolution { return Resolution{OK: true, Value: v} }

// Errored builds a failing Resolution.
func Errored(err error) Resolution { return Resolution{OK: false, Err: err} }

// ResumeFunc is the callback an Effect's Enter is given to report its
// resolution. The host's effect protocol guarantees it is invoked at
// most once per effect.
type ResumeFunc func(Resolution)

// Effect is a named suspension point. Description is the divergence-check
// label (spec §4.4/§4.7); Enter is invoked by the reducer to actually run
// the effect's side effect, on the live path only.
type Effect struct {
	Description string
	Enter       func(resume ResumeFunc)
}

// Method identifies how a coroutine's iterator should be driven for one
// step, mirroring a generator's next/return/throw protocol.
type Method string

const (
	// MethodNext resumes the coroutine with a value.
	MethodNext Method = "next"
	// MethodReturn asks the coroutine to terminate early with a value,
	// running any pending finalizers.
	MethodReturn Method = "return"
	// MethodThrow resumes the coroutine by throwing an error at its
	// current suspension point.
	MethodThrow Method = "throw"
)

// StepResult is what driving a Coroutine one step produces: either the
// next effect it suspended on, or its terminal outcome.
type StepResult struct {
	// Done is true once the coroutine has no further effects to yield.
	Done bool

	// Effect is valid when !Done.
	Effect Effect

	// Value is the terminal value, valid when Done && Err == nil.
	Value event.Value

	// Err is the terminal error, valid when Done && Err != nil.
	Err error
}

// Coroutine is the minimal shape the reducer needs to drive a workflow:
// an iterator advanced one step at a time, fed the resolution of
// whatever effect it last yielded. A fresh Coroutine is driven with
// Step(MethodNext, Resolution{}) to obtain its first effect or its
// immediate terminal value (e.g. a workflow that returns without
// suspending at all).
type Coroutine interface {
	Step(method Method, res Resolution) StepResult
}

// ScopeHandle identifies a coroutine's scope to the host. Concrete host
// implementations hand the reducer and the scope-lifecycle middleware
// opaque, comparable handles (typically pointers); the runtime never
// inspects them beyond using them as map keys.
type ScopeHandle = any
