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

// Package durable is the workflow-authoring surface: the durably()
// entry point and the six structured-concurrency primitives (spawn,
// all, race, resource, scoped, each) described in spec §6. None of
// these implement durability logic themselves — they delegate every
// decision to the reducer (pkg/durable/reducer), scope middleware
// (pkg/durable/scope) and replay index (pkg/durable/replay) wired up by
// Run. Their only job is to brand a workflow author's Go code as a
// durable operation and give it a place to call Effect.
package durable

import (
	"context"

	"github.com/durably-run/durably/pkg/durable/event"
	"github.com/durably-run/durably/pkg/durable/host"
)

// Op is a durable workflow operation: the unit every primitive in this
// package accepts and returns. A workflow is itself an Op, run by Run;
// spawn, all, race, and scoped run nested Ops as child coroutines.
type Op func(wctx *Context) (event.Value, error)

// Context is the handle a running Op uses to suspend on effects and to
// start nested durable operations. It is supplied by the runtime, never
// constructed directly by a workflow author.
type Context struct {
	rt          *Runtime
	ctx         context.Context
	scopeHandle host.ScopeHandle
	coroutineID string
	yield       host.Yield
}

// Context returns the Go context threaded through this Op's lifetime.
// It is cancelled when the operation is cancelled by Race, and derives
// from the context Run was called with.
func (c *Context) Context() context.Context { return c.ctx }

// Effect suspends the calling Op on a single named effect: description
// is the divergence-check label, and enter performs the effect's actual
// side effect, invoking resume at most once with the outcome. This is
// the primitive every domain-specific effect (sleep, an HTTP call, a
// database read) is built from outside this package.
func (c *Context) Effect(description string, enter func(resume host.ResumeFunc)) host.Resolution {
	return c.yield(host.Effect{Description: description, Enter: enter})
}
