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

package durable

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/durably-run/durably/pkg/durable/event"
	"github.com/durably-run/durably/pkg/durable/host"
	"github.com/durably-run/durably/pkg/durable/scope"
)

// Spawn starts op as a child coroutine under the calling operation's
// scope and returns immediately with a Handle, without waiting for op
// to finish. A Spawn(parent, child) event is recorded before the child
// begins; its Close is recorded on teardown regardless of whether op
// succeeds, fails, or is cancelled (spec §6).
func (c *Context) Spawn(op Op) (*Handle, error) {
	childScope := &struct{ _ byte }{}
	childCoroutineID, err := c.rt.mw.Create(c.ctx, c.scopeHandle, childScope)
	if err != nil {
		return nil, err
	}

	childCtx, cancel := context.WithCancel(c.ctx)
	childWctx := &Context{rt: c.rt, ctx: childCtx, scopeHandle: childScope, coroutineID: childCoroutineID}
	coro := host.NewGenerator(func(yield host.Yield) (any, error) {
		childWctx.yield = yield
		return op(childWctx)
	})

	h := &Handle{done: make(chan host.StepResult, 1), cancel: cancel}

	teardown := func(result host.StepResult) {
		h.mu.Lock()
		cancelled := h.cancelled
		h.mu.Unlock()

		outcome := scope.OK(result.Value)
		switch {
		case cancelled:
			outcome = scope.Cancelled()
		case result.Err != nil:
			outcome = scope.Failed(result.Err)
		}
		// Use the parent's context, not the child's: the child's may
		// already be cancelled, but the Close event for its own
		// cancellation must still be written.
		_, _ = c.rt.mw.Destroy(c.ctx, childScope, func(context.Context) scope.Outcome { return outcome })

		if cancelled {
			result = host.StepResult{Done: true, Err: ErrCancelled}
		}
		h.done <- result
	}

	if err := c.rt.reducer.Start(childCtx, childScope, coro, teardown); err != nil {
		cancel()
		return nil, err
	}
	return h, nil
}

// All runs every op concurrently as a spawned child, each getting its
// own Spawn/Close pair, and waits for all of them to finish (spec §6).
// It returns the first error encountered. A failing op does not cancel
// the others: every op runs to completion before All returns.
func (c *Context) All(ops ...Op) ([]event.Value, error) {
	handles := make([]*Handle, len(ops))
	for i, op := range ops {
		h, err := c.Spawn(op)
		if err != nil {
			cancelAll(handles[:i])
			return nil, err
		}
		handles[i] = h
	}

	values := make([]event.Value, len(ops))
	g, _ := errgroup.WithContext(c.ctx)
	for i, h := range handles {
		i, h := i, h
		g.Go(func() error {
			v, err := h.Await()
			if err != nil {
				return err
			}
			values[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		cancelAll(handles)
		return nil, err
	}
	return values, nil
}

// Race runs every op concurrently as a spawned child and returns the
// first one to finish. The winner's Close is recorded before the
// losers', whose contexts are cancelled so their eventual Close records
// status cancelled (spec §6).
func (c *Context) Race(ops ...Op) (event.Value, error) {
	if len(ops) == 0 {
		return nil, errors.New("durably: race requires at least one operand")
	}

	handles := make([]*Handle, len(ops))
	for i, op := range ops {
		h, err := c.Spawn(op)
		if err != nil {
			cancelAll(handles[:i])
			return nil, err
		}
		handles[i] = h
	}

	type arrival struct {
		idx   int
		value event.Value
		err   error
	}
	arrivals := make(chan arrival, len(handles))
	for i, h := range handles {
		i, h := i, h
		go func() {
			v, err := h.Await()
			arrivals <- arrival{idx: i, value: v, err: err}
		}()
	}

	winner := <-arrivals
	for i, h := range handles {
		if i != winner.idx {
			h.Cancel()
		}
	}
	return winner.value, winner.err
}

// Scoped runs op as a child scope and waits for it, so every effect op
// performs is recorded as part of its own subtree, and that subtree
// closes even if op returns an error (spec §6). It is Spawn immediately
// followed by Await.
func (c *Context) Scoped(op Op) (event.Value, error) {
	h, err := c.Spawn(op)
	if err != nil {
		return nil, err
	}
	return h.Await()
}

// Resource acquires a value via acquire, passes it to use, and releases
// it afterward regardless of whether use succeeds. The acquisition
// itself is recorded as a single user effect under description, so
// replay reuses the recorded value without re-running acquire; release
// only ever runs on the live path, since nothing was actually acquired
// on a replayed run (spec §6).
func (c *Context) Resource(description string, acquire func() (event.Value, func() error, error), use func(value event.Value) error) error {
	var release func() error
	res := c.Effect(description, func(resume host.ResumeFunc) {
		value, rel, err := acquire()
		release = rel
		if err != nil {
			resume(host.Errored(err))
			return
		}
		resume(host.OK(value))
	})
	if !res.OK {
		return res.Err
	}
	defer func() {
		if release != nil {
			_ = release()
		}
	}()
	return use(res.Value)
}

// Each iterates items, recording each item's receipt as a user effect
// against a dedicated subscription scope rather than the caller's own
// scope, while body's own effects record against the caller's scope
// like any other code running there (spec §6). It stops and returns
// body's error as soon as body fails.
func (c *Context) Each(items <-chan event.Value, body func(item event.Value) error) error {
	subScope := &struct{ _ byte }{}
	if _, err := c.rt.mw.Create(c.ctx, c.scopeHandle, subScope); err != nil {
		return err
	}
	defer func() {
		_, _ = c.rt.mw.Destroy(c.ctx, subScope, func(context.Context) scope.Outcome { return scope.OK(nil) })
	}()

	idx := 0
	for item := range items {
		description := fmt.Sprintf("stream-item-%d", idx)
		idx++
		if err := c.receiveStreamItem(subScope, description, item); err != nil {
			return err
		}
		if err := body(item); err != nil {
			return err
		}
	}
	return nil
}

// receiveStreamItem drives a single-shot coroutine under scopeHandle
// that immediately yields one effect carrying value, so an Each
// iteration's bookkeeping goes through the exact same record/replay
// path as any other effect, scoped to the subscription rather than the
// caller.
func (c *Context) receiveStreamItem(scopeHandle host.ScopeHandle, description string, value event.Value) error {
	done := make(chan host.StepResult, 1)
	coro := host.NewGenerator(func(yield host.Yield) (any, error) {
		res := yield(host.Effect{
			Description: description,
			Enter:       func(resume host.ResumeFunc) { resume(host.OK(value)) },
		})
		return res.Value, res.Err
	})
	if err := c.rt.reducer.Start(c.ctx, scopeHandle, coro, func(result host.StepResult) { done <- result }); err != nil {
		return err
	}
	result := <-done
	return result.Err
}

func cancelAll(handles []*Handle) {
	for _, h := range handles {
		h.Cancel()
	}
}
