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

	"github.com/durably-run/durably/pkg/durable/event"
	"github.com/durably-run/durably/pkg/durable/host"
	"github.com/durably-run/durably/pkg/durable/reducer"
	"github.com/durably-run/durably/pkg/durable/replay"
	"github.com/durably-run/durably/pkg/durable/scope"
	"github.com/durably-run/durably/pkg/durable/stream"
)

// Runtime bundles the reducer, scope middleware, replay index, and
// stream a single workflow execution is wired against. Run constructs
// one per call; Context methods reach it to start nested coroutines.
type Runtime struct {
	reducer *reducer.Reducer
	mw      *scope.Middleware
	index   *replay.Index
	stream  stream.Stream
}

// Run is this runtime's durably() entry point (spec §6): it executes op
// to produce the workflow's root coroutine, installs the reducer and
// scope middleware on the root scope, drives the coroutine to
// completion (replaying any prefix already in the stream, then running
// live), and returns its terminal value or propagates its terminal
// error.
//
// The stream is read in full at construction time; passing one already
// containing a prior run's events is how a workflow resumes after a
// restart. Omitting WithStream runs op against a fresh, ephemeral
// in-memory stream.
func Run(ctx context.Context, op Op, opts ...Option) (event.Value, error) {
	cfg := newRuntimeOptions(opts)
	str := cfg.stream

	entries, err := str.Read(ctx, 0)
	if err != nil {
		return nil, err
	}
	events := make([]event.Event, len(entries))
	for i, e := range entries {
		events[i] = e.Event
	}

	idx := replay.New(events)
	mw := scope.New(idx, str)
	red := reducer.New(idx, mw, str, reducer.WithObserver(cfg.observer()))
	rt := &Runtime{reducer: red, mw: mw, index: idx, stream: str}

	rootScope := &struct{ _ byte }{}
	rootCoroutineID, err := mw.Create(ctx, nil, rootScope)
	if err != nil {
		return nil, err
	}

	wctx := &Context{rt: rt, ctx: ctx, scopeHandle: rootScope, coroutineID: rootCoroutineID}
	coro := host.NewGenerator(func(yield host.Yield) (any, error) {
		wctx.yield = yield
		return op(wctx)
	})

	done := make(chan host.StepResult, 1)
	if err := red.Start(ctx, rootScope, coro, func(result host.StepResult) { done <- result }); err != nil {
		return nil, err
	}

	result := <-done

	outcome := scope.OK(result.Value)
	if result.Err != nil {
		outcome = scope.Failed(result.Err)
	}
	if _, err := mw.Destroy(ctx, rootScope, func(context.Context) scope.Outcome { return outcome }); err != nil {
		return result.Value, err
	}

	if err := str.Close(ctx); err != nil {
		return result.Value, err
	}

	return result.Value, result.Err
}
