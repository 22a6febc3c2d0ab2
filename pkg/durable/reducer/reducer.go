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

// Package reducer implements the single point through which every
// workflow effect passes: for each one it decides record vs. replay,
// enforces divergence detection, and wraps the effect's resolution
// callback so a live resolution is durably recorded before the
// coroutine sees it.
package reducer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/durably-run/durably/internal/durablelog"
	"github.com/durably-run/durably/internal/durablemetrics"
	durablyerrors "github.com/durably-run/durably/pkg/errors"

	"github.com/durably-run/durably/pkg/durable/event"
	"github.com/durably-run/durably/pkg/durable/host"
	"github.com/durably-run/durably/pkg/durable/replay"
	"github.com/durably-run/durably/pkg/durable/scope"
	"github.com/durably-run/durably/pkg/durable/stream"
)

// Observer bundles the reducer's optional ambient-stack dependencies.
// With a zero-value Observer no spans are started and no metrics are
// recorded on a Collector; logging is not disabled but falls back to
// slog's default logger.
type Observer struct {
	Logger  *slog.Logger
	Metrics *durablemetrics.Collector
	Tracer  trace.Tracer
}

func (o Observer) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Option configures a Reducer at construction time.
type Option func(*Reducer)

// WithObserver wires logging, metrics, and tracing into the reducer's
// effect dispatch path.
func WithObserver(obs Observer) Option {
	return func(r *Reducer) { r.obs = obs }
}

// instruction is one unit of work on the reducer's queue: drive coro
// one step with method and res.
type instruction struct {
	scope  host.ScopeHandle
	coro   host.Coroutine
	method host.Method
	res    host.Resolution
}

// Reducer is the runtime's reducer, described in §4.6. It replaces the
// host's built-in reducer: the host hands every effect to handleEffect
// via the Effect.Enter contract, and every coroutine's completion is
// reported to the callback registered for it at Start.
type Reducer struct {
	idx *replay.Index
	mw  *scope.Middleware
	str stream.Stream

	mu       sync.Mutex
	reducing bool
	queue    []instruction
	onDone   map[host.ScopeHandle]func(host.StepResult)

	effectCounter int64

	obs Observer
}

// New builds a Reducer over idx (built from the stream's current
// contents), mw (the installed scope-lifecycle middleware), and str
// (the stream new Yield/Next events are appended to). Pass WithObserver
// to wire logging, metrics, and tracing; omitted, the reducer runs
// without metrics or tracing and logs to slog.Default().
func New(idx *replay.Index, mw *scope.Middleware, str stream.Stream, opts ...Option) *Reducer {
	r := &Reducer{idx: idx, mw: mw, str: str, onDone: make(map[host.ScopeHandle]func(host.StepResult))}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reducing reports whether a reduction is currently in progress.
func (r *Reducer) Reducing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reducing
}

// Start drives scopeHandle's coroutine for the first time, as if by an
// initial MethodNext with no value. This is the entry point a host
// integration calls once per freshly-created scope. onDone, if non-nil,
// is invoked exactly once, outside the reducer's lock, when scopeHandle's
// coroutine produces a terminal StepResult — which may happen
// synchronously within this call, or later from within some other
// instruction's resume callback.
func (r *Reducer) Start(ctx context.Context, scopeHandle host.ScopeHandle, coro host.Coroutine, onDone func(host.StepResult)) error {
	if onDone != nil {
		r.mu.Lock()
		r.onDone[scopeHandle] = onDone
		r.mu.Unlock()
	}
	return r.Reduce(ctx, scopeHandle, coro, host.MethodNext, host.Resolution{})
}

// Reduce enqueues one instruction to drive coro. If a reduction is
// already in progress it returns immediately; the instruction will be
// picked up by the in-progress drain loop. Otherwise it drains the
// queue itself until empty.
//
// A *errors.DivergenceError returned here has already unwound past the
// queue: the queue is cleared and reducing is reset so the reducer can
// still be inspected, but no further instruction from this call (or any
// enqueued while it ran) will be driven.
func (r *Reducer) Reduce(ctx context.Context, scopeHandle host.ScopeHandle, coro host.Coroutine, method host.Method, res host.Resolution) error {
	r.mu.Lock()
	r.queue = append(r.queue, instruction{scope: scopeHandle, coro: coro, method: method, res: res})
	if r.reducing {
		r.mu.Unlock()
		return nil
	}
	r.reducing = true
	r.mu.Unlock()

	for {
		r.mu.Lock()
		if len(r.queue) == 0 {
			r.reducing = false
			r.mu.Unlock()
			return nil
		}
		next := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()

		if err := r.driveOnce(ctx, next); err != nil {
			r.mu.Lock()
			r.queue = nil
			r.reducing = false
			r.mu.Unlock()
			return err
		}
	}
}

func (r *Reducer) driveOnce(ctx context.Context, instr instruction) error {
	result := instr.coro.Step(instr.method, instr.res)

	if result.Done {
		r.mu.Lock()
		onDone, ok := r.onDone[instr.scope]
		delete(r.onDone, instr.scope)
		r.mu.Unlock()
		if ok {
			onDone(result)
		}
		return nil
	}

	return r.handleEffect(ctx, instr.scope, instr.coro, result.Effect)
}

// handleEffect implements §4.6's handle_effect: classify, then replay,
// diverge, or record.
func (r *Reducer) handleEffect(ctx context.Context, scopeHandle host.ScopeHandle, coro host.Coroutine, effect host.Effect) error {
	if replay.IsInfrastructure(effect.Description) {
		effect.Enter(r.liveResume(ctx, scopeHandle, coro))
		return nil
	}

	coroutineID, registered := r.mw.CoroutineID(scopeHandle)
	if !registered {
		// Scope already unregistered: teardown in progress. Treat as
		// infrastructure so cleanup effects never corrupt the log.
		effect.Enter(r.liveResume(ctx, scopeHandle, coro))
		return nil
	}

	effectID, description, ok := r.idx.PeekYield(coroutineID)
	if !ok {
		return r.recordLive(ctx, scopeHandle, coro, coroutineID, effect)
	}

	if description != effect.Description {
		offset, _ := r.idx.PeekYieldOffset(coroutineID)
		r.obs.logger().Error("divergence detected",
			durablelog.Error(fmt.Errorf("expected %q, got %q", description, effect.Description)),
			slog.String(durablelog.CoroutineIDKey, coroutineID))
		durablemetrics.RecordDivergence(coroutineID)
		return &durablyerrors.DivergenceError{
			CoroutineID: coroutineID,
			Expected:    description,
			Actual:      effect.Description,
			Offset:      offset,
		}
	}

	r.idx.ConsumeYield(coroutineID)

	if next, ok := r.idx.Resolution(effectID); ok {
		_, span := r.startEffectSpan(ctx, coroutineID, effectID, effect.Description, "replay")
		res := resolutionFromNext(next)
		r.endEffectSpan(span, res.OK, res.Err)
		if r.obs.Metrics != nil {
			r.obs.Metrics.RecordEffect(ctx, effect.Description, true, res.OK)
		}
		durablelog.Trace(r.obs.logger(), "effect replayed",
			slog.String(durablelog.CoroutineIDKey, coroutineID),
			slog.String(durablelog.EffectIDKey, effectID))
		return r.Reduce(ctx, scopeHandle, coro, methodFor(res), res)
	}

	// The process died between this yield and its resolve: re-enter
	// live, reusing the existing effect id so the eventual resolution is
	// recorded against it, but without re-appending the Yield.
	spanCtx, span := r.startEffectSpan(ctx, coroutineID, effectID, effect.Description, "live-fallback")
	effect.Enter(r.wrappedResume(spanCtx, scopeHandle, coro, coroutineID, effectID, effect.Description, span))
	return nil
}

// recordLive mints a fresh effect id, records the Yield, and enters the
// effect with a resume wrapped to record its Next on first invocation.
func (r *Reducer) recordLive(ctx context.Context, scopeHandle host.ScopeHandle, coro host.Coroutine, coroutineID string, effect host.Effect) error {
	effectID := r.mintEffectID()
	if _, err := r.str.Append(ctx, event.Yield(coroutineID, effectID, effect.Description)); err != nil {
		return err
	}
	spanCtx, span := r.startEffectSpan(ctx, coroutineID, effectID, effect.Description, "record")
	effect.Enter(r.wrappedResume(spanCtx, scopeHandle, coro, coroutineID, effectID, effect.Description, span))
	return nil
}

// startEffectSpan starts a durably.effect span when a Tracer is wired,
// and is otherwise a no-op whose returned span is safely nil-checked by
// endEffectSpan.
func (r *Reducer) startEffectSpan(ctx context.Context, coroutineID, effectID, description, mode string) (context.Context, trace.Span) {
	if r.obs.Tracer == nil {
		return ctx, nil
	}
	return r.obs.Tracer.Start(ctx, "durably.effect", trace.WithAttributes(
		attribute.String("coroutine_id", coroutineID),
		attribute.String("effect_id", effectID),
		attribute.String("description", description),
		attribute.String("mode", mode),
	))
}

func (r *Reducer) endEffectSpan(span trace.Span, ok bool, err error) {
	if span == nil {
		return
	}
	if !ok && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// wrappedResume returns a ResumeFunc that records a Next event the
// first time it fires, then re-enters the reducer with the same
// resolution. The host's effect protocol guarantees at most one
// invocation; the fired guard is defensive. span, if non-nil, is ended
// with the effect's outcome before the Next is appended.
func (r *Reducer) wrappedResume(ctx context.Context, scopeHandle host.ScopeHandle, coro host.Coroutine, coroutineID, effectID, description string, span trace.Span) host.ResumeFunc {
	var fired atomic.Bool
	return func(res host.Resolution) {
		if fired.Swap(true) {
			return
		}
		r.endEffectSpan(span, res.OK, res.Err)

		var ev event.Event
		if res.OK {
			ev = event.NextOK(coroutineID, effectID, res.Value)
		} else {
			ev = event.NextErr(coroutineID, effectID, event.SerializeError(res.Err))
		}
		if _, err := r.str.Append(ctx, ev); err != nil {
			// Append on a closed/failed stream is unrecoverable (§7); there
			// is no synchronous caller left to hand the error to from
			// inside a resume callback, so surface it loudly rather than
			// silently dropping the workflow's progress.
			panic(fmt.Errorf("durably: recording effect resolution: %w", err))
		}
		if r.obs.Metrics != nil {
			r.obs.Metrics.RecordEffect(ctx, description, false, res.OK)
		}
		durablelog.Trace(r.obs.logger(), "effect resolved live",
			slog.String(durablelog.CoroutineIDKey, coroutineID),
			slog.String(durablelog.EffectIDKey, effectID))
		_ = r.Reduce(ctx, scopeHandle, coro, methodFor(res), res)
	}
}

// liveResume drives the reducer without recording anything, used for
// infrastructure effects and effects entered on an unregistered scope.
func (r *Reducer) liveResume(ctx context.Context, scopeHandle host.ScopeHandle, coro host.Coroutine) host.ResumeFunc {
	var fired atomic.Bool
	return func(res host.Resolution) {
		if fired.Swap(true) {
			return
		}
		_ = r.Reduce(ctx, scopeHandle, coro, methodFor(res), res)
	}
}

func (r *Reducer) mintEffectID() string {
	n := atomic.AddInt64(&r.effectCounter, 1)
	return fmt.Sprintf("effect-%d", n)
}

// resolutionFromNext converts a recorded Next event back into a
// Resolution, reconstructing a throwable error from its serialized form
// when the recorded outcome failed.
func resolutionFromNext(ev event.Event) host.Resolution {
	if ev.Status == event.StatusErr {
		return host.Errored(event.DeserializeError(ev.Err))
	}
	return host.OK(ev.Value)
}

func methodFor(res host.Resolution) host.Method {
	if res.OK {
		return host.MethodNext
	}
	return host.MethodThrow
}
