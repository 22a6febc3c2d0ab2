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
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/durably-run/durably/internal/durablemetrics"
	"github.com/durably-run/durably/pkg/durable/reducer"
	"github.com/durably-run/durably/pkg/durable/stream"
)

// RuntimeOptions holds Run's configuration, built up by applying a
// sequence of Option values.
type RuntimeOptions struct {
	stream  stream.Stream
	logger  *slog.Logger
	metrics *durablemetrics.Collector
	tracer  trace.Tracer
}

// Option configures a Run call.
type Option func(*RuntimeOptions)

// WithStream sets the durable stream a workflow records against and
// replays from. Omitting it runs the workflow against a fresh,
// ephemeral in-memory stream (spec §6), appropriate for one-shot
// invocations that never need to resume.
func WithStream(s stream.Stream) Option {
	return func(o *RuntimeOptions) {
		o.stream = s
	}
}

// WithLogger attaches a structured logger the reducer uses for
// divergence errors and effect-level tracing. Omitting it falls back to
// slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *RuntimeOptions) {
		o.logger = logger
	}
}

// WithMetrics attaches a metrics collector the reducer records effect
// counts against. Omitting it disables that recording; divergences are
// counted on a process-wide counter either way, not on the collector.
func WithMetrics(collector *durablemetrics.Collector) Option {
	return func(o *RuntimeOptions) {
		o.metrics = collector
	}
}

// WithTracer attaches an OpenTelemetry tracer the reducer uses to emit
// one durably.effect span per dispatched effect. Omitting it disables
// tracing.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *RuntimeOptions) {
		o.tracer = tracer
	}
}

func newRuntimeOptions(opts []Option) *RuntimeOptions {
	o := &RuntimeOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.stream == nil {
		o.stream = stream.NewMemory()
	}
	return o
}

func (o *RuntimeOptions) observer() reducer.Observer {
	return reducer.Observer{Logger: o.logger, Metrics: o.metrics, Tracer: o.tracer}
}
