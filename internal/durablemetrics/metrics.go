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

// Package durablemetrics collects OpenTelemetry metrics for the durable
// execution runtime: effect throughput and latency, coroutine lifecycle
// counts, and stream size, plus a small set of direct Prometheus
// counters for conditions that are failures rather than throughput
// (divergence, corrupt logs).
package durablemetrics

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	divergenceTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "durably_divergence_total",
			Help: "Total divergence errors detected during replay, by coroutine",
		},
		[]string{"coroutine_id"},
	)

	corruptLogTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "durably_corrupt_log_total",
			Help: "Total corrupt-log errors encountered reading a stream, by reason",
		},
		[]string{"reason"},
	)
)

// RecordDivergence increments the divergence counter for coroutineID.
func RecordDivergence(coroutineID string) {
	divergenceTotal.WithLabelValues(coroutineID).Inc()
}

// RecordCorruptLog increments the corrupt-log counter for reason.
func RecordCorruptLog(reason string) {
	corruptLogTotal.WithLabelValues(reason).Inc()
}

// StreamSizer reports a stream's current length, used for the
// durably_stream_length observable gauge.
type StreamSizer interface {
	Len(ctx context.Context) (uint64, error)
}

// ActiveCoroutineCounter reports how many coroutines are currently
// between Spawn and Close, used for the durably_active_coroutines
// observable gauge.
type ActiveCoroutineCounter interface {
	ActiveCoroutineCount() int
}

// Collector collects OpenTelemetry metrics for one runtime instance.
type Collector struct {
	meter metric.Meter

	effectsTotal    metric.Int64Counter
	spawnsTotal     metric.Int64Counter
	closesTotal     metric.Int64Counter
	effectLatency   metric.Float64Histogram
	replayDuration  metric.Float64Histogram

	streamSizerMu sync.RWMutex
	streamSizer   StreamSizer

	activeCounterMu sync.RWMutex
	activeCounter   ActiveCoroutineCounter
}

// NewCollector creates a Collector using the given meter provider,
// registering every instrument up front so a failure to create one
// surfaces at startup rather than on the first recorded effect.
func NewCollector(meterProvider metric.MeterProvider) (*Collector, error) {
	meter := meterProvider.Meter("durably")

	c := &Collector{meter: meter}

	var err error
	c.effectsTotal, err = meter.Int64Counter(
		"durably_effects_total",
		metric.WithDescription("Total effects yielded, by outcome and whether they were replayed"),
		metric.WithUnit("{effect}"),
	)
	if err != nil {
		return nil, err
	}

	c.spawnsTotal, err = meter.Int64Counter(
		"durably_spawns_total",
		metric.WithDescription("Total coroutines spawned"),
		metric.WithUnit("{coroutine}"),
	)
	if err != nil {
		return nil, err
	}

	c.closesTotal, err = meter.Int64Counter(
		"durably_closes_total",
		metric.WithDescription("Total coroutines closed, by status"),
		metric.WithUnit("{coroutine}"),
	)
	if err != nil {
		return nil, err
	}

	c.effectLatency, err = meter.Float64Histogram(
		"durably_effect_latency_seconds",
		metric.WithDescription("Time from an effect's Enter call to its resume, live path only"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	c.replayDuration, err = meter.Float64Histogram(
		"durably_replay_duration_seconds",
		metric.WithDescription("Wall-clock time spent replaying a stream's recorded prefix before going live"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	_, err = meter.Int64ObservableGauge(
		"durably_stream_length",
		metric.WithDescription("Current number of entries in the workflow's stream"),
		metric.WithUnit("{entry}"),
		metric.WithInt64Callback(func(ctx context.Context, observer metric.Int64Observer) error {
			c.streamSizerMu.RLock()
			sizer := c.streamSizer
			c.streamSizerMu.RUnlock()
			if sizer == nil {
				return nil
			}
			n, err := sizer.Len(ctx)
			if err != nil {
				return err
			}
			observer.Observe(int64(n))
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	_, err = meter.Int64ObservableGauge(
		"durably_active_coroutines",
		metric.WithDescription("Number of coroutines currently between Spawn and Close"),
		metric.WithUnit("{coroutine}"),
		metric.WithInt64Callback(func(ctx context.Context, observer metric.Int64Observer) error {
			c.activeCounterMu.RLock()
			counter := c.activeCounter
			c.activeCounterMu.RUnlock()
			if counter == nil {
				return nil
			}
			observer.Observe(int64(counter.ActiveCoroutineCount()))
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	return c, nil
}

// RecordEffect records one effect's resolution. replayed distinguishes
// an effect satisfied from the stream's recorded prefix from one that
// ran live.
func (c *Collector) RecordEffect(ctx context.Context, description string, replayed, ok bool) {
	status := "ok"
	if !ok {
		status = "err"
	}
	path := "live"
	if replayed {
		path = "replay"
	}
	c.effectsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status),
		attribute.String("path", path),
	))
}

// RecordEffectLatency records how long a live effect's Enter took to
// resume.
func (c *Collector) RecordEffectLatency(ctx context.Context, description string, duration time.Duration) {
	c.effectLatency.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("description", description),
	))
}

// RecordSpawn records a coroutine creation.
func (c *Collector) RecordSpawn(ctx context.Context) {
	c.spawnsTotal.Add(ctx, 1)
}

// RecordClose records a coroutine's terminal status.
func (c *Collector) RecordClose(ctx context.Context, status string) {
	c.closesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordReplayDuration records how long a run spent consuming the
// stream's recorded prefix before its first live effect.
func (c *Collector) RecordReplayDuration(ctx context.Context, duration time.Duration) {
	c.replayDuration.Record(ctx, duration.Seconds())
}

// SetStreamSizer wires a stream so the durably_stream_length gauge
// reports its live length.
func (c *Collector) SetStreamSizer(sizer StreamSizer) {
	c.streamSizerMu.Lock()
	c.streamSizer = sizer
	c.streamSizerMu.Unlock()
}

// SetActiveCoroutineCounter wires a counter so the
// durably_active_coroutines gauge reports live coroutine counts.
func (c *Collector) SetActiveCoroutineCounter(counter ActiveCoroutineCounter) {
	c.activeCounterMu.Lock()
	c.activeCounter = counter
	c.activeCounterMu.Unlock()
}
