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

// Command durably is the runtime's own entry point: it runs a workflow
// through durable.Run with a real stream, logger, metrics collector,
// and tracer wired in, the way a host process embedding this module
// would. Pointing --db at a path and re-running the same --workflow
// against it demonstrates resumption across process restarts; omitting
// --db runs against a fresh in-memory stream that is discarded on exit.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/durably-run/durably/internal/durablelog"
	"github.com/durably-run/durably/internal/durablemetrics"
	"github.com/durably-run/durably/internal/runctx"
	"github.com/durably-run/durably/pkg/durable"
	"github.com/durably-run/durably/pkg/durable/stream/sqlitestream"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "durably",
		Short:         "Run a durable workflow",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newListCommand())
	return cmd
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the workflows --workflow can select",
		RunE: func(cmd *cobra.Command, args []string) error {
			names := make([]string, 0, len(demoOps))
			for name := range demoOps {
				names = append(names, name)
			}
			sort.Strings(names)
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(names, "\n"))
			return nil
		},
	}
}

func newRunCommand() *cobra.Command {
	var (
		workflowName string
		dbPath       string
		wal          bool
		metricsAddr  string
		traceStdout  bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a workflow once, recording or resuming against --db",
		RunE: func(cmd *cobra.Command, args []string) error {
			op, ok := demoOps[workflowName]
			if !ok {
				return fmt.Errorf("unknown workflow %q (see `durably list`)", workflowName)
			}
			return runWorkflow(cmd.Context(), runConfig{
				op:           op,
				workflowName: workflowName,
				dbPath:       dbPath,
				wal:          wal,
				metricsAddr:  metricsAddr,
				traceStdout:  traceStdout,
				stdout:       cmd.OutOrStdout(),
			})
		},
	}

	cmd.Flags().StringVar(&workflowName, "workflow", "greet", "workflow to run (see `durably list`)")
	cmd.Flags().StringVar(&dbPath, "db", "", "sqlite file to record/resume against (default: in-memory, discarded on exit)")
	cmd.Flags().BoolVar(&wal, "wal", false, "enable WAL mode on --db")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address until the run completes (e.g. :9090)")
	cmd.Flags().BoolVar(&traceStdout, "trace-stdout", false, "print recorded spans to stdout")

	return cmd
}

type runConfig struct {
	op           durable.Op
	workflowName string
	dbPath       string
	wal          bool
	metricsAddr  string
	traceStdout  bool
	stdout       io.Writer
}

// runWorkflow wires a durable.Run invocation the way a host process
// would: a resumable stream, a structured logger carrying the run's
// correlation id, a metrics collector backed by a real OTel meter
// provider, and (optionally) a tracer exporting to stdout. It mirrors
// internal/tracing's provider construction, adapted to this runtime's
// own Observer seam instead of that package's own Tracer abstraction.
func runWorkflow(ctx context.Context, cfg runConfig) error {
	runID := runctx.NewRunID()
	ctx = runctx.ToContext(ctx, runID)

	logger := durablelog.New(durablelog.FromEnv())
	logger = logger.With(durablelog.RunIDKey, runID.String(), "workflow", cfg.workflowName)

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes("", semconv.ServiceName("durably")),
	)
	if err != nil {
		return fmt.Errorf("build resource: %w", err)
	}

	tp, tracerShutdown, err := newTracerProvider(res, cfg.traceStdout)
	if err != nil {
		return fmt.Errorf("build tracer: %w", err)
	}
	defer tracerShutdown(ctx)

	promExporter, err := prometheus.New()
	if err != nil {
		return fmt.Errorf("build prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(promExporter))
	defer mp.Shutdown(ctx)

	collector, err := durablemetrics.NewCollector(mp)
	if err != nil {
		return fmt.Errorf("build metrics collector: %w", err)
	}

	opts := []durable.Option{
		durable.WithTracer(tp.Tracer("durably")),
		durable.WithMetrics(collector),
		durable.WithLogger(logger),
	}

	if cfg.metricsAddr != "" {
		srv := serveMetrics(cfg.metricsAddr, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	if cfg.dbPath != "" {
		s, err := sqlitestream.Open(ctx, sqlitestream.Config{Path: cfg.dbPath, WAL: cfg.wal})
		if err != nil {
			return fmt.Errorf("open %s: %w", cfg.dbPath, err)
		}
		defer s.ReleaseHandle()
		opts = append(opts, durable.WithStream(s))
		collector.SetStreamSizer(s)

		n, err := s.Len(ctx)
		if err != nil {
			return fmt.Errorf("read stream length: %w", err)
		}
		logger.Info("resuming stream", "existing_events", n)
	}

	value, err := durable.Run(ctx, cfg.op, opts...)
	if err != nil {
		logger.Error("workflow failed", durablelog.Error(err))
		return err
	}

	fmt.Fprintf(cfg.stdout, "%v\n", value)
	logger.Info("workflow completed", "result", value)
	return nil
}

// newTracerProvider builds an sdktrace.TracerProvider exporting spans
// to stdout when requested, or a no-export provider otherwise (spans
// are still generated and sampled; they are simply not printed).
func newTracerProvider(res *resource.Resource, toStdout bool) (*sdktrace.TracerProvider, func(context.Context) error, error) {
	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}

	if toStdout {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, nil, fmt.Errorf("build stdout exporter: %w", err)
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(tpOpts...)
	return tp, tp.Shutdown, nil
}

// serveMetrics starts a best-effort Prometheus scrape endpoint for the
// duration of the run. A failure to bind is logged, not fatal: metrics
// are an operational aid, not part of the workflow's own correctness.
func serveMetrics(addr string, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics server stopped", durablelog.Error(err))
		}
	}()

	return srv
}
