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

// Package durablelog is the runtime's structured logging surface: a
// slog.Logger factory configured from a Config or from the process
// environment, plus helpers for attaching the runtime's own correlation
// fields (coroutine id, effect id, stream offset) to a logger.
package durablelog

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format is the log output format.
type Format string

const (
	// FormatJSON outputs logs in JSON, for machine parsing.
	FormatJSON Format = "json"
	// FormatText outputs logs in a human-readable single line per record.
	FormatText Format = "text"
)

// LevelTrace is more verbose than slog's own Debug, used for per-effect
// tracing (e.g. the exact Enter/resume timings the reducer drives).
const LevelTrace = slog.Level(-8)

// Standard field keys, kept as constants so every call site spells a
// given correlation field the same way.
const (
	// CoroutineIDKey is the field key for a coroutine's identity.
	CoroutineIDKey = "coroutine_id"
	// EffectIDKey is the field key for an effect's identity.
	EffectIDKey = "effect_id"
	// OffsetKey is the field key for a stream offset.
	OffsetKey = "offset"
	// DescriptionKey is the field key for an effect's divergence label.
	DescriptionKey = "description"
	// RunIDKey is the field key for a workflow run's correlation id (see
	// internal/runctx).
	RunIDKey = "run_id"
)

// Config holds the logging configuration.
type Config struct {
	// Level sets the minimum log level (trace, debug, info, warn, error).
	// Default: info.
	Level string

	// Format sets the output format. Default: json.
	Format Format

	// Output is the writer log records are written to. Default:
	// os.Stderr.
	Output io.Writer

	// AddSource adds source file and line information to each record.
	// Default: false.
	AddSource bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Level:     "info",
		Format:    FormatJSON,
		Output:    os.Stderr,
		AddSource: false,
	}
}

// FromEnv builds a Config from the process environment.
//
//   - DURABLY_DEBUG: true/1 enables debug level and source logging (takes
//     precedence over everything else below).
//   - DURABLY_LOG_LEVEL: trace, debug, info, warn, error.
//   - LOG_LEVEL: same values, lower precedence than DURABLY_LOG_LEVEL.
//   - LOG_FORMAT: json, text.
//   - LOG_SOURCE: 1 enables source file/line.
func FromEnv() *Config {
	cfg := DefaultConfig()

	debug := os.Getenv("DURABLY_DEBUG")
	if debug == "true" || debug == "1" {
		cfg.Level = "debug"
		cfg.AddSource = true
	}

	if debug != "true" && debug != "1" {
		if level := os.Getenv("DURABLY_LOG_LEVEL"); level != "" {
			cfg.Level = strings.ToLower(level)
		} else if level := os.Getenv("LOG_LEVEL"); level != "" {
			cfg.Level = strings.ToLower(level)
		}
	}

	if format := os.Getenv("LOG_FORMAT"); format != "" {
		cfg.Format = Format(strings.ToLower(format))
	}

	if os.Getenv("LOG_SOURCE") == "1" {
		cfg.AddSource = true
	}

	return cfg
}

// New creates a structured logger from cfg. A nil cfg is equivalent to
// DefaultConfig().
func New(cfg *Config) *slog.Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	switch cfg.Format {
	case FormatText:
		handler = slog.NewTextHandler(cfg.Output, opts)
	case FormatJSON:
		fallthrough
	default:
		handler = slog.NewJSONHandler(cfg.Output, opts)
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithRunID returns a logger with the workflow run's correlation id
// attached to every subsequent record.
func WithRunID(logger *slog.Logger, runID string) *slog.Logger {
	return logger.With(slog.String(RunIDKey, runID))
}

// WithCoroutine returns a logger with a coroutine id attached, for log
// lines scoped to one coroutine's lifetime (creation, teardown, each of
// its effects).
func WithCoroutine(logger *slog.Logger, coroutineID string) *slog.Logger {
	return logger.With(slog.String(CoroutineIDKey, coroutineID))
}

// WithEffect returns a logger with coroutine, effect, and description
// fields attached, for the one record pair (yield/next) an effect
// produces.
func WithEffect(logger *slog.Logger, coroutineID, effectID, description string) *slog.Logger {
	return logger.With(
		slog.String(CoroutineIDKey, coroutineID),
		slog.String(EffectIDKey, effectID),
		slog.String(DescriptionKey, description),
	)
}

// Error creates an error attribute.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}

// Trace logs at LevelTrace, used for the reducer's own per-effect
// tracing; checked against logger.Enabled first so call sites can pass
// attrs built from a hot path without paying for them when trace logging
// is off.
func Trace(logger *slog.Logger, msg string, attrs ...slog.Attr) {
	if !logger.Enabled(nil, LevelTrace) {
		return
	}
	logger.LogAttrs(nil, LevelTrace, msg, attrs...)
}
