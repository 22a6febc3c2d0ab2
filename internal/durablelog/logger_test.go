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

package durablelog

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != "info" {
		t.Errorf("expected default level 'info', got %q", cfg.Level)
	}
	if cfg.Format != FormatJSON {
		t.Errorf("expected default format 'json', got %q", cfg.Format)
	}
	if cfg.Output != os.Stderr {
		t.Errorf("expected default output to be os.Stderr")
	}
	if cfg.AddSource {
		t.Errorf("expected default AddSource to be false")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("DURABLY_DEBUG", "")
	t.Setenv("DURABLY_LOG_LEVEL", "")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_FORMAT", "TEXT")
	t.Setenv("LOG_SOURCE", "1")

	cfg := FromEnv()
	if cfg.Level != "warn" {
		t.Errorf("expected level 'warn', got %q", cfg.Level)
	}
	if cfg.Format != FormatText {
		t.Errorf("expected format 'text', got %q", cfg.Format)
	}
	if !cfg.AddSource {
		t.Errorf("expected AddSource true when LOG_SOURCE=1")
	}
}

func TestFromEnv_DebugTakesPrecedence(t *testing.T) {
	t.Setenv("DURABLY_DEBUG", "1")
	t.Setenv("DURABLY_LOG_LEVEL", "error")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_FORMAT", "")
	t.Setenv("LOG_SOURCE", "")

	cfg := FromEnv()
	if cfg.Level != "debug" {
		t.Errorf("expected DURABLY_DEBUG to force level debug, got %q", cfg.Level)
	}
	if !cfg.AddSource {
		t.Errorf("expected DURABLY_DEBUG to force AddSource true")
	}
}

func TestNew_WritesJSONWithAttachedFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "info", Format: FormatJSON, Output: &buf})

	logger = WithEffect(logger, "coroutine-3", "effect-7", "sleep(1)")
	logger.Info("effect resolved")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("expected valid JSON log line, got error: %v (line: %s)", err, buf.String())
	}
	if record[CoroutineIDKey] != "coroutine-3" {
		t.Errorf("expected coroutine_id=coroutine-3, got %v", record[CoroutineIDKey])
	}
	if record[EffectIDKey] != "effect-7" {
		t.Errorf("expected effect_id=effect-7, got %v", record[EffectIDKey])
	}
	if record[DescriptionKey] != "sleep(1)" {
		t.Errorf("expected description=sleep(1), got %v", record[DescriptionKey])
	}
}

func TestNew_DefaultsToJSONHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Output: &buf})
	logger.Info("hello")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("expected default format to be JSON-decodable, got error: %v", err)
	}
}

func TestNew_NilConfigUsesDefaults(t *testing.T) {
	logger := New(nil)
	if logger == nil {
		t.Fatal("expected New(nil) to return a usable logger")
	}
}

func TestTrace_SkippedBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "info", Format: FormatJSON, Output: &buf})

	Trace(logger, "should not appear")
	if buf.Len() != 0 {
		t.Errorf("expected no output at info level, got %q", buf.String())
	}
}

func TestTrace_EmittedAtTraceLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "trace", Format: FormatJSON, Output: &buf})

	Trace(logger, "verbose detail")
	if buf.Len() == 0 {
		t.Errorf("expected trace output when level is trace")
	}
}
