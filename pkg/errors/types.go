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

package errors

import (
	"fmt"
	"time"
)

// ValidationError represents user input validation failures.
// Use this for invalid user input, malformed data, or constraint violations.
type ValidationError struct {
	// Field identifies which input field failed validation
	Field string

	// Message is the human-readable error description
	Message string

	// Suggestion provides actionable guidance for fixing the error
	Suggestion string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// NotFoundError represents a resource not found error.
// Use this when a requested resource does not exist.
type NotFoundError struct {
	// Resource is the type of resource (e.g., "workflow", "tool", "connector")
	Resource string

	// ID is the identifier that was not found
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// DivergenceError is raised when the current run's user effect at a given
// position in a coroutine's history does not match the description that
// was recorded for that position in an earlier run. It must propagate
// synchronously out of the reducer loop rather than being delivered back
// into the coroutine as an ordinary failure.
type DivergenceError struct {
	// CoroutineID identifies the coroutine whose history diverged.
	CoroutineID string

	// Expected is the description recorded in the log at this position.
	Expected string

	// Actual is the description the current run produced at this position.
	Actual string

	// Offset is the stream offset of the recorded Yield event.
	Offset uint64
}

// Error implements the error interface.
func (e *DivergenceError) Error() string {
	return fmt.Sprintf("divergence in coroutine %s at offset %d: expected %q, got %q",
		e.CoroutineID, e.Offset, e.Expected, e.Actual)
}

// CorruptLogError reports that an event stream violates one of the
// invariants a well-formed log must satisfy.
type CorruptLogError struct {
	// Offset is the position of the offending event, or -1 if the
	// violation only becomes apparent once the whole log is considered.
	Offset int64

	// Reason describes which invariant was violated.
	Reason string
}

// Error implements the error interface.
func (e *CorruptLogError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("corrupt log at offset %d: %s", e.Offset, e.Reason)
	}
	return fmt.Sprintf("corrupt log: %s", e.Reason)
}

// ClosedStreamError is returned by a Stream when an operation that
// requires the stream to accept further writes is attempted after Close.
type ClosedStreamError struct {
	// Op names the operation that was rejected, e.g. "append".
	Op string
}

// Error implements the error interface.
func (e *ClosedStreamError) Error() string {
	return fmt.Sprintf("stream closed: %s not permitted", e.Op)
}

// InvalidOffsetError is returned when a caller requests a read from a
// negative or otherwise malformed offset.
type InvalidOffsetError struct {
	Offset int64
}

// Error implements the error interface.
func (e *InvalidOffsetError) Error() string {
	return fmt.Sprintf("invalid offset: %d", e.Offset)
}

// SerializationError wraps a failure encountered while converting a
// workflow value or error to or from its durable representation.
type SerializationError struct {
	// Context describes what was being serialized, e.g. "effect result".
	Context string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *SerializationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("serialization failed (%s): %v", e.Context, e.Cause)
	}
	return fmt.Sprintf("serialization failed (%s)", e.Context)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *SerializationError) Unwrap() error {
	return e.Cause
}

// ConfigError represents configuration problems.
// Use this for configuration file errors, missing settings, or invalid config values.
type ConfigError struct {
	// Key is the configuration key that has the problem (e.g., "api_key", "database.host")
	Key string

	// Reason explains what's wrong with the configuration
	Reason string

	// Cause is the underlying error (e.g., file read error, parse error)
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config error at %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("config error: %s", e.Reason)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// TimeoutError represents operation timeouts.
// Use this when an operation exceeds its configured timeout.
type TimeoutError struct {
	// Operation describes what timed out (e.g., "LLM request", "workflow step")
	Operation string

	// Duration is how long the operation ran before timing out
	Duration time.Duration

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s operation timed out after %v", e.Operation, e.Duration)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *TimeoutError) Unwrap() error {
	return e.Cause
}
