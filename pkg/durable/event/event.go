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

// Package event defines the durable execution runtime's four-event
// schema and the JSON-safe value encoding used to carry effect payloads
// and errors into the log.
//
// # Event kinds
//
// Every entry in a workflow's stream is one of four kinds:
//
//   - Yield: the workflow suspended on an effect.
//   - Next: the outside world resolved a previously yielded effect.
//   - Spawn: a child coroutine (scope) was created under a parent.
//   - Close: a coroutine reached its terminal state.
//
// Event is a tagged union over these four kinds rather than four
// separate stream element types, so that a Stream (see the stream
// package) can be a single append-only sequence of Event values.
package event

import "fmt"

// Kind discriminates the variant of an Event.
type Kind string

const (
	// KindYield marks a coroutine suspending on an effect.
	KindYield Kind = "yield"
	// KindNext marks an effect's resolution.
	KindNext Kind = "next"
	// KindSpawn marks the creation of a child coroutine.
	KindSpawn Kind = "spawn"
	// KindClose marks a coroutine reaching its terminal state.
	KindClose Kind = "close"
)

// Status is the outcome carried by Next and Close events.
type Status string

const (
	// StatusOK marks a successful resolution or terminal state.
	StatusOK Status = "ok"
	// StatusErr marks a failed resolution or terminal state.
	StatusErr Status = "err"
	// StatusCancelled marks a scope torn down by an ancestor's
	// cancellation rather than its own return or throw. Only Close
	// events use this status; Next never carries it.
	StatusCancelled Status = "cancelled"
)

// RootCoroutineID is the identifier of the workflow's implicit,
// outermost coroutine. It is never the subject of a Spawn event.
const RootCoroutineID = "root"

// Event is the tagged union of the four schema variants. Exactly one of
// the per-kind payload fields is meaningful for a given Kind; the others
// are left zero. This mirrors how the corpus's own workflow event type
// (pkg/workflow/events.go in the example this runtime is built from)
// keys a generic envelope by a Type discriminator, specialized here to a
// closed, compile-time-checked set of four kinds instead of an open
// string type.
type Event struct {
	Kind Kind `json:"type"`

	// CoroutineID is set on every kind. For Yield and Next it is the
	// coroutine that owns the effect. For Spawn it is the parent. For
	// Close it is the coroutine that terminated.
	CoroutineID string `json:"coroutineId"`

	// EffectID is set on Yield and Next.
	EffectID string `json:"effectId,omitempty"`

	// Description is set on Yield; it is the divergence-check label.
	Description string `json:"description,omitempty"`

	// ChildCoroutineID is set on Spawn.
	ChildCoroutineID string `json:"childCoroutineId,omitempty"`

	// Status is set on Next and Close.
	Status Status `json:"status,omitempty"`

	// Value carries a successful resolution or terminal value, JSON-safe
	// per ToJSON. Set on Next (status ok) and Close (status ok).
	Value Value `json:"value,omitempty"`

	// Err carries a failure, set on Next (status err) and Close (status
	// err).
	Err *SerializedError `json:"error,omitempty"`
}

// Yield constructs a Yield event.
func Yield(coroutineID, effectID, description string) Event {
	return Event{Kind: KindYield, CoroutineID: coroutineID, EffectID: effectID, Description: description}
}

// NextOK constructs a successful Next event.
func NextOK(coroutineID, effectID string, value Value) Event {
	return Event{Kind: KindNext, CoroutineID: coroutineID, EffectID: effectID, Status: StatusOK, Value: value}
}

// NextErr constructs a failing Next event.
func NextErr(coroutineID, effectID string, err *SerializedError) Event {
	return Event{Kind: KindNext, CoroutineID: coroutineID, EffectID: effectID, Status: StatusErr, Err: err}
}

// SpawnEvent constructs a Spawn event.
func SpawnEvent(parentCoroutineID, childCoroutineID string) Event {
	return Event{Kind: KindSpawn, CoroutineID: parentCoroutineID, ChildCoroutineID: childCoroutineID}
}

// CloseOK constructs a successful Close event.
func CloseOK(coroutineID string, value Value) Event {
	return Event{Kind: KindClose, CoroutineID: coroutineID, Status: StatusOK, Value: value}
}

// CloseErr constructs a failing Close event.
func CloseErr(coroutineID string, err *SerializedError) Event {
	return Event{Kind: KindClose, CoroutineID: coroutineID, Status: StatusErr, Err: err}
}

// CloseCancelled constructs a Close event for a coroutine torn down by
// an ancestor's cancellation.
func CloseCancelled(coroutineID string) Event {
	return Event{Kind: KindClose, CoroutineID: coroutineID, Status: StatusCancelled}
}

// String renders a compact, human-readable summary, used in logs and by
// the durably-inspect CLI's table output.
func (e Event) String() string {
	switch e.Kind {
	case KindYield:
		return fmt.Sprintf("yield(%s, %s, %q)", e.CoroutineID, e.EffectID, e.Description)
	case KindNext:
		return fmt.Sprintf("next(%s, %s, %s)", e.CoroutineID, e.EffectID, e.Status)
	case KindSpawn:
		return fmt.Sprintf("spawn(%s -> %s)", e.CoroutineID, e.ChildCoroutineID)
	case KindClose:
		return fmt.Sprintf("close(%s, %s)", e.CoroutineID, e.Status)
	default:
		return fmt.Sprintf("unknown(%s)", e.Kind)
	}
}
