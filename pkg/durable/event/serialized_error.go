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

package event

// SerializedError is the durable, JSON-safe representation of a Go
// error, including its cause chain (as produced by errors.Unwrap).
type SerializedError struct {
	Name    string           `json:"name"`
	Message string           `json:"message"`
	Stack   string           `json:"stack,omitempty"`
	Cause   *SerializedError `json:"cause,omitempty"`
}

// Error implements the error interface so a SerializedError can be
// thrown back into a replaying coroutine directly.
func (e *SerializedError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Unwrap supports errors.Is/errors.As over a reconstructed cause chain.
func (e *SerializedError) Unwrap() error {
	if e == nil || e.Cause == nil {
		return nil
	}
	return e.Cause
}

// causer is implemented by errors that expose an underlying cause under
// a name other than the standard library's Unwrap, mirroring how
// SerializedError itself exposes Cause.
type causer interface {
	Cause() error
}

// unwrapper is the standard library's convention.
type unwrapper interface {
	Unwrap() error
}

// stackTracer is implemented by errors that can report a stack trace at
// the point they were created.
type stackTracer interface {
	StackTrace() string
}

// nameTyper lets an error override the "name" field, which otherwise
// comes from a Name() method or defaults to "Error", mirroring how
// JavaScript errors carry a constructor name distinct from "Error".
type nameTyper interface {
	ErrorName() string
}

// SerializeError walks err and its cause chain into a SerializedError,
// breaking cycles via an identity set on the error values visited. A
// cycle (an error that is, transitively, its own cause) truncates the
// chain at the repeated node rather than looping forever.
func SerializeError(err error) *SerializedError {
	return serializeError(err, make(map[error]bool))
}

func serializeError(err error, seen map[error]bool) *SerializedError {
	if err == nil {
		return nil
	}
	if seen[err] {
		return &SerializedError{Name: "CyclicError", Message: "error cause cycle detected"}
	}
	seen[err] = true

	out := &SerializedError{
		Name:    errorName(err),
		Message: err.Error(),
	}
	if st, ok := err.(stackTracer); ok {
		out.Stack = st.StackTrace()
	}

	var cause error
	switch t := err.(type) {
	case causer:
		cause = t.Cause()
	case unwrapper:
		cause = t.Unwrap()
	}
	if cause != nil {
		out.Cause = serializeError(cause, seen)
	}
	return out
}

func errorName(err error) string {
	if nt, ok := err.(nameTyper); ok {
		return nt.ErrorName()
	}
	return typeName(err)
}

func typeName(v any) string {
	type namer interface{ Name() string }
	if n, ok := v.(namer); ok {
		return n.Name()
	}
	return "Error"
}

// DeserializeError reconstructs a plain error from its durable form.
// The result implements error (and Unwrap over the reconstructed cause
// chain) but is not, and is never claimed to be, the original
// dynamically-typed Go error: only name, message, stack, and cause
// survive the round trip, matching what the wire format actually
// carries.
func DeserializeError(se *SerializedError) error {
	if se == nil {
		return nil
	}
	return se
}
