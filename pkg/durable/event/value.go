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

import (
	"fmt"
	"reflect"
)

// Value is a JSON-compatible payload: nil, bool, float64, string,
// []Value, or map[string]Value, plus the special LiveOnly sentinel for
// anything that couldn't be represented. It is what gets stored in a
// Next.Value or Close.Value field.
type Value = any

// LiveOnly is a placeholder standing in for a value that could not be
// serialized into the durable log: a function, a cyclic structure, or a
// class/struct instance with no JSON-safe shape. It preserves enough
// metadata that replay can hand it back to user code with its shape
// intact, rather than silently dropping the field.
//
// Encountering a LiveOnly sentinel during replay is not an error; the
// workflow receives it as the recorded value and may inspect it to
// decide policy.
type LiveOnly struct {
	// LiveOnlyMarker is always true; its presence is how a decoded
	// map[string]Value is recognized as a sentinel rather than user data.
	LiveOnlyMarker bool `json:"__live_only"`

	// Type is the Go type name of the original value (e.g. "func()",
	// "*os.File", "chan int").
	Type string `json:"__type"`

	// ToString is the result of formatting the original value with
	// fmt.Sprintf("%v", v), captured for human inspection.
	ToString string `json:"__to_string"`
}

// newLiveOnly builds a sentinel for an arbitrary Go value.
func newLiveOnly(v any) LiveOnly {
	return LiveOnly{
		LiveOnlyMarker: true,
		Type:           fmt.Sprintf("%T", v),
		ToString:       fmt.Sprintf("%v", v),
	}
}

// IsLiveOnly reports whether a decoded Value is a LiveOnly sentinel.
// Decoded sentinels arrive as map[string]Value (JSON objects); this
// checks for the marker key rather than a type assertion to LiveOnly,
// since values coming back from JSON decoding never carry the Go struct
// type.
func IsLiveOnly(v Value) bool {
	switch t := v.(type) {
	case LiveOnly:
		return t.LiveOnlyMarker
	case map[string]any:
		marker, ok := t["__live_only"].(bool)
		return ok && marker
	default:
		return false
	}
}

// ToJSON walks an arbitrary Go value and produces a JSON-safe Value.
// Cyclic references are broken by tracking the identity of arrays,
// slices, maps, and pointers already on the current walk path: a
// revisited identity becomes a LiveOnly sentinel rather than recursing
// forever. Non-nil pointers are followed to the value they point at.
// Anything that isn't a primitive, a slice/array, a map with string
// keys, or a plain struct (only exported fields, no methods) also
// becomes a sentinel that captures its type and string form.
//
// Fields are never silently dropped: a value that can't be represented
// becomes a sentinel in place, preserving the shape of the structure
// around it. That shape is what replay must reproduce.
func ToJSON(v any) Value {
	return toJSON(v, make(map[uintptr]bool))
}

func toJSON(v any, seen map[uintptr]bool) Value {
	if v == nil {
		return nil
	}

	switch t := v.(type) {
	case bool, string:
		return t
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return toFloat(t)
	case LiveOnly:
		return t
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		addr := rv.Pointer()
		if seen[addr] {
			return newLiveOnly(v)
		}
		seen[addr] = true
		defer delete(seen, addr)
		return toJSON(rv.Elem().Interface(), seen)

	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice {
			if rv.IsNil() {
				return nil
			}
			addr := rv.Pointer()
			if seen[addr] {
				return newLiveOnly(v)
			}
			seen[addr] = true
			defer delete(seen, addr)
		}
		out := make([]Value, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = toJSON(rv.Index(i).Interface(), seen)
		}
		return out

	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		addr := rv.Pointer()
		if seen[addr] {
			return newLiveOnly(v)
		}
		seen[addr] = true
		defer delete(seen, addr)

		if rv.Type().Key().Kind() != reflect.String {
			return newLiveOnly(v)
		}
		out := make(map[string]Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = toJSON(iter.Value().Interface(), seen)
		}
		return out

	case reflect.Struct:
		// Only plain data structs (exported fields, no methods the
		// encoder needs to respect) are walked; anything else becomes a
		// sentinel, matching the "no custom prototype" rule used for
		// objects in the reference implementation.
		t := rv.Type()
		if t.NumMethod() > 0 {
			return newLiveOnly(v)
		}
		out := make(map[string]Value, rv.NumField())
		for i := 0; i < rv.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				return newLiveOnly(v)
			}
			out[f.Name] = toJSON(rv.Field(i).Interface(), seen)
		}
		return out

	default:
		return newLiveOnly(v)
	}
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int8:
		return float64(t)
	case int16:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case uint:
		return float64(t)
	case uint8:
		return float64(t)
	case uint16:
		return float64(t)
	case uint32:
		return float64(t)
	case uint64:
		return float64(t)
	case float32:
		return float64(t)
	case float64:
		return t
	}
	return 0
}

// FromJSON is the identity function on the wire representation: a Value
// decoded off the stream (by encoding/json, into `any`) is already in
// the shape ToJSON produces, modulo LiveOnly sentinels arriving as plain
// maps rather than the LiveOnly struct. It exists, and is named to
// mirror ToJSON, so call sites read symmetrically; the one piece of
// normalization it performs is recognizing and typing sentinels.
func FromJSON(v Value) Value {
	if m, ok := v.(map[string]any); ok && IsLiveOnly(m) {
		lo := LiveOnly{LiveOnlyMarker: true}
		if s, ok := m["__type"].(string); ok {
			lo.Type = s
		}
		if s, ok := m["__to_string"].(string); ok {
			lo.ToString = s
		}
		return lo
	}
	return v
}
