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

package durablyinspect

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/durably-run/durably/pkg/durable/event"
	"github.com/durably-run/durably/pkg/durable/stream"
)

func entries(events ...event.Event) []stream.Entry {
	out := make([]stream.Entry, len(events))
	for i, ev := range events {
		out[i] = stream.Entry{Offset: uint64(i), Event: ev}
	}
	return out
}

func TestCheckInvariants_CleanLogHasNoViolations(t *testing.T) {
	es := entries(
		event.Yield(event.RootCoroutineID, "e1", "sleep"),
		event.NextOK(event.RootCoroutineID, "e1", "done"),
		event.CloseOK(event.RootCoroutineID, "done"),
	)
	assert.Empty(t, CheckInvariants(es))
}

func TestCheckInvariants_NextWithoutYield(t *testing.T) {
	es := entries(
		event.NextOK(event.RootCoroutineID, "e1", "done"),
	)
	violations := CheckInvariants(es)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0].Message, "no matching yield")
}

func TestCheckInvariants_DoubleClose(t *testing.T) {
	es := entries(
		event.CloseOK(event.RootCoroutineID, "done"),
		event.CloseOK(event.RootCoroutineID, "done"),
	)
	violations := CheckInvariants(es)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0].Message, "closed more than once")
}

func TestCheckInvariants_YieldBeforeSpawn(t *testing.T) {
	es := entries(
		event.Yield("coroutine-1", "e1", "work"),
		event.SpawnEvent(event.RootCoroutineID, "coroutine-1"),
	)
	violations := CheckInvariants(es)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0].Message, "before its spawn")
}

func TestPendingYields_ReportsUnresolvedTail(t *testing.T) {
	es := entries(
		event.Yield(event.RootCoroutineID, "e1", "sleep"),
	)
	pending := PendingYields(es)
	require.Len(t, pending, 1)
	assert.Contains(t, pending[0], "e1")
}

func TestPendingYields_ResolvedYieldIsNotPending(t *testing.T) {
	es := entries(
		event.Yield(event.RootCoroutineID, "e1", "sleep"),
		event.NextOK(event.RootCoroutineID, "e1", "done"),
	)
	assert.Empty(t, PendingYields(es))
}

func TestRenderTable_WritesOneRowPerEvent(t *testing.T) {
	es := entries(
		event.Yield(event.RootCoroutineID, "e1", "sleep"),
		event.NextOK(event.RootCoroutineID, "e1", "done"),
	)
	var buf bytes.Buffer
	require.NoError(t, RenderTable(&buf, es))
	assert.Contains(t, buf.String(), "yield")
	assert.Contains(t, buf.String(), "next")
}

func TestRenderViolations_EmptyReportsClean(t *testing.T) {
	var buf bytes.Buffer
	RenderViolations(&buf, nil)
	assert.Contains(t, buf.String(), "no invariant violations found")
}
