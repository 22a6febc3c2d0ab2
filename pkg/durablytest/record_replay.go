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

package durablytest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/durably-run/durably/pkg/durable"
	"github.com/durably-run/durably/pkg/durable/event"
	"github.com/durably-run/durably/pkg/durable/stream"
)

// AssertRecordReplay runs op once against a fresh in-memory stream (the
// "record" pass), then runs it again against a closed stream holding
// exactly the events the record pass produced (the "replay" pass), and
// requires the two passes agree on terminal value and error — the
// core invariant of spec §8: a replay of a complete log must reproduce
// the original outcome without re-executing any live effect.
//
// It returns the event log from the record pass so the caller can run
// further shape assertions (AssertNoGaps, AssertSingleClose,
// AssertSpawnBeforeYield) against it.
func AssertRecordReplay(t *testing.T, ctx context.Context, op durable.Op) []event.Event {
	t.Helper()

	recordStream := stream.NewMemory()
	recordedValue, recordedErr := durable.Run(ctx, op, durable.WithStream(recordStream))

	entries, err := recordStream.Read(ctx, 0)
	require.NoError(t, err, "reading back the record pass's own stream must not fail")

	events := make([]event.Event, len(entries))
	for i, e := range entries {
		events[i] = e.Event
	}

	replayStream := stream.FromEvents(events, true)
	replayedValue, replayedErr := durable.Run(ctx, op, durable.WithStream(replayStream))

	require.Equal(t, recordedValue, replayedValue, "replay produced a different terminal value than the original run")
	if recordedErr == nil {
		require.NoError(t, replayedErr, "replay failed where the original run succeeded")
	} else {
		require.Error(t, replayedErr, "replay succeeded where the original run failed")
		require.Equal(t, recordedErr.Error(), replayedErr.Error(), "replay's terminal error differs from the original run's")
	}

	return events
}
