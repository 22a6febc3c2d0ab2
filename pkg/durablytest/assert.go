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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/durably-run/durably/pkg/durable/event"
)

// AssertNoGaps fails t if events contains a Next for an effect that was
// never Yielded first, by coroutine. It does not check ordering beyond
// that — concurrent coroutines may interleave their own yield/next
// pairs freely.
func AssertNoGaps(t *testing.T, events []event.Event) {
	t.Helper()

	yielded := map[string]map[string]bool{}
	for _, ev := range events {
		switch ev.Kind {
		case event.KindYield:
			if yielded[ev.CoroutineID] == nil {
				yielded[ev.CoroutineID] = map[string]bool{}
			}
			yielded[ev.CoroutineID][ev.EffectID] = true
		case event.KindNext:
			assert.Truef(t, yielded[ev.CoroutineID][ev.EffectID],
				"next for effect %s on coroutine %s has no matching yield", ev.EffectID, ev.CoroutineID)
		}
	}
}

// AssertSingleClose fails t unless coroutineID appears in exactly one
// Close event in events: a missing Close fails as well as a repeated one.
func AssertSingleClose(t *testing.T, events []event.Event, coroutineID string) {
	t.Helper()

	count := 0
	for _, ev := range events {
		if ev.Kind == event.KindClose && ev.CoroutineID == coroutineID {
			count++
		}
	}
	assert.Equalf(t, 1, count, "coroutine %s closed %d times, want exactly 1", coroutineID, count)
}

// AssertSpawnBeforeYield fails t if any coroutine's first Yield in
// events precedes the Spawn event that created it, i.e. a child is
// never recorded as suspending before its own creation is recorded.
func AssertSpawnBeforeYield(t *testing.T, events []event.Event) {
	t.Helper()

	spawnedAt := map[string]int{}
	for i, ev := range events {
		if ev.Kind == event.KindSpawn {
			spawnedAt[ev.ChildCoroutineID] = i
		}
	}

	seenYield := map[string]bool{}
	for i, ev := range events {
		if ev.Kind != event.KindYield || seenYield[ev.CoroutineID] {
			continue
		}
		seenYield[ev.CoroutineID] = true
		if ev.CoroutineID == event.RootCoroutineID {
			continue
		}
		spawnIdx, ok := spawnedAt[ev.CoroutineID]
		assert.Truef(t, ok, "coroutine %s yielded at event %d but was never spawned", ev.CoroutineID, i)
		if ok {
			assert.Lessf(t, spawnIdx, i, "coroutine %s yielded at event %d before its spawn at %d", ev.CoroutineID, i, spawnIdx)
		}
	}
}
