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

package replay_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/durably-run/durably/pkg/durable/event"
	"github.com/durably-run/durably/pkg/durable/replay"
)

func TestNew_EmptyLogHasNoEvents(t *testing.T) {
	idx := replay.New(nil)
	assert.False(t, idx.HasEvents())

	_, _, ok := idx.PeekYield("root")
	assert.False(t, ok)
}

func TestIndex_PeekAndConsumeYield(t *testing.T) {
	idx := replay.New([]event.Event{
		event.Yield("root", "effect-1", "sleep(1)"),
		event.NextOK("root", "effect-1", event.ToJSON("done")),
		event.Yield("root", "effect-2", "sleep(2)"),
	})
	require.True(t, idx.HasEvents())

	effectID, desc, ok := idx.PeekYield("root")
	require.True(t, ok)
	assert.Equal(t, "effect-1", effectID)
	assert.Equal(t, "sleep(1)", desc)

	idx.ConsumeYield("root")

	effectID, desc, ok = idx.PeekYield("root")
	require.True(t, ok)
	assert.Equal(t, "effect-2", effectID)
	assert.Equal(t, "sleep(2)", desc)

	idx.ConsumeYield("root")
	_, _, ok = idx.PeekYield("root")
	assert.False(t, ok)
}

func TestIndex_ResolutionLookup(t *testing.T) {
	idx := replay.New([]event.Event{
		event.Yield("root", "effect-1", "sleep(1)"),
		event.NextOK("root", "effect-1", event.ToJSON(float64(7))),
	})

	res, ok := idx.Resolution("effect-1")
	require.True(t, ok)
	assert.Equal(t, event.StatusOK, res.Status)
	assert.Equal(t, float64(7), res.Value)

	_, ok = idx.Resolution("effect-missing")
	assert.False(t, ok)
}

func TestIndex_InfrastructureYieldsExcludedFromPerCoroutineList(t *testing.T) {
	idx := replay.New([]event.Event{
		event.Yield("root", "infra-1", "coroutine-create"),
		event.NextOK("root", "infra-1", nil),
		event.Yield("root", "effect-1", "sleep(1)"),
	})

	effectID, _, ok := idx.PeekYield("root")
	require.True(t, ok)
	assert.Equal(t, "effect-1", effectID, "infrastructure yield must not appear in the per-coroutine list")

	_, ok = idx.Resolution("infra-1")
	assert.False(t, ok, "infrastructure resolutions are never indexed")
}

func TestIndex_SpawnPeekAndConsumeInOrder(t *testing.T) {
	idx := replay.New([]event.Event{
		event.SpawnEvent("root", "coroutine-1"),
		event.SpawnEvent("root", "coroutine-2"),
	})

	spawn, ok := idx.PeekSpawn()
	require.True(t, ok)
	assert.Equal(t, "coroutine-1", spawn.ChildCoroutineID)

	idx.ConsumeSpawn()

	spawn, ok = idx.PeekSpawn()
	require.True(t, ok)
	assert.Equal(t, "coroutine-2", spawn.ChildCoroutineID)

	idx.ConsumeSpawn()
	_, ok = idx.PeekSpawn()
	assert.False(t, ok)
}

func TestIndex_ConsumeSpawnForChildOutOfOrder(t *testing.T) {
	idx := replay.New([]event.Event{
		event.SpawnEvent("root", "coroutine-1"),
		event.SpawnEvent("root", "coroutine-2"),
		event.SpawnEvent("root", "coroutine-3"),
	})

	spawn, ok := idx.ConsumeSpawnForChild("coroutine-2")
	require.True(t, ok)
	assert.Equal(t, "coroutine-2", spawn.ChildCoroutineID)

	// The global cursor still starts at the first unconsumed entry.
	next, ok := idx.PeekSpawn()
	require.True(t, ok)
	assert.Equal(t, "coroutine-1", next.ChildCoroutineID)

	_, ok = idx.ConsumeSpawnForChild("coroutine-2")
	assert.False(t, ok, "a spawn already consumed cannot be consumed again")
}

func TestIndex_CloseLookupAndConsume(t *testing.T) {
	idx := replay.New([]event.Event{
		event.CloseOK("coroutine-1", event.ToJSON("result")),
	})

	closeEv, ok := idx.Close("coroutine-1")
	require.True(t, ok)
	assert.Equal(t, event.StatusOK, closeEv.Status)

	idx.ConsumeClose("coroutine-1")
	_, ok = idx.Close("coroutine-1")
	assert.False(t, ok)

	_, ok = idx.Close("coroutine-unknown")
	assert.False(t, ok)
}
