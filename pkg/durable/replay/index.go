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

// Package replay builds the in-memory index a reducer consults to
// decide, for every effect a coroutine yields, whether it is replaying
// a recorded outcome or running live for the first time.
//
// The index is built once, from the full contents of a workflow's
// stream, and is read-only after construction except for its cursors
// and consumed flags: advancing a cursor and marking a spawn or close
// consumed are the only mutations, and neither is ever undone.
package replay

import "github.com/durably-run/durably/pkg/durable/event"

// yieldEntry is one user-visible suspension point recorded for a
// coroutine, in the order it originally occurred.
type yieldEntry struct {
	effectID    string
	description string
	offset      int
}

// closeEntry pairs a coroutine's recorded Close with whether replay has
// already consumed it.
type closeEntry struct {
	event    event.Event
	consumed bool
}

// Index is the replay-index structure described in the runtime's
// design: a per-coroutine ordered yield list with a cursor, an
// effect_id -> Next lookup, an ordered spawn list with a global cursor
// and consumed set, and a coroutine_id -> Close lookup.
type Index struct {
	yields       map[string][]yieldEntry
	yieldCursors map[string]int

	resolutions map[string]event.Event

	infrastructureEffectIDs map[string]bool

	spawns         []event.Event
	spawnConsumed  []bool
	spawnCursor    int

	closes map[string]*closeEntry

	hasEvents bool
}

// New builds an Index from the full contents of a stream read from
// offset zero. An empty log yields an Index whose HasEvents is false
// and every lookup empty, which is exactly the state a fresh workflow
// starts in.
func New(events []event.Event) *Index {
	idx := &Index{
		yields:                   make(map[string][]yieldEntry),
		yieldCursors:             make(map[string]int),
		resolutions:              make(map[string]event.Event),
		infrastructureEffectIDs:  make(map[string]bool),
		closes:                   make(map[string]*closeEntry),
		hasEvents:                len(events) > 0,
	}

	for offset, ev := range events {
		switch ev.Kind {
		case event.KindYield:
			if IsInfrastructure(ev.Description) {
				idx.infrastructureEffectIDs[ev.EffectID] = true
				continue
			}
			idx.yields[ev.CoroutineID] = append(idx.yields[ev.CoroutineID], yieldEntry{
				effectID:    ev.EffectID,
				description: ev.Description,
				offset:      offset,
			})
		case event.KindNext:
			if idx.infrastructureEffectIDs[ev.EffectID] {
				continue
			}
			idx.resolutions[ev.EffectID] = ev
		case event.KindSpawn:
			idx.spawns = append(idx.spawns, ev)
			idx.spawnConsumed = append(idx.spawnConsumed, false)
		case event.KindClose:
			idx.closes[ev.CoroutineID] = &closeEntry{event: ev}
		}
	}

	return idx
}

// HasEvents reports whether the index was built from a non-empty log.
// It is a cheap "am I replaying at all" signal; per-operation decisions
// must still consult the per-coroutine cursors, since a workflow can
// mix replayed and live coroutines at the same instant.
func (idx *Index) HasEvents() bool {
	return idx.hasEvents
}

// PeekYield returns the next unconsumed recorded yield for coroutineID
// without advancing its cursor.
func (idx *Index) PeekYield(coroutineID string) (effectID, description string, ok bool) {
	list := idx.yields[coroutineID]
	cursor := idx.yieldCursors[coroutineID]
	if cursor >= len(list) {
		return "", "", false
	}
	entry := list[cursor]
	return entry.effectID, entry.description, true
}

// PeekYieldOffset returns the log offset of the next unconsumed
// recorded yield for coroutineID, for callers (the reducer) that need
// it to populate a DivergenceError.
func (idx *Index) PeekYieldOffset(coroutineID string) (offset uint64, ok bool) {
	list := idx.yields[coroutineID]
	cursor := idx.yieldCursors[coroutineID]
	if cursor >= len(list) {
		return 0, false
	}
	return uint64(list[cursor].offset), true
}

// ConsumeYield advances coroutineID's yield cursor past the entry last
// returned by PeekYield. Calling it without a matching Peek is a bug in
// the caller, not in the index; the index trusts its caller (the
// reducer) to consume at most once per dispatched effect.
func (idx *Index) ConsumeYield(coroutineID string) {
	idx.yieldCursors[coroutineID]++
}

// Resolution looks up the recorded Next for effectID. It returns false
// both when no such event exists and when effectID belongs to an
// infrastructure effect, since infrastructure resolutions are never
// indexed (§4.3).
func (idx *Index) Resolution(effectID string) (event.Event, bool) {
	ev, ok := idx.resolutions[effectID]
	return ev, ok
}

// PeekSpawn returns the next unconsumed spawn in log order, without
// marking it consumed. The scope-lifecycle middleware uses this to
// check whether the spawn's recorded parent matches the coroutine it
// observed creating a child before deciding to adopt it.
func (idx *Index) PeekSpawn() (event.Event, bool) {
	for i := idx.spawnCursor; i < len(idx.spawns); i++ {
		if !idx.spawnConsumed[i] {
			return idx.spawns[i], true
		}
	}
	return event.Event{}, false
}

// ConsumeSpawn marks the spawn most recently returned by PeekSpawn as
// consumed and advances the global cursor past any entries already
// consumed out of order.
func (idx *Index) ConsumeSpawn() {
	for i := idx.spawnCursor; i < len(idx.spawns); i++ {
		if !idx.spawnConsumed[i] {
			idx.spawnConsumed[i] = true
			break
		}
	}
	for idx.spawnCursor < len(idx.spawnConsumed) && idx.spawnConsumed[idx.spawnCursor] {
		idx.spawnCursor++
	}
}

// ConsumeSpawnForChild finds and consumes the recorded spawn whose
// ChildCoroutineID matches childID, regardless of its position relative
// to the global cursor. This supports tree reconstruction strategies
// (e.g. `all`/`race` reattaching branches by recorded child id) that
// need to consume spawns out of log order (§4.3).
func (idx *Index) ConsumeSpawnForChild(childID string) (event.Event, bool) {
	for i, ev := range idx.spawns {
		if idx.spawnConsumed[i] {
			continue
		}
		if ev.ChildCoroutineID == childID {
			idx.spawnConsumed[i] = true
			for idx.spawnCursor < len(idx.spawnConsumed) && idx.spawnConsumed[idx.spawnCursor] {
				idx.spawnCursor++
			}
			return ev, true
		}
	}
	return event.Event{}, false
}

// Close looks up the recorded Close for coroutineID, if any and if it
// has not already been consumed.
func (idx *Index) Close(coroutineID string) (event.Event, bool) {
	entry, ok := idx.closes[coroutineID]
	if !ok || entry.consumed {
		return event.Event{}, false
	}
	return entry.event, true
}

// ConsumeClose marks coroutineID's recorded Close as consumed, so a
// second teardown attempt (which should not happen under correct host
// behavior, but which the middleware defends against) does not observe
// it twice.
func (idx *Index) ConsumeClose(coroutineID string) {
	if entry, ok := idx.closes[coroutineID]; ok {
		entry.consumed = true
	}
}
