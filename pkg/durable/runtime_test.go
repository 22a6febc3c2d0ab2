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

package durable_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/durably-run/durably/pkg/durable"
	"github.com/durably-run/durably/pkg/durable/event"
	"github.com/durably-run/durably/pkg/durable/host"
	"github.com/durably-run/durably/pkg/durable/stream"
)

func TestRun_NoEffectsReturnsValue(t *testing.T) {
	value, err := durable.Run(context.Background(), func(wctx *durable.Context) (event.Value, error) {
		return "hello", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", value)
}

func TestRun_RecordsYieldNextAndRootClose(t *testing.T) {
	ctx := context.Background()
	str := stream.NewMemory()

	_, err := durable.Run(ctx, func(wctx *durable.Context) (event.Value, error) {
		res := wctx.Effect("sleep(1)", func(resume host.ResumeFunc) {
			resume(host.OK(event.ToJSON("woke")))
		})
		return res.Value, res.Err
	}, durable.WithStream(str))
	require.NoError(t, err)

	entries, err := str.Read(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, event.KindYield, entries[0].Event.Kind)
	assert.Equal(t, event.KindNext, entries[1].Event.Kind)
	assert.Equal(t, event.KindClose, entries[2].Event.Kind)
	assert.Equal(t, event.RootCoroutineID, entries[2].Event.CoroutineID)
	assert.Equal(t, event.StatusOK, entries[2].Event.Status)

	closed, err := str.Closed(ctx)
	require.NoError(t, err)
	assert.True(t, closed)
}

func TestRun_WorkflowErrorPropagatesAndRecordsCloseErr(t *testing.T) {
	ctx := context.Background()
	str := stream.NewMemory()
	boom := errors.New("boom")

	_, err := durable.Run(ctx, func(wctx *durable.Context) (event.Value, error) {
		return nil, boom
	}, durable.WithStream(str))
	require.ErrorIs(t, err, boom)

	entries, _ := str.Read(ctx, 0)
	require.Len(t, entries, 1)
	assert.Equal(t, event.KindClose, entries[0].Event.Kind)
	assert.Equal(t, event.StatusErr, entries[0].Event.Status)
}

func TestRun_ResumeFromPriorLogSkipsSideEffect(t *testing.T) {
	ctx := context.Background()
	str := stream.NewMemory()

	var calls int32
	op := func(wctx *durable.Context) (event.Value, error) {
		res := wctx.Effect("charge-card(42)", func(resume host.ResumeFunc) {
			atomic.AddInt32(&calls, 1)
			resume(host.OK(event.ToJSON("charged")))
		})
		return res.Value, res.Err
	}

	_, err := durable.Run(ctx, op, durable.WithStream(str))
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls)

	entries, err := str.Read(ctx, 0)
	require.NoError(t, err)
	events := make([]event.Event, len(entries))
	for i, e := range entries {
		events[i] = e.Event
	}
	// Drop the terminal root Close so the resumed run still has
	// something to do, mirroring a process that died right after
	// recording its last effect but before the root finished tearing
	// down.
	resumeLog := stream.FromEvents(events[:len(events)-1], false)

	_, err = durable.Run(ctx, op, durable.WithStream(resumeLog))
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls, "replaying a recorded effect must not re-run its side effect")
}

func TestContext_SpawnAndAwait(t *testing.T) {
	value, err := durable.Run(context.Background(), func(wctx *durable.Context) (event.Value, error) {
		h, err := wctx.Spawn(func(child *durable.Context) (event.Value, error) {
			res := child.Effect("step()", func(resume host.ResumeFunc) { resume(host.OK(event.ToJSON("child-result"))) })
			return res.Value, res.Err
		})
		if err != nil {
			return nil, err
		}
		return h.Await()
	})
	require.NoError(t, err)
	assert.Equal(t, "child-result", value)
}

func TestContext_All(t *testing.T) {
	value, err := durable.Run(context.Background(), func(wctx *durable.Context) (event.Value, error) {
		results, err := wctx.All(
			func(child *durable.Context) (event.Value, error) { return "a", nil },
			func(child *durable.Context) (event.Value, error) { return "b", nil },
		)
		if err != nil {
			return nil, err
		}
		return results, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []event.Value{"a", "b"}, value)
}

func TestContext_AllPropagatesFirstError(t *testing.T) {
	boom := errors.New("boom")
	_, err := durable.Run(context.Background(), func(wctx *durable.Context) (event.Value, error) {
		_, err := wctx.All(
			func(child *durable.Context) (event.Value, error) { return nil, boom },
			func(child *durable.Context) (event.Value, error) { return "b", nil },
		)
		return nil, err
	})
	require.ErrorIs(t, err, boom)
}

func TestContext_RaceReturnsFirstResult(t *testing.T) {
	value, err := durable.Run(context.Background(), func(wctx *durable.Context) (event.Value, error) {
		return wctx.Race(
			func(child *durable.Context) (event.Value, error) {
				res := child.Effect("slow()", func(resume host.ResumeFunc) { resume(host.OK(event.ToJSON("slow"))) })
				return res.Value, res.Err
			},
			func(child *durable.Context) (event.Value, error) {
				return "fast", nil
			},
		)
	})
	require.NoError(t, err)
	assert.Contains(t, []string{"slow", "fast"}, value)
}

func TestContext_Scoped(t *testing.T) {
	value, err := durable.Run(context.Background(), func(wctx *durable.Context) (event.Value, error) {
		return wctx.Scoped(func(child *durable.Context) (event.Value, error) {
			return "scoped-result", nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, "scoped-result", value)
}

func TestContext_Resource(t *testing.T) {
	released := false
	value, err := durable.Run(context.Background(), func(wctx *durable.Context) (event.Value, error) {
		var result event.Value
		err := wctx.Resource("db-connection()",
			func() (event.Value, func() error, error) {
				return "connection-handle", func() error { released = true; return nil }, nil
			},
			func(conn event.Value) error {
				result = conn
				return nil
			},
		)
		return result, err
	})
	require.NoError(t, err)
	assert.Equal(t, "connection-handle", value)
	assert.True(t, released)
}

func TestContext_Each(t *testing.T) {
	items := make(chan event.Value, 3)
	items <- "one"
	items <- "two"
	items <- "three"
	close(items)

	var seen []string
	_, err := durable.Run(context.Background(), func(wctx *durable.Context) (event.Value, error) {
		err := wctx.Each(items, func(item event.Value) error {
			seen = append(seen, item.(string))
			return nil
		})
		return nil, err
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, seen)
}
