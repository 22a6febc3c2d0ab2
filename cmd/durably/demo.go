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

package main

import (
	"fmt"
	"time"

	"github.com/durably-run/durably/pkg/durable"
	"github.com/durably-run/durably/pkg/durable/event"
	"github.com/durably-run/durably/pkg/durable/host"
)

// demoOps holds the workflows `durably run` can execute, keyed by the
// name passed to --workflow. Each is a small but real durable.Op: a run
// against a fresh stream records every Yield/Next/Spawn/Close it
// produces, and the same op run again against that recorded stream
// replays instead of re-entering the effects.
var demoOps = map[string]durable.Op{
	"greet":  greetOp,
	"fanout": fanoutOp,
}

// greetOp runs a single effect and returns its result, the smallest
// possible durable workflow.
func greetOp(wctx *durable.Context) (event.Value, error) {
	res := wctx.Effect("greet", func(resume host.ResumeFunc) {
		resume(host.OK(event.ToJSON("hello from durably")))
	})
	return res.Value, res.Err
}

// fanoutOp spawns three child coroutines, each running its own effect,
// and awaits all of them, exercising Spawn/Await alongside Yield/Next.
func fanoutOp(wctx *durable.Context) (event.Value, error) {
	handles := make([]*durable.Handle, 0, 3)
	for i := 0; i < 3; i++ {
		n := i
		h, err := wctx.Spawn(func(child *durable.Context) (event.Value, error) {
			res := child.Effect(fmt.Sprintf("work-%d", n), func(resume host.ResumeFunc) {
				resume(host.OK(event.ToJSON(n * n)))
			})
			return res.Value, res.Err
		})
		if err != nil {
			return nil, err
		}
		handles = append(handles, h)
	}

	results := make([]event.Value, len(handles))
	for i, h := range handles {
		v, err := h.Await()
		if err != nil {
			return nil, err
		}
		results[i] = v
	}
	return results, nil
}

// timerOp sleeps via an effect whose Enter blocks in real time, showing
// that a replayed run skips straight past the wait instead of sleeping
// again.
func timerOp(wctx *durable.Context) (event.Value, error) {
	res := wctx.Effect("sleep(200ms)", func(resume host.ResumeFunc) {
		time.Sleep(200 * time.Millisecond)
		resume(host.OK(event.ToJSON("woke")))
	})
	return res.Value, res.Err
}

func init() {
	demoOps["timer"] = timerOp
}
