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

package host

import "fmt"

// Yield is the function an imperative coroutine body calls to suspend on
// an effect. It blocks the coroutine's goroutine until the driver
// resumes, returns, or throws into it.
type Yield func(Effect) Resolution

// Body is the function a Generator runs as its coroutine. It receives
// the Yield function it must call to suspend, and returns the
// workflow's terminal value or error. A Body observes "throw" the same
// way any Go function observes a failure: by checking the error on the
// Resolution that Yield returns and propagating it.
type Body func(yield Yield) (any, error)

// delivery is what the driver's goroutine hands to the blocked
// coroutine goroutine across toCoroutine: the method being applied and
// the resolution carrying its payload.
type delivery struct {
	method Method
	res    Resolution
}

// returnRequested is panicked from inside a blocked Yield call when the
// driver issues MethodReturn, unwinding the body's goroutine through
// any deferred cleanup without letting it observe a normal resolution.
type returnRequested struct {
	value any
}

// Generator runs an imperative coroutine body on its own goroutine and
// implements Coroutine by handing off control across two unbuffered
// channels, one per direction, so the body's goroutine and the driver's
// goroutine never run concurrently — mirroring the single-threaded
// cooperative scheduling the reducer assumes (spec §5).
type Generator struct {
	body        Body
	toCoroutine chan delivery
	toDriver    chan StepResult
	started     bool
	done        bool
}

// NewGenerator constructs a Generator around body. The coroutine does
// not start running until the first Step call, mirroring a JS
// generator's lazy-start semantics.
func NewGenerator(body Body) *Generator {
	return &Generator{
		body:        body,
		toCoroutine: make(chan delivery),
		toDriver:    make(chan StepResult),
	}
}

// Step implements Coroutine.
func (g *Generator) Step(method Method, res Resolution) StepResult {
	if g.done {
		return StepResult{Done: true}
	}

	if !g.started {
		g.started = true
		go g.run()
	} else {
		g.toCoroutine <- delivery{method: method, res: res}
	}

	result := <-g.toDriver
	if result.Done {
		g.done = true
	}
	return result
}

func (g *Generator) run() {
	defer func() {
		if r := recover(); r != nil {
			if ret, ok := r.(returnRequested); ok {
				g.toDriver <- StepResult{Done: true, Value: ret.value}
				return
			}
			g.toDriver <- StepResult{Done: true, Err: fmt.Errorf("coroutine panicked: %v", r)}
		}
	}()

	yield := func(e Effect) Resolution {
		g.toDriver <- StepResult{Effect: e}
		d := <-g.toCoroutine
		if d.method == MethodReturn {
			panic(returnRequested{value: d.res.Value})
		}
		return d.res
	}

	value, err := g.body(yield)
	g.toDriver <- StepResult{Done: true, Value: value, Err: err}
}

var _ Coroutine = (*Generator)(nil)
