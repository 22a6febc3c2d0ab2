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

package durable

import (
	"context"
	"errors"
	"sync"

	"github.com/durably-run/durably/pkg/durable/event"
	"github.com/durably-run/durably/pkg/durable/host"
)

// ErrCancelled is the error a Handle's Await reports for an operation
// torn down by Cancel before it produced its own result.
var ErrCancelled = errors.New("durably: operation cancelled")

// Handle is a running child operation started by Context.Spawn. It
// models the "branch" half of spawn/all/race: the parent can keep
// running after Spawn returns and Await the child's result whenever it
// needs it.
type Handle struct {
	mu        sync.Mutex
	cancelled bool
	cancel    context.CancelFunc

	once   sync.Once
	done   chan host.StepResult
	result host.StepResult
}

// Await blocks until the child operation finishes, returning its
// terminal value and error. It is safe to call more than once or from
// more than one goroutine; every call after the first observes the same
// cached result.
func (h *Handle) Await() (event.Value, error) {
	h.once.Do(func() {
		h.result = <-h.done
	})
	return h.result.Value, h.result.Err
}

// Cancel asks the child's context to stop and marks its eventual close
// as cancelled rather than ok/err, provided the child has not already
// finished. Operations that do not observe context cancellation run to
// completion regardless; Cancel is cooperative, matching this runtime's
// context-based cancellation idiom (see Context.Context).
func (h *Handle) Cancel() {
	h.mu.Lock()
	h.cancelled = true
	h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
	}
}
