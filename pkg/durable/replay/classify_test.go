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

	"github.com/durably-run/durably/pkg/durable/replay"
)

func TestIsInfrastructure(t *testing.T) {
	tests := []struct {
		description string
		want        bool
	}{
		{"coroutine-create", true},
		{"scope-acquire", true},
		{"resource-await", true},
		{"winner-await", true},
		{"callcc", true},
		{"each-done", true},
		{"each-context", true},
		{"inline-generator:anon-42", true},
		{"inline-generator:", true},
		{"sleep(1000)", false},
		{"http.get(https://example.com)", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			assert.Equal(t, tt.want, replay.IsInfrastructure(tt.description))
		})
	}
}
