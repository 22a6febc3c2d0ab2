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

package replay

import "strings"

// inlineGeneratorPrefix marks descriptions minted by the host for
// anonymous inline generator plumbing; any description with this prefix
// is infrastructure regardless of what follows it.
const inlineGeneratorPrefix = "inline-generator:"

// infrastructureDescriptions is the fixed set of effect descriptions the
// host raises for its own bookkeeping rather than on a workflow
// author's behalf. They are always live and never recorded, so that an
// upgraded host can change its internal mechanics without invalidating
// existing logs (§4.4).
var infrastructureDescriptions = map[string]bool{
	"coroutine-create":  true,
	"scope-acquire":     true,
	"scope-delimiter":   true,
	"boundary":          true,
	"resource-await":    true,
	"winner-await":      true,
	"callcc":            true,
	"each-done":         true,
	"each-context":      true,
	"teardown-finalize": true,
}

// IsInfrastructure classifies an effect description as infrastructure
// (always live) or user (recordable). This is the sole classifier
// consulted by both the replay index (to filter the per-coroutine yield
// list) and the reducer (to skip recording and divergence checking).
func IsInfrastructure(description string) bool {
	if strings.HasPrefix(description, inlineGeneratorPrefix) {
		return true
	}
	return infrastructureDescriptions[description]
}
