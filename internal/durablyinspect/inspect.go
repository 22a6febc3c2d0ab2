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

// Package durablyinspect implements the read-only analysis durably-inspect
// performs over a persisted stream: tabular rendering and the
// invariant checks of spec §3, reimplemented here as reporting (string
// violations) rather than as test assertions (durablytest covers that
// use case for in-process tests).
package durablyinspect

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/durably-run/durably/internal/durablystyle"
	"github.com/durably-run/durably/pkg/durable/event"
	"github.com/durably-run/durably/pkg/durable/stream"
)

// Violation is one invariant breach found in a stream's event log.
type Violation struct {
	Offset  uint64
	Message string
}

// CheckInvariants walks entries once and reports every breach of the
// log invariants a well-formed stream must satisfy: every Next has a
// matching prior Yield, every coroutine closes at most once, and no
// coroutine's first Yield precedes the Spawn that created it.
func CheckInvariants(entries []stream.Entry) []Violation {
	var violations []Violation

	yielded := map[string]map[string]bool{}
	closeCount := map[string]int{}
	spawnedAt := map[string]uint64{}
	seenYield := map[string]bool{}

	for _, e := range entries {
		if e.Event.Kind == event.KindSpawn {
			spawnedAt[e.Event.ChildCoroutineID] = e.Offset
		}
	}

	for _, e := range entries {
		ev := e.Event
		switch ev.Kind {
		case event.KindYield:
			if yielded[ev.CoroutineID] == nil {
				yielded[ev.CoroutineID] = map[string]bool{}
			}
			yielded[ev.CoroutineID][ev.EffectID] = true

			if !seenYield[ev.CoroutineID] {
				seenYield[ev.CoroutineID] = true
				if ev.CoroutineID != event.RootCoroutineID {
					spawnOffset, ok := spawnedAt[ev.CoroutineID]
					if !ok {
						violations = append(violations, Violation{
							Offset:  e.Offset,
							Message: fmt.Sprintf("coroutine %s yielded before any recorded spawn", ev.CoroutineID),
						})
					} else if spawnOffset >= e.Offset {
						violations = append(violations, Violation{
							Offset:  e.Offset,
							Message: fmt.Sprintf("coroutine %s yielded at offset %d before its spawn at %d", ev.CoroutineID, e.Offset, spawnOffset),
						})
					}
				}
			}

		case event.KindNext:
			if !yielded[ev.CoroutineID][ev.EffectID] {
				violations = append(violations, Violation{
					Offset:  e.Offset,
					Message: fmt.Sprintf("next for effect %s on coroutine %s has no matching yield", ev.EffectID, ev.CoroutineID),
				})
			}

		case event.KindClose:
			closeCount[ev.CoroutineID]++
			if closeCount[ev.CoroutineID] > 1 {
				violations = append(violations, Violation{
					Offset:  e.Offset,
					Message: fmt.Sprintf("coroutine %s closed more than once", ev.CoroutineID),
				})
			}
		}
	}

	return violations
}

// PendingYields reports coroutines whose most recent Yield has no
// recorded resolution and no recorded Close — the crash-recovery case
// of spec §7, where a process died between recording a Yield and
// recording its Next. This is not an invariant violation; it describes
// exactly where a resumed run would go live instead of replaying.
func PendingYields(entries []stream.Entry) []string {
	resolved := map[string]bool{}
	lastYield := map[string]string{}
	closed := map[string]bool{}

	for _, e := range entries {
		ev := e.Event
		switch ev.Kind {
		case event.KindYield:
			lastYield[ev.CoroutineID] = ev.EffectID
		case event.KindNext:
			resolved[ev.EffectID] = true
		case event.KindClose:
			closed[ev.CoroutineID] = true
		}
	}

	var pending []string
	for coroutineID, effectID := range lastYield {
		if closed[coroutineID] || resolved[effectID] {
			continue
		}
		pending = append(pending, fmt.Sprintf("%s: effect %s has no recorded resolution", coroutineID, effectID))
	}
	return pending
}

// RenderTable writes entries as an aligned, colored table.
func RenderTable(w io.Writer, entries []stream.Entry) error {
	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, durablystyle.Header.Render("OFFSET\tKIND\tCOROUTINE\tEFFECT\tDETAIL"))

	for _, e := range entries {
		ev := e.Event
		kind, detail := renderKind(ev)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			durablystyle.Muted.Render(fmt.Sprintf("%d", e.Offset)),
			kind,
			ev.CoroutineID,
			durablystyle.Muted.Render(ev.EffectID),
			detail,
		)
	}

	return tw.Flush()
}

func renderKind(ev event.Event) (kind, detail string) {
	switch ev.Kind {
	case event.KindYield:
		return durablystyle.KindYield.Render("yield"), ev.Description
	case event.KindNext:
		return durablystyle.KindNext.Render("next"), renderStatus(ev.Status)
	case event.KindSpawn:
		return durablystyle.KindSpawn.Render("spawn"), "-> " + ev.ChildCoroutineID
	case event.KindClose:
		return durablystyle.KindClose.Render("close"), renderStatus(ev.Status)
	default:
		return string(ev.Kind), ""
	}
}

func renderStatus(status event.Status) string {
	switch status {
	case event.StatusOK:
		return durablystyle.StatusOK.Render(durablystyle.SymbolOK + " ok")
	case event.StatusErr:
		return durablystyle.StatusErr.Render(durablystyle.SymbolErr + " err")
	case event.StatusCancelled:
		return durablystyle.Muted.Render("cancelled")
	default:
		return string(status)
	}
}

// RenderViolations writes a list of Violations, one per line, or a
// single "no violations found" line when the list is empty.
func RenderViolations(w io.Writer, violations []Violation) {
	if len(violations) == 0 {
		fmt.Fprintln(w, durablystyle.StatusOK.Render(durablystyle.SymbolOK+" no invariant violations found"))
		return
	}
	for _, v := range violations {
		fmt.Fprintln(w, durablystyle.Violation.Render(fmt.Sprintf("%s offset %d: %s", durablystyle.SymbolViolation, v.Offset, v.Message)))
	}
}
