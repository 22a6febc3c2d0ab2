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

// Package durablystyle provides the durably-inspect CLI's terminal
// color palette, grounded on the teacher's internal/commands/shared
// styles package.
package durablystyle

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	// Kind styles one color per event.Kind so a scrolling table stays
	// scannable.
	KindYield = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))  // blue
	KindNext  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))  // green
	KindSpawn = lipgloss.NewStyle().Foreground(lipgloss.Color("214")) // orange
	KindClose = lipgloss.NewStyle().Foreground(lipgloss.Color("135")) // purple

	// StatusOK and StatusErr color a Next/Close event's outcome.
	StatusOK  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	StatusErr = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	// Violation styles an invariant-violation line in the report.
	Violation = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	// Muted styles secondary columns (offsets, ids).
	Muted = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	// Header styles the table header row.
	Header = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
)

// Symbols mirror the teacher's status glyphs.
const (
	SymbolOK        = "✓"
	SymbolErr       = "✗"
	SymbolViolation = "⚠"
)
