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

// Command durably-inspect is read-only tooling over a persisted
// sqlitestream log: it prints a workflow's event history as a table,
// flags invariant violations, and reports where a resumed run would
// have to go live because its last recorded Yield has no resolution.
// It does not participate in record/replay itself.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/durably-run/durably/internal/durablyinspect"
	"github.com/durably-run/durably/pkg/durable/stream"
	"github.com/durably-run/durably/pkg/durable/stream/sqlitestream"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "durably-inspect",
		Short:         "Inspect a durably sqlitestream log",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newEventsCommand())
	cmd.AddCommand(newCheckCommand())

	return cmd
}

func newEventsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "events <db-path>",
		Short: "Print a stream's events as a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := loadEntries(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return durablyinspect.RenderTable(cmd.OutOrStdout(), entries)
		},
	}
}

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check <db-path>",
		Short: "Check a stream's event log for invariant violations and pending work",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := loadEntries(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			violations := durablyinspect.CheckInvariants(entries)
			durablyinspect.RenderViolations(cmd.OutOrStdout(), violations)

			pending := durablyinspect.PendingYields(entries)
			for _, p := range pending {
				fmt.Fprintf(cmd.OutOrStdout(), "pending (would run live on resume): %s\n", p)
			}

			if len(violations) > 0 {
				return fmt.Errorf("%d invariant violation(s) found", len(violations))
			}
			return nil
		},
	}
}

func loadEntries(ctx context.Context, path string) ([]stream.Entry, error) {
	s, err := sqlitestream.Open(ctx, sqlitestream.Config{Path: path})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer s.ReleaseHandle()

	entries, err := s.Read(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return entries, nil
}
