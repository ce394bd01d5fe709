/*
Copyright 2025 Billsync Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/billsync/billsync"
	"github.com/billsync/billsync/parser"
)

// syncCommands defines the `sync` command, which runs one fetch-parse-save
// cycle. Per-record failures are reported in the summary and do not fail
// the command; only a transport or store failure yields a non-zero exit.
func syncCommands(b *billsyncInstance) *cobra.Command {
	var source string
	var days int
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch notification mail and store extracted transactions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if source != parser.SourceType {
				return fmt.Errorf("unknown source %q (supported: %s)", source, parser.SourceType)
			}
			result, err := b.billsync.Sync(context.Background(), billsync.SyncOptions{
				Days:   days,
				DryRun: dryRun,
			})
			if err != nil {
				return err
			}
			printSyncResult(result)
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", parser.SourceType, "Notification source to sync")
	cmd.Flags().IntVar(&days, "days", 0, "Override the fetch window with a fixed day count")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Parse and report without writing anything")
	return cmd
}

// scheduleCommands defines the `schedule` command, which runs sync on a
// fixed interval until interrupted. Ticks never overlap.
func scheduleCommands(b *billsyncInstance) *cobra.Command {
	var interval int

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run sync periodically until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 {
				interval = b.cnf.Sync.IntervalMinutes
			}
			scheduler := billsync.NewScheduler(b.billsync)
			err := scheduler.Start(cmd.Context(), time.Duration(interval)*time.Minute)
			if err == context.Canceled {
				return nil
			}
			return err
		},
	}
	cmd.Flags().IntVar(&interval, "interval", 0, "Minutes between syncs (defaults to the configured interval)")
	return cmd
}

func printSyncResult(result *billsync.SyncResult) {
	label := "sync completed"
	if result.DryRun {
		label = "dry run completed"
	}
	fmt.Printf("%s: window %s -> %s\n", label,
		result.From.Format("2006-01-02 15:04"), result.To.Format("2006-01-02 15:04"))
	fmt.Printf("  fetched:    %d\n", result.Fetched)
	fmt.Printf("  parsed:     %d\n", result.Parsed)
	if !result.DryRun {
		fmt.Printf("  new:        %d\n", result.New)
		fmt.Printf("  duplicates: %d\n", result.Duplicates)
	}
	fmt.Printf("  no match:   %d\n", result.NoMatch)
	if result.Errors > 0 {
		fmt.Printf("  errors:     %d\n", result.Errors)
	}
}
