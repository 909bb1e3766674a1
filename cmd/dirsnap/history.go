package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jamesainslie/dirsnap/pkg/dirsnap/config"
	"github.com/jamesainslie/dirsnap/pkg/dirsnap/history"
	"github.com/jamesainslie/dirsnap/pkg/dirsnap/types"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View past backup and sync runs",
	Long: `View the history of backup and sync runs.

Every run records what it copied, which files it had to rename, and whether
it failed. Use --no-history to skip recording a run.`,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show details of a specific run",
	Long:  `Display a run by its ID. A unique ID prefix is enough.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove old history entries",
	Long:  `Remove runs older than history.retention_days.`,
	RunE:  runHistoryClean,
}

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of entries to show")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyCleanCmd)
	rootCmd.AddCommand(historyCmd)
}

// encodeStructured writes v as JSON or YAML when that output format is
// selected, and reports whether it did.
func encodeStructured(v interface{}) (bool, error) {
	switch outputFormat() {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer func() { _ = enc.Close() }()
		return true, enc.Encode(v)
	}
	return false, nil
}

// runHistory lists recent runs.
func runHistory(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer func() { _ = store.Close() }()

	runs, err := store.List(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}

	if done, err := encodeStructured(runs); done {
		return err
	}

	if len(runs) == 0 {
		printInfo("No history entries found.")
		printInfo("Run 'dirsnap backup <src> <dest>' or 'dirsnap sync <a> <b>' to create one.")
		return nil
	}

	fmt.Printf("\n%-8s  %-19s  %-6s  %-7s  %-7s  %-10s  %s\n", "ID", "STARTED", "OP", "COPIED", "RENAMED", "SIZE", "PATHS")
	fmt.Println(strings.Repeat("-", 100))

	for _, run := range runs {
		status := ""
		if run.Failed() {
			status = " (failed)"
		}
		fmt.Printf("%-8s  %-19s  %-6s  %-7d  %-7d  %-10s  %s%s\n",
			run.ShortID(),
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Operation,
			run.Copied,
			run.Renamed,
			types.FormatSize(run.BytesCopied),
			truncateString(run.Source+" -> "+run.Dest, 40),
			status,
		)
	}

	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("\nShowing %d entries. Use --limit to see more.\n", len(runs))
	fmt.Println("Use 'dirsnap history show <id>' for details on a specific run.")

	return nil
}

// runHistoryShow displays details of a specific run.
func runHistoryShow(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer func() { _ = store.Close() }()

	run, err := store.Get(args[0])
	if err != nil {
		return fmt.Errorf("failed to get run: %w", err)
	}

	if done, err := encodeStructured(run); done {
		return err
	}

	fmt.Println("\nRun Details")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("ID:          %s\n", run.ID)
	fmt.Printf("Started:     %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("Duration:    %s\n", run.Duration.Round(time.Millisecond))
	fmt.Printf("Operation:   %s\n", run.Operation)
	fmt.Printf("Source:      %s\n", run.Source)
	fmt.Printf("Dest:        %s\n", run.Dest)
	fmt.Printf("Directories: %d created\n", run.CreatedDirs)
	fmt.Printf("Files:       %d copied (%s), %d already present\n", run.Copied, types.FormatSize(run.BytesCopied), run.Redundant)
	if run.Operation == history.OpSync {
		fmt.Printf("Removed:     %d transient copies\n", run.Removed)
	}
	if run.Failed() {
		fmt.Printf("Error:       %s\n", run.Error)
	}

	if len(run.Renames) > 0 {
		fmt.Println("\nRenamed (review these files):")
		fmt.Println(strings.Repeat("-", 60))

		limit := 50
		if len(run.Renames) < limit {
			limit = len(run.Renames)
		}
		for _, r := range run.Renames[:limit] {
			fmt.Printf("  %s -> %s\n", r.From, r.To)
		}
		if len(run.Renames) > limit {
			fmt.Printf("\n... and %d more files\n", len(run.Renames)-limit)
		}
	}

	return nil
}

// runHistoryClean removes old history entries.
func runHistoryClean(cmd *cobra.Command, args []string) error {
	retentionDays := appConfig.History.RetentionDays
	if retentionDays <= 0 {
		retentionDays = config.DefaultRetentionDays
	}

	store, err := openHistory()
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer func() { _ = store.Close() }()

	printInfo("Cleaning history entries older than %d days...", retentionDays)

	removed, err := store.Cleanup(retentionDays)
	if err != nil {
		return fmt.Errorf("failed to clean history: %w", err)
	}

	printInfo("Removed %d entries.", removed)
	return nil
}

// truncateString truncates a string to maxLen, keeping the tail, which holds
// the most specific part of a path.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[len(s)-maxLen:]
	}
	return "..." + s[len(s)-maxLen+3:]
}
