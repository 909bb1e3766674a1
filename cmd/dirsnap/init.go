package main

import (
	"fmt"
	"time"

	"github.com/jamesainslie/dirsnap/pkg/dirsnap/manifest"
	"github.com/jamesainslie/dirsnap/pkg/dirsnap/output"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init <path>",
	Short: "Snapshot a directory",
	Long: `Walk a directory and write its manifest to <path>/.snapshot/manifest.json.

Any previous snapshot is replaced. Entries that cannot be read are skipped
and listed.`,
	Args: cobra.ExactArgs(1),
	RunE: runInit,
}

func init() {
	addIncludeHiddenFlag(initCmd)
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	root, err := resolveDir(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	opts := snapshotOptions(cmd)
	start := time.Now()

	res, err := manifest.New(root, manifest.WithWorkers(opts.Workers)).Snapshot(ctx, opts.IncludeHidden)
	if err != nil {
		return fmt.Errorf("failed to snapshot %s: %w", root, err)
	}

	return render(&output.Result{
		Operation: "init",
		Source:    root,
		Manifest:  res.Manifest,
		Skipped:   skippedPaths(res.Errors),
		Duration:  time.Since(start),
	})
}
