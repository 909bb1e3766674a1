package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jamesainslie/dirsnap/pkg/dirsnap/config"
	"github.com/jamesainslie/dirsnap/pkg/dirsnap/event"
	"github.com/jamesainslie/dirsnap/pkg/dirsnap/history"
	"github.com/jamesainslie/dirsnap/pkg/dirsnap/manifest"
	"github.com/jamesainslie/dirsnap/pkg/dirsnap/output"
	"github.com/jamesainslie/dirsnap/pkg/dirsnap/reconcile"
	"github.com/jamesainslie/dirsnap/pkg/dirsnap/syncer"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup <src> [dest]",
	Short: "Copy what is missing from src into dest",
	Long: `Snapshot both directories, then copy every directory and file of src that
dest does not already hold. dest defaults to the current directory.

Nothing in dest is overwritten or deleted. When dest has a file of the same
name with a different modification time, the incoming copy is written as
dirsnap-src-<name> next to it.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runBackup,
}

func init() {
	addIncludeHiddenFlag(backupCmd)
	rootCmd.AddCommand(backupCmd)
}

func runBackup(cmd *cobra.Command, args []string) error {
	dest := config.DefaultPath
	if len(args) > 1 {
		dest = args[1]
	}
	dirs, err := resolveDirs(args[0], dest)
	if err != nil {
		return err
	}
	src, dest := dirs[0], dirs[1]

	ctx, stop := signalContext()
	defer stop()

	started := time.Now()
	result, report, err := backup(ctx, afero.NewOsFs(), newSink(), src, dest, snapshotOptions(cmd))

	recordRun(history.FromReport(src, dest, started, report, err))
	if rerr := render(result); rerr != nil {
		return rerr
	}
	return err
}

// backup snapshots both directories and runs one reconcile pass from src
// into dest. The result is always usable for rendering; the report is nil
// when the run failed before reconciling.
func backup(ctx context.Context, fs afero.Fs, sink event.Sink, src, dest string, opts syncer.Options) (*output.Result, *reconcile.Report, error) {
	start := time.Now()
	result := &output.Result{Operation: "backup", Source: src, Dest: dest}
	finish := func(report *reconcile.Report, err error) (*output.Result, *reconcile.Report, error) {
		result.Duration = time.Since(start)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			result.Interrupted = errors.Is(err, context.Canceled)
		}
		return result, report, err
	}

	event.Infof(sink, "", "snapshotting %s and %s", src, dest)
	srcManifest, err := manifest.New(src, manifest.WithWorkers(opts.Workers)).Initialize(ctx, opts.IncludeHidden)
	if err != nil {
		return finish(nil, fmt.Errorf("failed to snapshot %s: %w", src, err))
	}
	destManifest, err := manifest.New(dest, manifest.WithWorkers(opts.Workers)).Initialize(ctx, opts.IncludeHidden)
	if err != nil {
		return finish(nil, fmt.Errorf("failed to snapshot %s: %w", dest, err))
	}

	event.Infof(sink, "", "backing up %s into %s", src, dest)
	report, err := reconcile.New(fs, sink).Reconcile(ctx, reconcile.Request{
		SourceRoot: src,
		DestRoot:   dest,
		Source:     srcManifest,
		Dest:       destManifest,
		Tag:        reconcile.TagSource,
	})
	result.Passes = []output.Pass{{
		Label:  "backup",
		Source: src,
		Dest:   dest,
		Report: report,
	}}
	return finish(report, err)
}
