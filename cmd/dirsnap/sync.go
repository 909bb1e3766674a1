package main

import (
	"context"
	"errors"
	"time"

	"github.com/jamesainslie/dirsnap/pkg/dirsnap/history"
	"github.com/jamesainslie/dirsnap/pkg/dirsnap/output"
	"github.com/jamesainslie/dirsnap/pkg/dirsnap/syncer"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync <a> <b>",
	Short: "Two-way sync of two directories",
	Long: `Copy what each directory is missing from the other.

When both sides hold a file of the same name with different modification
times, b keeps both versions (the one from a as dirsnap-src-<name>) and a
keeps both versions (the one from b as dirsnap-dest-<name>). Review and
rename those files by hand.`,
	Args: cobra.ExactArgs(2),
	RunE: runSync,
}

func init() {
	addIncludeHiddenFlag(syncCmd)
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	dirs, err := resolveDirs(args[0], args[1])
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	s := syncer.New(afero.NewOsFs(), newSink(), snapshotOptions(cmd))
	return syncOnce(ctx, s, dirs[0], dirs[1])
}

// syncOnce runs a sync, records it, and renders the outcome.
func syncOnce(ctx context.Context, s *syncer.Syncer, dirA, dirB string) error {
	started := time.Now()
	res, err := s.Sync(ctx, dirA, dirB)

	recordRun(history.FromSync(started, res))
	if rerr := render(syncResult(res)); rerr != nil {
		return rerr
	}
	return err
}

// syncResult converts a sync result for the formatters.
func syncResult(res *syncer.Result) *output.Result {
	out := &output.Result{
		Operation: "sync",
		Source:    res.DirA,
		Dest:      res.DirB,
		Passes: []output.Pass{
			{Label: "a -> b", Source: res.DirA, Dest: res.DirB, Report: res.Forward},
			{Label: "b -> a", Source: res.DirB, Dest: res.DirA, Report: res.Backward},
		},
		Removed:  res.Removed,
		Duration: res.Duration,
	}
	for _, e := range res.Errors {
		out.Errors = append(out.Errors, e.Error())
		if errors.Is(e, context.Canceled) {
			out.Interrupted = true
		}
	}
	return out
}
