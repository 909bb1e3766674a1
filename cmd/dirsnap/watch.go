package main

import (
	"fmt"
	"time"

	"github.com/jamesainslie/dirsnap/pkg/dirsnap/logging"
	"github.com/jamesainslie/dirsnap/pkg/dirsnap/syncer"
	"github.com/jamesainslie/dirsnap/pkg/dirsnap/watcher"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// changeBuffer bounds the changes queued while a sync is running.
const changeBuffer = 1024

var watchCmd = &cobra.Command{
	Use:   "watch <a> <b>",
	Short: "Sync two directories whenever either changes",
	Long: `Run a sync now, then watch both directories and sync again once changes
have been quiet for the debounce period. Changes made by the sync itself do
not trigger another sync. Stop with Ctrl+C.`,
	Args: cobra.ExactArgs(2),
	RunE: runWatch,
}

var watchDebounce time.Duration

func init() {
	addIncludeHiddenFlag(watchCmd)
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 0, "quiet period before syncing (default from config, 2s)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	dirs, err := resolveDirs(args[0], args[1])
	if err != nil {
		return err
	}
	dirA, dirB := dirs[0], dirs[1]

	debounce := appConfig.Watch.Debounce
	if cmd.Flags().Changed("debounce") {
		debounce = watchDebounce
	}
	if debounce <= 0 {
		return fmt.Errorf("invalid debounce %v: must be positive", debounce)
	}

	logger := logging.Get("watch")
	opts := snapshotOptions(cmd)

	w, err := watcher.New(watcher.Options{IncludeHidden: opts.IncludeHidden})
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	for _, dir := range dirs {
		if err := w.Watch(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	ctx, stop := signalContext()
	defer stop()

	s := syncer.New(afero.NewOsFs(), newSink(), opts)
	syncNow := func() {
		if err := syncOnce(ctx, s, dirA, dirB); err != nil {
			printError("%v", err)
		}
	}

	changes := make(chan watcher.Change, changeBuffer)
	go w.Run(ctx, func(c watcher.Change) {
		select {
		case changes <- c:
		case <-ctx.Done():
		}
	})

	syncNow()
	watcher.Drain(ctx, changes, debounce)

	printInfo("Watching %s and %s (%d directories, Ctrl+C to stop)", dirA, dirB, len(w.Paths()))
	logger.Info("watching", "a", dirA, "b", dirB, "debounce", debounce)

	watcher.Debounce(ctx, changes, debounce, func(batch []watcher.Change) {
		logger.Info("changes detected", "count", len(batch), "first", batch[0].Path)
		printVerbose("%d changes, first %s", len(batch), batch[0].Path)

		syncNow()

		if n := watcher.Drain(ctx, changes, debounce); n > 0 {
			logger.Debug("dropped changes made by sync", "count", n)
		}
	})

	logger.Info("watch stopped")
	return nil
}
