package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jamesainslie/dirsnap/pkg/dirsnap/config"
	"github.com/jamesainslie/dirsnap/pkg/dirsnap/event"
	"github.com/jamesainslie/dirsnap/pkg/dirsnap/history"
	"github.com/jamesainslie/dirsnap/pkg/dirsnap/logging"
	"github.com/jamesainslie/dirsnap/pkg/dirsnap/output"
	"github.com/jamesainslie/dirsnap/pkg/dirsnap/scanner"
	"github.com/jamesainslie/dirsnap/pkg/dirsnap/syncer"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// resolveDir expands and absolutizes path and checks that it is an existing
// directory. Every command runs this before touching any directory.
func resolveDir(path string) (string, error) {
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return "", fmt.Errorf("failed to expand path: %w", err)
	}

	absPath, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("directory does not exist: %s", absPath)
		}
		return "", fmt.Errorf("cannot access path: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("path is not a directory: %s", absPath)
	}

	return absPath, nil
}

// resolveDirs runs resolveDir on every path and stops at the first failure.
func resolveDirs(paths ...string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		abs, err := resolveDir(p)
		if err != nil {
			return nil, err
		}
		out = append(out, abs)
	}
	return out, nil
}

// addIncludeHiddenFlag registers --include-hidden on a snapshotting command.
func addIncludeHiddenFlag(cmd *cobra.Command) {
	cmd.Flags().Bool("include-hidden", false, "record dot-prefixed files and directories")
}

// snapshotOptions merges the command's --include-hidden flag with the config.
func snapshotOptions(cmd *cobra.Command) syncer.Options {
	opts := syncer.Options{
		IncludeHidden: appConfig.IncludeHidden,
		Workers:       appConfig.Walk.Workers,
	}
	if f := cmd.Flags().Lookup("include-hidden"); f != nil && f.Changed {
		opts.IncludeHidden, _ = cmd.Flags().GetBool("include-hidden")
	}
	return opts
}

// newSink returns the event sink for a run: badges on stderr plus the log.
func newSink() event.Sink {
	return event.Multi(
		output.ConsoleSink(os.Stderr, getQuiet()),
		event.NewLogSink(logging.Get("events")),
	)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// outputFormat returns the --output flag, or the configured format.
func outputFormat() string {
	if f := viper.GetString("output"); f != "" {
		return f
	}
	if appConfig.Output.Format != "" {
		return appConfig.Output.Format
	}
	return config.DefaultOutputFormat
}

// render writes result to stdout in the selected format.
func render(result *output.Result) error {
	return renderTo(os.Stdout, outputFormat(), result)
}

func renderTo(w io.Writer, format string, result *output.Result) error {
	formatter, err := output.Get(format)
	if err != nil {
		return fmt.Errorf("unknown output format %q: available formats are %v", format, output.Available())
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, result); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	_, err = w.Write(buf.Bytes())
	return err
}

// skippedPaths flattens scan errors for display.
func skippedPaths(errs []scanner.ScanError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, fmt.Sprintf("%s: %s", e.Path, e.Error))
	}
	return out
}

// historyEnabled reports whether runs should be recorded.
func historyEnabled() bool {
	return appConfig.History.Enabled && !viper.GetBool("no_history")
}

// openHistory opens the configured history database.
func openHistory() (*history.Store, error) {
	return history.Open(appConfig.HistoryPath())
}

// recordRun stores run in the history. Failures are logged, never fatal:
// the files have already been copied.
func recordRun(run history.Run) {
	if !historyEnabled() {
		return
	}
	logger := logging.Get("history")

	store, err := openHistory()
	if err != nil {
		logger.Warn("history unavailable", "error", err)
		printVerbose("history unavailable: %v", err)
		return
	}
	defer func() { _ = store.Close() }()

	saved, err := store.Record(run)
	if err != nil {
		logger.Warn("failed to record run", "error", err)
		printVerbose("failed to record run: %v", err)
		return
	}
	printVerbose("recorded run %s", saved.ShortID())
}
