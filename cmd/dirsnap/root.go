package main

import (
	"fmt"
	"os"

	"github.com/jamesainslie/dirsnap/pkg/dirsnap/config"
	"github.com/jamesainslie/dirsnap/pkg/dirsnap/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	appConfig = config.Default()
	rootCmd   = &cobra.Command{
		Use:   "dirsnap",
		Short: "Snapshot, back up, and sync directories",
		Long: `Dirsnap records a manifest of every directory it touches and uses those
manifests to copy only what is missing.

A file that exists on both sides with a different modification time is never
overwritten: the incoming version is written next to it as
dirsnap-<tag>-<name> so you can review it.

Examples:
  dirsnap init ~/photos                  # Snapshot a directory
  dirsnap backup ~/photos /mnt/backup    # One-way copy into a backup
  dirsnap sync ~/work /mnt/share/work    # Two-way sync
  dirsnap watch ~/work /mnt/share/work   # Sync on every change
  dirsnap show /mnt/backup -o plain      # List a persisted snapshot
  dirsnap history                        # View past runs`,
		PersistentPreRunE: loadConfig,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/dirsnap/config.yaml)")
	rootCmd.PersistentFlags().StringP("output", "o", "", "output format: pretty, plain, json, yaml")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output")
	rootCmd.PersistentFlags().Bool("no-history", false, "do not record this run in the history")

	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("no_history", rootCmd.PersistentFlags().Lookup("no-history"))
}

// loadConfig reads the config file and environment and starts logging. A
// broken default config falls back to built-in defaults; a broken explicit
// one is fatal.
func loadConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFile(cfgFile)
	if err != nil {
		if cfgFile != "" {
			return err
		}
		printError("%v (using defaults)", err)
		cfg = config.Default()
	}
	appConfig = cfg

	consoleLevel := ""
	if getVerbose() && !getQuiet() {
		consoleLevel = "debug"
	}
	if err := logging.Init(logging.Config{
		Level:        cfg.Logging.Level,
		Path:         cfg.LogPath(),
		Components:   cfg.Logging.Components,
		ConsoleLevel: consoleLevel,
	}); err != nil {
		printVerbose("file logging disabled: %v", err)
	}

	logging.Get("cli").Debug("command started", "command", cmd.CommandPath(), "args", args)
	return nil
}

// Execute runs the root command.
func Execute() error {
	defer func() { _ = logging.Close() }()

	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		return err
	}
	return nil
}

// getVerbose returns true if verbose mode is enabled.
func getVerbose() bool {
	return viper.GetBool("verbose")
}

// getQuiet returns true if quiet mode is enabled.
func getQuiet() bool {
	return viper.GetBool("quiet")
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...interface{}) {
	if getVerbose() && !getQuiet() {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message if quiet mode is not enabled.
func printInfo(format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Printf(format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
