package main

import (
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/jamesainslie/dirsnap/pkg/dirsnap/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Inspect and create the dirsnap config file.

Lookup order: --config <file>, then $XDG_CONFIG_HOME/dirsnap/config.yaml,
then ~/.config/dirsnap/config.yaml. Any key can be overridden from the
environment by upper-casing it, replacing dots with underscores, and adding
the DIRSNAP_ prefix, for example DIRSNAP_WATCH_DEBOUNCE=5s.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open the config file in $VISUAL or $EDITOR",
	Long:  `Open the config file in $VISUAL, $EDITOR, or vi, creating it with defaults first if needed.`,
	RunE:  runConfigEdit,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd, configEditCmd, configInitCmd, configPathCmd)
	rootCmd.AddCommand(configCmd)
}

// setting is one displayed config key and its effective value.
type setting struct {
	key   string
	value string
}

// envName returns the environment variable that overrides key.
func (s setting) envName() string {
	return "DIRSNAP_" + strings.ToUpper(strings.ReplaceAll(s.key, ".", "_"))
}

// settings flattens cfg into display order. Paths show their resolved
// defaults.
func settings(cfg *config.Config) []setting {
	out := []setting{
		{"include_hidden", fmt.Sprint(cfg.IncludeHidden)},
		{"walk.workers", fmt.Sprint(cfg.Walk.Workers)},
		{"output.format", cfg.Output.Format},
		{"history.enabled", fmt.Sprint(cfg.History.Enabled)},
		{"history.path", cfg.HistoryPath()},
		{"history.retention_days", fmt.Sprint(cfg.History.RetentionDays)},
		{"watch.debounce", cfg.Watch.Debounce.String()},
		{"logging.level", cfg.Logging.Level},
		{"logging.path", cfg.LogPath()},
	}

	components := make([]string, 0, len(cfg.Logging.Components))
	for name := range cfg.Logging.Components {
		components = append(components, name)
	}
	sort.Strings(components)
	for _, name := range components {
		out = append(out, setting{"logging.components." + name, cfg.Logging.Components[name]})
	}
	return out
}

// activeConfigFile returns the file the config was read from, or "".
func activeConfigFile() string {
	if cfgFile != "" {
		return cfgFile
	}
	p, err := config.ConfigPath()
	if err != nil {
		return ""
	}
	if _, err := os.Stat(p); err != nil {
		return ""
	}
	return p
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	if file := activeConfigFile(); file != "" {
		fmt.Printf("Config file: %s\n\n", file)
	} else {
		fmt.Print("Config file: (none, using defaults)\n\n")
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	var overrides []string
	for _, s := range settings(appConfig) {
		source := ""
		if val, ok := os.LookupEnv(s.envName()); ok {
			source = "(from " + s.envName() + ")"
			overrides = append(overrides, s.envName()+"="+val)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.key, s.value, source)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(overrides) > 0 {
		printVerbose("environment overrides: %s", strings.Join(overrides, " "))
	}
	return nil
}

// editor picks the user's editor command.
func editor() string {
	for _, env := range []string{"VISUAL", "EDITOR"} {
		if e := os.Getenv(env); e != "" {
			return e
		}
	}
	return "vi"
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	path, err := config.WriteDefault()
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	ed := editor()
	printVerbose("Opening %s with %s", path, ed)

	c := exec.Command(ed, path)
	c.Stdin, c.Stdout, c.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := c.Run(); err != nil {
		return fmt.Errorf("%s exited with error: %w", ed, err)
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, err := config.ConfigPath()
	if err != nil {
		return err
	}
	_, statErr := os.Stat(path)
	existed := statErr == nil

	if _, err := config.WriteDefault(); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	if existed {
		printInfo("%s already exists, left unchanged", path)
	} else {
		printInfo("Wrote %s", path)
	}
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	path, err := config.ConfigPath()
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}
