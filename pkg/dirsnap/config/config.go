// Package config loads dirsnap settings from a YAML file, environment
// variables, and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// appName names the config, data, and state directories.
const appName = "dirsnap"

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level"`
	Path       string            `mapstructure:"path"`
	Components map[string]string `mapstructure:"components"`
}

// HistoryConfig configures the run history database.
type HistoryConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Path          string `mapstructure:"path"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// Config represents the application configuration.
type Config struct {
	IncludeHidden bool `mapstructure:"include_hidden"`
	Walk          struct {
		Workers int `mapstructure:"workers"`
	} `mapstructure:"walk"`
	Output struct {
		Format string `mapstructure:"format"`
	} `mapstructure:"output"`
	History HistoryConfig `mapstructure:"history"`
	Watch   struct {
		Debounce time.Duration `mapstructure:"debounce"`
	} `mapstructure:"watch"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// HistoryPath returns the configured history path, or the default.
func (c *Config) HistoryPath() string {
	if c.History.Path != "" {
		return c.History.Path
	}
	return DefaultHistoryPath()
}

// LogPath returns the configured log file path, or the default.
func (c *Config) LogPath() string {
	if c.Logging.Path != "" {
		return c.Logging.Path
	}
	return DefaultLogPath()
}

// Default returns the built-in configuration, ignoring files and environment.
func Default() *Config {
	cfg := &Config{}
	cfg.Walk.Workers = DefaultWalkWorkers
	cfg.Output.Format = DefaultOutputFormat
	cfg.History.Enabled = true
	cfg.History.RetentionDays = DefaultRetentionDays
	cfg.Watch.Debounce = DefaultDebounce
	cfg.Logging.Level = DefaultLogLevel
	cfg.Logging.Components = map[string]string{}
	return cfg
}

// Load loads configuration from the default locations and environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile loads configuration from file, or from the default locations when
// file is empty:
//   - $XDG_CONFIG_HOME/dirsnap/config.yaml
//   - $HOME/.config/dirsnap/config.yaml
//
// Environment variables are prefixed with DIRSNAP_ (e.g.
// DIRSNAP_WALK_WORKERS). A missing default config file is not an error; a
// missing explicit one is.
func LoadFile(file string) (*Config, error) {
	v := viper.New()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			v.AddConfigPath(filepath.Join(xdgConfigHome, appName))
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		v.AddConfigPath(filepath.Join(homeDir, ".config", appName))
	}

	v.SetEnvPrefix("DIRSNAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for _, p := range []*string{&cfg.History.Path, &cfg.Logging.Path} {
		expanded, err := ExpandPath(*p)
		if err != nil {
			return nil, err
		}
		*p = expanded
	}
	if cfg.Walk.Workers < 1 {
		cfg.Walk.Workers = DefaultWalkWorkers
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("include_hidden", false)
	v.SetDefault("walk.workers", DefaultWalkWorkers)
	v.SetDefault("output.format", DefaultOutputFormat)
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "") // Empty means use DefaultHistoryPath
	v.SetDefault("history.retention_days", DefaultRetentionDays)
	v.SetDefault("watch.debounce", DefaultDebounce)
	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.path", "") // Empty means use DefaultLogPath
	v.SetDefault("logging.components", map[string]string{})
}

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, appName), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", appName), nil
}

// ConfigPath returns the default config file path.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// WriteDefault writes a default config file if none exists and returns its
// path. An existing file is left untouched.
func WriteDefault() (string, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		return configPath, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to check config file: %w", err)
	}

	defaultConfig := fmt.Sprintf(`# dirsnap configuration

# Record dot-prefixed files and directories in snapshots
include_hidden: false

walk:
  # Parallel directory walkers (the snapshot is identical for any value)
  workers: %d

output:
  # pretty, plain, json, yaml
  format: %s

# Run history
history:
  enabled: true
  # Empty means use default: $XDG_DATA_HOME/dirsnap/history
  path: ""
  retention_days: %d

watch:
  # Quiet period before a change burst triggers a sync
  debounce: %s

logging:
  # Log level: debug, info, warn, error
  level: %s
  # Empty means use default: $XDG_STATE_HOME/dirsnap/dirsnap.log
  path: ""
  # Per-component log levels, e.g. reconcile: debug
  components: {}
`, DefaultWalkWorkers, DefaultOutputFormat, DefaultRetentionDays, DefaultDebounce, DefaultLogLevel)

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return "", fmt.Errorf("failed to write default config: %w", err)
	}

	return configPath, nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, path[1:]), nil
}

// DataDir returns $XDG_DATA_HOME/dirsnap/ for the history database.
func DataDir() string {
	return filepath.Join(xdg.DataHome, appName)
}

// StateDir returns $XDG_STATE_HOME/dirsnap/ for log files.
func StateDir() string {
	return filepath.Join(xdg.StateHome, appName)
}

// DefaultHistoryPath returns the default history database directory.
func DefaultHistoryPath() string {
	return filepath.Join(DataDir(), "history")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(StateDir(), appName+".log")
}
