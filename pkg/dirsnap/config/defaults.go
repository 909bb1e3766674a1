package config

import "time"

// Default configuration values.
const (
	// DefaultPath is the directory used when none is given.
	DefaultPath = "."

	// DefaultWalkWorkers keeps the walk sequential.
	DefaultWalkWorkers = 1

	DefaultOutputFormat = "pretty"

	DefaultRetentionDays = 90

	DefaultDebounce = 2 * time.Second

	DefaultLogLevel = "info"
)
