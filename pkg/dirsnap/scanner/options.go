// Package scanner builds manifests by walking a directory tree with
// fastwalk. The walk is best-effort: unreadable entries are recorded as scan
// errors and skipped, never aborting the snapshot.
package scanner

import "github.com/jamesainslie/dirsnap/pkg/dirsnap/config"

// Options configures a scan.
type Options struct {
	// Root is the directory to snapshot.
	Root string

	// IncludeHidden records entries whose name starts with a dot. The
	// reserved snapshot directory is skipped regardless.
	IncludeHidden bool

	// Workers is the number of fastwalk workers. The resulting manifest does
	// not depend on it.
	Workers int
}

// DefaultOptions returns options for a sequential scan of the default path.
func DefaultOptions() Options {
	return Options{
		Root:    config.DefaultPath,
		Workers: config.DefaultWalkWorkers,
	}
}

// applyDefaults fills in unset values.
func (o *Options) applyDefaults() {
	if o.Root == "" {
		o.Root = config.DefaultPath
	}
	if o.Workers < 1 {
		o.Workers = config.DefaultWalkWorkers
	}
}
