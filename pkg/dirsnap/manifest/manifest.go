// Package manifest persists directory snapshots under the reserved
// .snapshot directory of a snapshot root.
package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jamesainslie/dirsnap/pkg/dirsnap/logging"
	"github.com/jamesainslie/dirsnap/pkg/dirsnap/scanner"
	"github.com/jamesainslie/dirsnap/pkg/dirsnap/types"
)

// Store reads and writes the persisted manifest of one snapshot root.
type Store struct {
	root    string
	workers int
}

// Option configures a Store.
type Option func(*Store)

// WithWorkers sets the number of walk workers used by Initialize.
func WithWorkers(n int) Option {
	return func(s *Store) {
		s.workers = n
	}
}

// New creates a Store for root. Nothing is touched on disk until
// Initialize is called.
func New(root string, opts ...Option) *Store {
	s := &Store{root: root}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the snapshot root.
func (s *Store) Root() string {
	return s.root
}

// Dir returns the reserved snapshot directory.
func (s *Store) Dir() string {
	return filepath.Join(s.root, types.ReservedDir)
}

// Path returns the location of the persisted manifest file.
func (s *Store) Path() string {
	return filepath.Join(s.Dir(), types.ManifestFile)
}

// Initialize snapshots the root and replaces the persisted manifest.
func (s *Store) Initialize(ctx context.Context, includeHidden bool) (types.Manifest, error) {
	res, err := s.Snapshot(ctx, includeHidden)
	if err != nil {
		return nil, err
	}
	return res.Manifest, nil
}

// Snapshot is Initialize returning the full scan result, including entries
// skipped as unreadable.
func (s *Store) Snapshot(ctx context.Context, includeHidden bool) (*scanner.Result, error) {
	logger := logging.Get("manifest")

	res, err := scanner.New(scanner.Options{
		Root:          s.root,
		IncludeHidden: includeHidden,
		Workers:       s.workers,
	}).Scan(ctx)
	if err != nil {
		return nil, err
	}

	if err := os.RemoveAll(s.Dir()); err != nil {
		return nil, fmt.Errorf("failed to remove %s: %w", s.Dir(), err)
	}
	if err := os.MkdirAll(s.Dir(), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", s.Dir(), err)
	}
	if err := s.write(res.Manifest); err != nil {
		return nil, err
	}

	if err := hideDir(s.Dir()); err != nil {
		logger.Warn("could not hide snapshot directory", "path", s.Dir(), "error", err)
	}

	logger.Info("manifest written",
		"path", s.Path(),
		"entries", len(res.Manifest),
		"skipped", len(res.Errors))
	return res, nil
}

// write stores the manifest atomically using a temp file and rename.
func (s *Store) write(m types.Manifest) error {
	if m == nil {
		m = types.Manifest{}
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	path := s.Path()
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Load returns the persisted manifest. A missing or unparseable file yields
// an empty manifest.
func (s *Store) Load() types.Manifest {
	logger := logging.Get("manifest")

	data, err := os.ReadFile(s.Path())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("cannot read manifest", "path", s.Path(), "error", err)
		}
		return types.Manifest{}
	}

	var m types.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		logger.Warn("corrupt manifest, treating as empty", "path", s.Path(), "error", err)
		return types.Manifest{}
	}
	if m == nil {
		m = types.Manifest{}
	}
	return m
}

// Exists reports whether a persisted manifest is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.Path())
	return err == nil
}

// Load reads the persisted manifest of root.
func Load(root string) types.Manifest {
	return New(root).Load()
}
