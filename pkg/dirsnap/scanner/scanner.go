package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/jamesainslie/dirsnap/pkg/dirsnap/logging"
	"github.com/jamesainslie/dirsnap/pkg/dirsnap/types"
)

// ErrInvalidRoot is returned when the scan root is missing or not a directory.
var ErrInvalidRoot = errors.New("invalid scan root")

// ScanError pairs a path with the error that made the scanner skip it.
type ScanError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Result is the outcome of a scan.
type Result struct {
	// Manifest is sorted by name, so every directory precedes its contents.
	Manifest types.Manifest

	DirsScanned  int64
	FilesScanned int64
	TotalSize    int64
	Elapsed      time.Duration

	// Errors lists entries that could not be read and were skipped.
	Errors []ScanError
}

// Scanner walks one directory tree.
type Scanner struct {
	opts Options
	root string

	dirsScanned  atomic.Int64
	filesScanned atomic.Int64
	bytesScanned atomic.Int64

	mu      sync.Mutex
	entries types.Manifest
	errors  []ScanError
}

// New creates a Scanner, filling in defaults for unset options.
func New(opts Options) *Scanner {
	opts.applyDefaults()
	return &Scanner{opts: opts}
}

// Build is a shorthand that scans root and returns only the manifest.
func Build(ctx context.Context, root string, includeHidden bool) (types.Manifest, error) {
	res, err := New(Options{Root: root, IncludeHidden: includeHidden}).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return res.Manifest, nil
}

// Scan walks the tree and returns the manifest. It only fails when the root
// is unusable or ctx is cancelled.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	start := time.Now()
	logger := logging.Get("scanner")

	root, err := validateRoot(s.opts.Root)
	if err != nil {
		return nil, err
	}
	s.root = root

	conf := fastwalk.Config{
		Follow:     false,
		NumWorkers: s.opts.Workers,
	}
	if err := fastwalk.Walk(&conf, root, s.walkCallback(ctx)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	sort.Slice(s.entries, func(i, j int) bool {
		return s.entries[i].Name < s.entries[j].Name
	})
	sort.Slice(s.errors, func(i, j int) bool {
		return s.errors[i].Path < s.errors[j].Path
	})

	res := &Result{
		Manifest:     s.entries,
		DirsScanned:  s.dirsScanned.Load(),
		FilesScanned: s.filesScanned.Load(),
		TotalSize:    s.bytesScanned.Load(),
		Elapsed:      time.Since(start),
		Errors:       s.errors,
	}
	if res.Manifest == nil {
		res.Manifest = types.Manifest{}
	}

	logger.Debug("scan complete",
		"root", root,
		"entries", len(res.Manifest),
		"skipped", len(res.Errors),
		"elapsed", res.Elapsed)
	return res, nil
}

// walkCallback returns the fastwalk callback. It may run on several
// goroutines at once.
func (s *Scanner) walkCallback(ctx context.Context) fs.WalkDirFunc {
	return func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err != nil {
			s.addError(path, err)
			return nil
		}
		if path == s.root {
			return nil
		}

		name := d.Name()
		if d.IsDir() && name == types.ReservedDir {
			return fastwalk.SkipDir
		}
		if !s.opts.IncludeHidden && types.IsHidden(name) {
			if d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			s.addError(path, err)
			return nil
		}

		// Symlinks are recorded with the metadata of their target but never
		// descended, which also keeps link cycles out of the walk.
		var info fs.FileInfo
		if d.Type()&fs.ModeSymlink != 0 {
			info, err = os.Stat(path)
		} else {
			info, err = d.Info()
		}
		if err != nil {
			s.addError(path, err)
			return nil
		}

		s.addEntry(entryFromInfo(filepath.ToSlash(rel), info))
		return nil
	}
}

// entryFromInfo builds a manifest entry for a relative slash path.
func entryFromInfo(rel string, info fs.FileInfo) types.Entry {
	e := types.Entry{
		Name:     rel,
		Kind:     types.KindFile,
		Identity: identityOf(info),
	}
	if mtime := info.ModTime().Unix(); mtime > 0 {
		e.ModifiedAt = uint64(mtime)
	}
	if info.IsDir() {
		e.Kind = types.KindDir
	} else if size := info.Size(); size > 0 {
		e.Length = uint64(size)
	}
	return e
}

func (s *Scanner) addEntry(e types.Entry) {
	if e.IsDir() {
		s.dirsScanned.Add(1)
	} else {
		s.filesScanned.Add(1)
		s.bytesScanned.Add(int64(e.Length))
	}

	s.mu.Lock()
	s.entries = append(s.entries, e)
	s.mu.Unlock()
}

func (s *Scanner) addError(path string, err error) {
	logging.Get("scanner").Warn("skipping unreadable entry", "path", path, "error", err)

	s.mu.Lock()
	s.errors = append(s.errors, ScanError{Path: path, Error: err.Error()})
	s.mu.Unlock()
}

// validateRoot resolves the root to an absolute path and checks it is a
// directory.
func validateRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrInvalidRoot, root, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrInvalidRoot, root, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrInvalidRoot, root)
	}
	return abs, nil
}
