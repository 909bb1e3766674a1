// Package watcher reports filesystem changes below a snapshot root so that
// syncs can be triggered when something changes.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/jamesainslie/dirsnap/pkg/dirsnap/logging"
	"github.com/jamesainslie/dirsnap/pkg/dirsnap/types"
)

// Change is a single filesystem event.
type Change struct {
	Path string
	Op   fsnotify.Op
}

// Options configures a Watcher.
type Options struct {
	// IncludeHidden also watches and reports dot-prefixed entries.
	IncludeHidden bool
}

// Watcher watches directory trees recursively.
type Watcher struct {
	opts    Options
	watcher *fsnotify.Watcher
	roots   []string
	paths   map[string]bool
	mu      sync.RWMutex
	closed  bool
}

// New creates a new Watcher.
func New(opts Options) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		opts:    opts,
		watcher: fsw,
		paths:   make(map[string]bool),
	}, nil
}

// Watch starts watching a path recursively.
// Symlinks and the reserved snapshot directory are not watched.
func (w *Watcher) Watch(root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.roots = append(w.roots, absRoot)
	w.mu.Unlock()

	return w.watchTree(absRoot)
}

// watchTree adds watches for absRoot and the directories below it.
func (w *Watcher) watchTree(absRoot string) error {
	info, err := os.Lstat(absRoot)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return nil
	}

	return filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil //nolint:nilerr // Skip entries with errors
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != absRoot && w.skipDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.addWatch(path)
	})
}

// skipDir reports whether a directory with the given base name is ignored.
func (w *Watcher) skipDir(name string) bool {
	if name == types.ReservedDir {
		return true
	}
	return !w.opts.IncludeHidden && types.IsHidden(name)
}

// Ignored reports whether a changed path should not trigger anything: it is
// inside a reserved directory, or hidden while hidden entries are excluded.
// Only the components below the watched root are considered.
func (w *Watcher) Ignored(path string) bool {
	rel := filepath.Base(path)

	w.mu.RLock()
	for _, root := range w.roots {
		if isSubPath(path, root) {
			rel = path[len(root)+1:]
			break
		}
		if path == root {
			rel = ""
			break
		}
	}
	w.mu.RUnlock()

	if rel == "" {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if part == types.ReservedDir {
			return true
		}
		if !w.opts.IncludeHidden && types.IsHidden(part) {
			return true
		}
	}
	return false
}

// Paths returns the watched directories.
func (w *Watcher) Paths() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]string, 0, len(w.paths))
	for p := range w.paths {
		out = append(out, p)
	}
	return out
}

// addWatch adds a single directory to the watch list.
func (w *Watcher) addWatch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.paths[path] {
		return nil
	}

	if err := w.watcher.Add(path); err != nil {
		logging.Get("watcher").Warn("failed to add watch", "path", path, "error", err)
		return err
	}

	w.paths[path] = true
	return nil
}

// Run starts the event loop. It blocks until the context is cancelled or the
// watcher is closed. onChange is called for every change that is not
// ignored.
func (w *Watcher) Run(ctx context.Context, onChange func(Change)) {
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev, onChange)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get("watcher").Error("watcher error", "error", err)
		}
	}
}

// handleEvent keeps watches current and forwards the change.
func (w *Watcher) handleEvent(ev fsnotify.Event, onChange func(Change)) {
	if w.Ignored(ev.Name) {
		return
	}

	switch {
	case ev.Op&fsnotify.Create != 0:
		w.handleCreate(ev.Name)
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.handleRemove(ev.Name)
	}

	if onChange != nil {
		onChange(Change{Path: ev.Name, Op: ev.Op})
	}
}

// handleCreate adds watches for new directories, including any
// subdirectories created with them.
func (w *Watcher) handleCreate(path string) {
	info, err := os.Lstat(path)
	if err != nil {
		return
	}
	if info.Mode()&fs.ModeSymlink != 0 || !info.IsDir() {
		return
	}
	_ = w.watchTree(path)
}

// handleRemove drops the watch on a removed directory and its children.
func (w *Watcher) handleRemove(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for p := range w.paths {
		if p == path || isSubPath(p, path) {
			_ = w.watcher.Remove(p)
			delete(w.paths, p)
		}
	}
}

// Close closes the watcher and releases resources.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true
	w.paths = make(map[string]bool)
	return w.watcher.Close()
}

// isSubPath checks if path is under parent directory.
func isSubPath(path, parent string) bool {
	return len(path) > len(parent) && path[:len(parent)+1] == parent+string(filepath.Separator)
}
