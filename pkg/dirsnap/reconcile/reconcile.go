// Package reconcile brings a destination directory up to date with a source
// directory by comparing their manifests. It is additive: nothing at the
// destination is ever deleted or overwritten in place. When both sides hold
// diverging versions of a file, the source copy is placed next to the
// destination one under a tagged name.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/jamesainslie/dirsnap/pkg/dirsnap/event"
	"github.com/jamesainslie/dirsnap/pkg/dirsnap/logging"
	"github.com/jamesainslie/dirsnap/pkg/dirsnap/types"
	"github.com/spf13/afero"
)

// Tags used for renamed copies. Copies from the first side of a pass carry
// TagSource, copies travelling back carry TagDest.
const (
	TagSource = "src"
	TagDest   = "dest"
)

var (
	// ErrCreateDir is returned when a destination directory cannot be created.
	ErrCreateDir = errors.New("create directory failed")

	// ErrCopyFile is returned when a file cannot be copied.
	ErrCopyFile = errors.New("copy file failed")

	// ErrInvalidRequest is returned for a malformed request.
	ErrInvalidRequest = errors.New("invalid reconcile request")
)

// Request describes one pass from a source directory into a destination.
type Request struct {
	SourceRoot string
	DestRoot   string

	// Source and Dest are the manifests of the two roots. Dest is typically
	// loaded from disk and may be empty.
	Source types.Manifest
	Dest   types.Manifest

	// Tag marks renamed copies, see types.RenamedName.
	Tag string
}

func (r Request) validate() error {
	if r.Tag == "" {
		return fmt.Errorf("%w: empty tag", ErrInvalidRequest)
	}
	if r.SourceRoot == "" || r.DestRoot == "" {
		return fmt.Errorf("%w: empty root", ErrInvalidRequest)
	}
	return nil
}

// Reconciler applies requests to a filesystem.
type Reconciler struct {
	fs   afero.Fs
	sink event.Sink
}

// New creates a Reconciler. A nil sink discards events.
func New(fs afero.Fs, sink event.Sink) *Reconciler {
	if sink == nil {
		sink = event.Discard
	}
	return &Reconciler{fs: fs, sink: sink}
}

// Reconcile walks the source manifest in order and brings the destination up
// to date. The first directory or copy failure stops the pass; the report is
// returned in every case.
func (r *Reconciler) Reconcile(ctx context.Context, req Request) (*Report, error) {
	report := &Report{}
	if err := req.validate(); err != nil {
		return report, err
	}

	logger := logging.Get("reconcile").With("tag", req.Tag)
	logger.Debug("starting pass",
		"source", req.SourceRoot,
		"dest", req.DestRoot,
		"source_entries", len(req.Source),
		"dest_entries", len(req.Dest))

	exact := req.Dest.Set()
	byName := req.Dest.Index()

	for _, e := range req.Source {
		if err := ctx.Err(); err != nil {
			event.Errf(r.sink, "", "interrupted: %v", err)
			return report, err
		}
		if err := r.apply(req, e, exact, byName, report); err != nil {
			logger.Error("pass aborted", "path", e.Name, "error", err)
			return report, err
		}
	}

	logger.Debug("pass complete", "summary", report.String())
	return report, nil
}

// apply handles a single source entry.
func (r *Reconciler) apply(req Request, e types.Entry, exact map[types.Entry]struct{}, byName map[string]types.Entry, report *Report) error {
	if _, ok := exact[e]; ok {
		report.Redundant = append(report.Redundant, e.Name)
		event.Infof(r.sink, e.Name, "%s is already up to date", e.Name)
		return nil
	}

	src := localPath(req.SourceRoot, e.Name)
	dst := localPath(req.DestRoot, e.Name)

	if e.IsDir() {
		if err := r.fs.MkdirAll(dst, 0o755); err != nil {
			event.Errf(r.sink, e.Name, "could not create directory %s: %v", dst, err)
			return fmt.Errorf("%w: %s: %w", ErrCreateDir, dst, err)
		}
		report.CreatedDirs = append(report.CreatedDirs, e.Name)
		event.Okf(r.sink, e.Name, "created directory %s", e.Name)
		return nil
	}

	if existing, ok := byName[e.Name]; ok {
		if existing.ModifiedAt == e.ModifiedAt {
			report.Redundant = append(report.Redundant, e.Name)
			event.Infof(r.sink, e.Name, "%s is already up to date", e.Name)
			return nil
		}

		renamed := types.RenamedName(e.Name, req.Tag)
		n, err := copyFile(r.fs, src, localPath(req.DestRoot, renamed))
		if err != nil {
			event.Errf(r.sink, e.Name, "could not copy %s: %v", src, err)
			return fmt.Errorf("%w: %s: %w", ErrCopyFile, src, err)
		}
		report.Copied = append(report.Copied, renamed)
		report.Renamed = append(report.Renamed, Rename{From: e.Name, To: renamed})
		report.BytesCopied += n
		event.Okf(r.sink, renamed, "copied %s as %s", e.Name, renamed)
		event.Infof(r.sink, renamed, "%s differs at the destination, kept both copies", e.Name)
		return nil
	}

	n, err := copyFile(r.fs, src, dst)
	if err != nil {
		event.Errf(r.sink, e.Name, "could not copy %s: %v", src, err)
		return fmt.Errorf("%w: %s: %w", ErrCopyFile, src, err)
	}
	report.Copied = append(report.Copied, e.Name)
	report.BytesCopied += n
	event.Okf(r.sink, e.Name, "copied %s", e.Name)
	return nil
}

// localPath joins a manifest name onto a root.
func localPath(root, name string) string {
	return filepath.Join(root, filepath.FromSlash(name))
}
