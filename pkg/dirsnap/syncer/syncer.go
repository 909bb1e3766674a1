// Package syncer runs a two-way sync between two directories as two
// reconciliation passes followed by cleanup of transient renamed copies.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/jamesainslie/dirsnap/pkg/dirsnap/event"
	"github.com/jamesainslie/dirsnap/pkg/dirsnap/logging"
	"github.com/jamesainslie/dirsnap/pkg/dirsnap/manifest"
	"github.com/jamesainslie/dirsnap/pkg/dirsnap/reconcile"
	"github.com/jamesainslie/dirsnap/pkg/dirsnap/scanner"
	"github.com/jamesainslie/dirsnap/pkg/dirsnap/types"
	"github.com/spf13/afero"
)

// ErrCleanup is returned when one or more transient copies could not be
// removed after a sync.
var ErrCleanup = errors.New("cleanup failed")

// Options configures manifest snapshots taken during a sync.
type Options struct {
	IncludeHidden bool
	Workers       int
}

// Step names a phase of a sync.
type Step string

const (
	StepInitialize Step = "initialize"
	StepForward    Step = "forward"
	StepRefresh    Step = "refresh"
	StepBackward   Step = "backward"
	StepRescan     Step = "rescan"
	StepCleanup    Step = "cleanup"
)

// StepError ties an error to the step that produced it.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Result describes a completed or partial sync.
type Result struct {
	DirA string
	DirB string

	// Forward is the A to B pass, Backward the B to A pass. Backward is nil
	// when the forward pass failed.
	Forward  *reconcile.Report
	Backward *reconcile.Report

	// Removed lists transient copies deleted from A.
	Removed []string

	Errors   []*StepError
	Duration time.Duration
}

// Err joins all step errors, or returns nil.
func (r *Result) Err() error {
	errs := make([]error, 0, len(r.Errors))
	for _, e := range r.Errors {
		errs = append(errs, e)
	}
	return errors.Join(errs...)
}

// Syncer orchestrates two-way syncs.
type Syncer struct {
	fs   afero.Fs
	sink event.Sink
	opts Options
	rec  *reconcile.Reconciler
}

// New creates a Syncer. Manifests are always built from the local disk;
// copies and deletions go through fs.
func New(fs afero.Fs, sink event.Sink, opts Options) *Syncer {
	if sink == nil {
		sink = event.Discard
	}
	return &Syncer{
		fs:   fs,
		sink: sink,
		opts: opts,
		rec:  reconcile.New(fs, sink),
	}
}

// Sync brings dirA and dirB to the union of their contents. Files present on
// both sides with different timestamps end up in B as renamed copies; the
// copies that travel back to A are removed from A again.
func (s *Syncer) Sync(ctx context.Context, dirA, dirB string) (*Result, error) {
	start := time.Now()
	logger := logging.Get("syncer")
	res := &Result{DirA: dirA, DirB: dirB}

	fail := func(step Step, err error) {
		event.Errf(s.sink, "", "%s failed: %v", step, err)
		logger.Error("sync step failed", "step", step, "error", err)
		res.Errors = append(res.Errors, &StepError{Step: step, Err: err})
	}
	done := func() (*Result, error) {
		res.Duration = time.Since(start)
		return res, res.Err()
	}

	storeA := manifest.New(dirA, manifest.WithWorkers(s.opts.Workers))
	storeB := manifest.New(dirB, manifest.WithWorkers(s.opts.Workers))

	event.Infof(s.sink, "", "snapshotting %s and %s", dirA, dirB)
	manifestA, err := storeA.Initialize(ctx, s.opts.IncludeHidden)
	if err != nil {
		fail(StepInitialize, err)
		manifestA = storeA.Load()
	}
	manifestB, err := storeB.Initialize(ctx, s.opts.IncludeHidden)
	if err != nil {
		fail(StepInitialize, err)
		manifestB = storeB.Load()
	}

	event.Infof(s.sink, "", "syncing %s into %s", dirA, dirB)
	res.Forward, err = s.rec.Reconcile(ctx, reconcile.Request{
		SourceRoot: dirA,
		DestRoot:   dirB,
		Source:     manifestA,
		Dest:       manifestB,
		Tag:        reconcile.TagSource,
	})
	if err != nil {
		fail(StepForward, err)
		return done()
	}

	manifestB, err = storeB.Initialize(ctx, s.opts.IncludeHidden)
	if err != nil {
		fail(StepRefresh, err)
		manifestB = storeB.Load()
	}

	event.Infof(s.sink, "", "syncing %s into %s", dirB, dirA)
	res.Backward, err = s.rec.Reconcile(ctx, reconcile.Request{
		SourceRoot: dirB,
		DestRoot:   dirA,
		Source:     manifestB,
		Dest:       manifestA,
		Tag:        reconcile.TagDest,
	})
	if err != nil {
		fail(StepBackward, err)
	}

	rescanned, err := scanner.New(scanner.Options{
		Root:          dirA,
		IncludeHidden: s.opts.IncludeHidden,
		Workers:       s.opts.Workers,
	}).Scan(ctx)
	if err != nil {
		fail(StepRescan, err)
		return done()
	}

	if err := s.cleanup(rescanned.Manifest, dirA, res); err != nil {
		fail(StepCleanup, err)
	}

	logger.Info("sync complete",
		"a", dirA,
		"b", dirB,
		"removed", len(res.Removed),
		"errors", len(res.Errors))
	return done()
}

// cleanup removes from A the transient copies of this run: files the
// backward pass copied into A that carry the forward pass's rename marker
// and are still present in the rescanned manifest m. Marker-named files that
// were already in A are left alone. Every candidate is attempted; failures
// are reported together.
func (s *Syncer) cleanup(m types.Manifest, dirA string, res *Result) error {
	if res.Backward == nil {
		return nil
	}
	present := m.Files().Index()

	failed := 0
	for _, name := range res.Backward.Copied {
		if !types.HasRenameMarker(name, reconcile.TagSource) {
			continue
		}
		e, ok := present[name]
		if !ok {
			continue
		}
		path := filepath.Join(dirA, filepath.FromSlash(e.Name))
		if err := s.fs.Remove(path); err != nil {
			failed++
			event.Errf(s.sink, e.Name, "could not remove %s: %v", path, err)
			continue
		}
		res.Removed = append(res.Removed, e.Name)
		event.Okf(s.sink, e.Name, "removed transient copy %s", e.Name)
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d file(s) could not be removed", ErrCleanup, failed)
	}
	return nil
}
