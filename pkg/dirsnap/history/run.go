package history

import (
	"time"

	"github.com/jamesainslie/dirsnap/pkg/dirsnap/reconcile"
	"github.com/jamesainslie/dirsnap/pkg/dirsnap/syncer"
)

// Operation is the kind of run recorded.
type Operation string

const (
	OpBackup Operation = "backup"
	OpSync   Operation = "sync"
)

// Run is one recorded backup or sync invocation.
type Run struct {
	ID        string        `json:"id" yaml:"id"`
	Operation Operation     `json:"operation" yaml:"operation"`
	Source    string        `json:"source" yaml:"source"`
	Dest      string        `json:"dest" yaml:"dest"`
	StartedAt time.Time     `json:"started_at" yaml:"started_at"`
	Duration  time.Duration `json:"duration" yaml:"duration"`

	CreatedDirs int   `json:"created_dirs" yaml:"created_dirs"`
	Copied      int   `json:"copied" yaml:"copied"`
	Renamed     int   `json:"renamed" yaml:"renamed"`
	Redundant   int   `json:"redundant" yaml:"redundant"`
	Removed     int   `json:"removed" yaml:"removed"`
	BytesCopied int64 `json:"bytes_copied" yaml:"bytes_copied"`

	// Renames lists the collision copies a user may want to review.
	Renames []reconcile.Rename `json:"renames,omitempty" yaml:"renames,omitempty"`

	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Failed reports whether the run ended with an error.
func (r Run) Failed() bool {
	return r.Error != ""
}

// ShortID returns the first eight characters of the ID.
func (r Run) ShortID() string {
	if len(r.ID) > 8 {
		return r.ID[:8]
	}
	return r.ID
}

// FromReport builds a backup run from a reconcile report. The report may be
// partial when err is set.
func FromReport(source, dest string, started time.Time, report *reconcile.Report, err error) Run {
	run := Run{
		Operation: OpBackup,
		Source:    source,
		Dest:      dest,
		StartedAt: started,
		Duration:  time.Since(started),
	}
	addReport(&run, report)
	if err != nil {
		run.Error = err.Error()
	}
	return run
}

// FromSync builds a sync run. Counts from both passes are summed.
func FromSync(started time.Time, res *syncer.Result) Run {
	run := Run{
		Operation: OpSync,
		StartedAt: started,
		Duration:  time.Since(started),
	}
	if res == nil {
		return run
	}
	run.Source = res.DirA
	run.Dest = res.DirB
	run.Removed = len(res.Removed)
	if res.Duration > 0 {
		run.Duration = res.Duration
	}
	addReport(&run, res.Forward)
	addReport(&run, res.Backward)
	if err := res.Err(); err != nil {
		run.Error = err.Error()
	}
	return run
}

func addReport(run *Run, report *reconcile.Report) {
	if report == nil {
		return
	}
	run.CreatedDirs += len(report.CreatedDirs)
	run.Copied += len(report.Copied)
	run.Renamed += len(report.Renamed)
	run.Redundant += len(report.Redundant)
	run.BytesCopied += report.BytesCopied
	run.Renames = append(run.Renames, report.Renamed...)
}
