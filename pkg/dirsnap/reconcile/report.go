package reconcile

import (
	"fmt"

	"github.com/jamesainslie/dirsnap/pkg/dirsnap/types"
)

// Rename records a file copied under a collision-avoiding name.
type Rename struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// Report describes the work done by one reconciliation pass. All paths are
// relative slash paths. A report returned alongside an error describes the
// work done before the failure.
type Report struct {
	// Redundant lists source entries that needed no action.
	Redundant []string `json:"redundant" yaml:"redundant"`

	// CreatedDirs lists directories ensured at the destination.
	CreatedDirs []string `json:"created_dirs" yaml:"created_dirs"`

	// Copied lists destination paths written, renamed copies included.
	Copied []string `json:"copied" yaml:"copied"`

	// Renamed lists copies placed under a renamed destination path.
	Renamed []Rename `json:"renamed" yaml:"renamed"`

	BytesCopied int64 `json:"bytes_copied" yaml:"bytes_copied"`
}

// Changes returns the number of destination writes, directories included.
func (r *Report) Changes() int {
	if r == nil {
		return 0
	}
	return len(r.CreatedDirs) + len(r.Copied)
}

// Total returns the number of source entries processed.
func (r *Report) Total() int {
	if r == nil {
		return 0
	}
	return len(r.Redundant) + len(r.CreatedDirs) + len(r.Copied)
}

// String returns a one-line summary.
func (r *Report) String() string {
	if r == nil {
		return "skipped"
	}
	return fmt.Sprintf("%d redundant, %d dirs, %d copied (%s), %d renamed",
		len(r.Redundant), len(r.CreatedDirs), len(r.Copied),
		types.FormatSize(r.BytesCopied), len(r.Renamed))
}
