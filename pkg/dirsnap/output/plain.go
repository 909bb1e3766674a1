package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"
)

// PlainFormatter writes one tab-separated line per action, with no colors,
// for scripting and piping.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)

	if r.Manifest != nil {
		fmt.Fprintln(tw, "KIND\tSIZE\tMODIFIED\tNAME")
		for _, e := range r.Manifest {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", e.Kind, e.Length, e.ModifiedAt, e.Name)
		}
	}

	if len(r.Passes) > 0 {
		fmt.Fprintln(tw, "ACTION\tPASS\tPATH")
	}
	for _, p := range r.Passes {
		if p.Report == nil {
			continue
		}
		for _, name := range p.Report.CreatedDirs {
			fmt.Fprintf(tw, "mkdir\t%s\t%s\n", p.Label, name)
		}
		for _, name := range p.Report.Copied {
			fmt.Fprintf(tw, "copy\t%s\t%s\n", p.Label, name)
		}
		for _, rn := range p.Report.Renamed {
			fmt.Fprintf(tw, "rename\t%s\t%s -> %s\n", p.Label, rn.From, rn.To)
		}
		for _, name := range p.Report.Redundant {
			fmt.Fprintf(tw, "same\t%s\t%s\n", p.Label, name)
		}
	}
	for _, name := range r.Removed {
		fmt.Fprintf(tw, "remove\t-\t%s\n", name)
	}
	for _, s := range r.Skipped {
		fmt.Fprintf(tw, "skipped\t-\t%s\n", s)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(tw, "error\t-\t%s\n", e)
	}

	return tw.Flush()
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
}

var _ Formatter = (*PlainFormatter)(nil)
