package output

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jamesainslie/dirsnap/pkg/dirsnap/reconcile"
	"github.com/jamesainslie/dirsnap/pkg/dirsnap/types"
)

// PrettyFormatter formats output with colors and boxes using lipgloss.
type PrettyFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Result) error {
	w.WriteString(f.formatHeader(r))
	w.WriteString("\n")

	for _, p := range r.Passes {
		w.WriteString(f.formatPass(p))
	}
	if r.Manifest != nil {
		w.WriteString(f.formatManifest(r.Manifest))
	}
	if len(r.Removed) > 0 {
		w.WriteString(TitleStyle.Render("Removed transient copies"))
		w.WriteString("\n")
		for _, name := range r.Removed {
			w.WriteString("  " + MutedStyle.Render(name) + "\n")
		}
	}

	if renamed := r.Renamed(); len(renamed) > 0 {
		w.WriteString(f.formatRenamed(renamed))
		w.WriteString("\n")
	}
	if len(r.Skipped) > 0 {
		w.WriteString(f.formatSkipped(r.Skipped))
		w.WriteString("\n")
	}
	if len(r.Errors) > 0 {
		w.WriteString(f.formatErrors(r))
		w.WriteString("\n")
	}

	w.WriteString(f.formatFooter(r))
	w.WriteString("\n")
	return nil
}

// formatHeader builds the header box with the operation and its roots.
func (f *PrettyFormatter) formatHeader(r *Result) string {
	lines := []string{TitleStyle.Render(r.Operation)}

	if r.Source != "" {
		label := "Source:"
		if r.Dest == "" {
			label = "Root:"
		}
		lines = append(lines, fmt.Sprintf("%s %s", LabelStyle.Render(label), ValueStyle.Render(r.Source)))
	}
	if r.Dest != "" {
		lines = append(lines, fmt.Sprintf("%s %s", LabelStyle.Render("Dest:"), ValueStyle.Render(r.Dest)))
	}
	if r.Interrupted {
		lines = append(lines, WarningStyle.Bold(true).Render("Interrupted, the destination holds a partial copy"))
	}

	return HeaderBox.Render(strings.Join(lines, "\n"))
}

// formatPass summarizes one reconciliation pass and lists what it wrote.
func (f *PrettyFormatter) formatPass(p Pass) string {
	var sb strings.Builder

	sb.WriteString(TitleStyle.Render(p.Label))
	if p.Source != "" && p.Dest != "" {
		sb.WriteString(MutedStyle.Render(fmt.Sprintf("  %s -> %s", p.Source, p.Dest)))
	}
	sb.WriteString("\n")

	if p.Report == nil {
		sb.WriteString(MutedStyle.Render("  skipped") + "\n\n")
		return sb.String()
	}

	rep := p.Report
	if rep.Total() == 0 {
		sb.WriteString(MutedStyle.Render("  Nothing to do") + "\n\n")
		return sb.String()
	}

	for _, name := range rep.CreatedDirs {
		sb.WriteString(fmt.Sprintf("  %s %s\n", SuccessStyle.Render("+"), PathStyle.Render(name+"/")))
	}
	for _, name := range rep.Copied {
		sb.WriteString(fmt.Sprintf("  %s %s\n", SuccessStyle.Render("+"), PathStyle.Render(name)))
	}
	sb.WriteString(fmt.Sprintf("  %s %s  %s %s  %s %s\n",
		LabelStyle.Render("Copied:"), ValueStyle.Render(fmt.Sprintf("%d", len(rep.Copied))),
		LabelStyle.Render("Dirs:"), ValueStyle.Render(fmt.Sprintf("%d", len(rep.CreatedDirs))),
		LabelStyle.Render("Up to date:"), MutedStyle.Render(fmt.Sprintf("%d", len(rep.Redundant)))))
	sb.WriteString("\n")
	return sb.String()
}

// formatManifest renders a snapshot as a table.
func (f *PrettyFormatter) formatManifest(m types.Manifest) string {
	if len(m) == 0 {
		return MutedStyle.Render("  Empty snapshot") + "\n"
	}

	sizeWidth := 8
	for _, e := range m {
		if n := len(e.HumanSize()); n > sizeWidth {
			sizeWidth = n
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("  %s  %s  %s\n",
		TableHeaderStyle.Render(padLeft("SIZE", sizeWidth)),
		TableHeaderStyle.Render(padRight("MODIFIED", 16)),
		TableHeaderStyle.Render("NAME")))

	for _, e := range m {
		name := PathStyle.Render(e.Name)
		if e.IsDir() {
			name = TitleStyle.Render(e.Name + "/")
		}
		sb.WriteString(fmt.Sprintf("  %s  %s  %s\n",
			SizeStyle.Render(padLeft(e.HumanSize(), sizeWidth)),
			MutedStyle.Render(padRight(e.ModTime().Local().Format("2006-01-02 15:04"), 16)),
			name))
	}
	return sb.String()
}

// formatRenamed lists renamed copies the user has to review.
func (f *PrettyFormatter) formatRenamed(renamed []reconcile.Rename) string {
	lines := []string{
		WarningStyle.Bold(true).Render("Conflicting versions were kept side by side."),
		WarningStyle.Render("Review and rename these files:"),
	}
	for _, rn := range renamed {
		lines = append(lines, fmt.Sprintf("  %s %s %s",
			PathStyle.Render(rn.From), MutedStyle.Render("->"), WarningStyle.Render(rn.To)))
	}
	return WarningBox.Render(strings.Join(lines, "\n"))
}

// formatSkipped lists entries the snapshot could not read.
func (f *PrettyFormatter) formatSkipped(skipped []string) string {
	var sb strings.Builder
	sb.WriteString(WarningStyle.Bold(true).Render("Skipped (unreadable):"))
	sb.WriteString("\n")
	for _, s := range skipped {
		sb.WriteString(WarningStyle.Render("  " + s))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (f *PrettyFormatter) formatErrors(r *Result) string {
	lines := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		lines = append(lines, ErrorStyle.Render(e))
	}
	return ErrorBox.Render(strings.Join(lines, "\n"))
}

// formatFooter builds the footer box with totals.
func (f *PrettyFormatter) formatFooter(r *Result) string {
	var parts []string

	if len(r.Passes) > 0 {
		parts = append(parts,
			fmt.Sprintf("%s %s", LabelStyle.Render("Copied:"), ValueStyle.Render(fmt.Sprintf("%d", r.Copied()))),
			fmt.Sprintf("%s %s", LabelStyle.Render("Total:"), SizeStyle.Render(types.FormatSize(r.BytesCopied()))))
	}
	if r.Manifest != nil {
		parts = append(parts,
			fmt.Sprintf("%s %s", LabelStyle.Render("Files:"), ValueStyle.Render(fmt.Sprintf("%d", len(r.Manifest.Files())))),
			fmt.Sprintf("%s %s", LabelStyle.Render("Dirs:"), ValueStyle.Render(fmt.Sprintf("%d", len(r.Manifest.Dirs())))),
			fmt.Sprintf("%s %s", LabelStyle.Render("Size:"), SizeStyle.Render(types.FormatSize(r.Manifest.TotalSize()))))
	}
	parts = append(parts, fmt.Sprintf("%s %s", LabelStyle.Render("Took:"), ValueStyle.Render(formatDuration(r.Duration))))
	parts = append(parts, MutedStyle.Render("Use -o plain for unformatted output"))

	return FooterBox.Render(strings.Join(parts, "  "))
}

// padLeft pads a string with spaces on the left to the desired width.
func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	sec := d.Seconds()
	if sec < 1 {
		return fmt.Sprintf("%.0fms", sec*1000)
	}
	if sec < 60 {
		return fmt.Sprintf("%.1fs", sec)
	}
	minutes := int(sec) / 60
	seconds := int(sec) % 60
	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

var _ Formatter = (*PrettyFormatter)(nil)
