package output

import (
	"github.com/jamesainslie/dirsnap/pkg/dirsnap/reconcile"
	"github.com/jamesainslie/dirsnap/pkg/dirsnap/types"
)

// document is the structure shared by the json and yaml formatters.
type document struct {
	Operation string         `json:"operation" yaml:"operation"`
	Source    string         `json:"source,omitempty" yaml:"source,omitempty"`
	Dest      string         `json:"dest,omitempty" yaml:"dest,omitempty"`
	Passes    []passDoc      `json:"passes,omitempty" yaml:"passes,omitempty"`
	Removed   []string       `json:"removed,omitempty" yaml:"removed,omitempty"`
	Entries   []entryDoc     `json:"entries,omitempty" yaml:"entries,omitempty"`
	Skipped   []string       `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Stats     statsDoc       `json:"stats" yaml:"stats"`
	Errors    []string       `json:"errors,omitempty" yaml:"errors,omitempty"`
	Renamed   []renameDoc    `json:"renamed,omitempty" yaml:"renamed,omitempty"`
}

type passDoc struct {
	Label       string      `json:"label" yaml:"label"`
	Source      string      `json:"source" yaml:"source"`
	Dest        string      `json:"dest" yaml:"dest"`
	Skipped     bool        `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Redundant   []string    `json:"redundant" yaml:"redundant"`
	CreatedDirs []string    `json:"created_dirs" yaml:"created_dirs"`
	Copied      []string    `json:"copied" yaml:"copied"`
	Renamed     []renameDoc `json:"renamed" yaml:"renamed"`
	BytesCopied int64       `json:"bytes_copied" yaml:"bytes_copied"`
}

type renameDoc struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

type entryDoc struct {
	Name       string `json:"name" yaml:"name"`
	Kind       string `json:"kind" yaml:"kind"`
	Length     uint64 `json:"length" yaml:"length"`
	SizeHuman  string `json:"size_human" yaml:"size_human"`
	ModifiedAt uint64 `json:"modified_at" yaml:"modified_at"`
}

type statsDoc struct {
	Copied      int    `json:"copied" yaml:"copied"`
	BytesCopied int64  `json:"bytes_copied" yaml:"bytes_copied"`
	Files       int    `json:"files,omitempty" yaml:"files,omitempty"`
	Dirs        int    `json:"dirs,omitempty" yaml:"dirs,omitempty"`
	TotalSize   int64  `json:"total_size,omitempty" yaml:"total_size,omitempty"`
	Duration    string `json:"duration,omitempty" yaml:"duration,omitempty"`
	Interrupted bool   `json:"interrupted" yaml:"interrupted"`
}

// buildDocument converts a Result to its serializable form. Slices inside
// a pass are never nil so consumers always see arrays.
func buildDocument(r *Result) document {
	doc := document{
		Operation: r.Operation,
		Source:    r.Source,
		Dest:      r.Dest,
		Removed:   r.Removed,
		Skipped:   r.Skipped,
		Errors:    r.Errors,
		Renamed:   renameDocs(r.Renamed()),
		Stats: statsDoc{
			Copied:      r.Copied(),
			BytesCopied: r.BytesCopied(),
			Interrupted: r.Interrupted,
		},
	}
	if r.Duration > 0 {
		doc.Stats.Duration = r.Duration.String()
	}

	for _, p := range r.Passes {
		pd := passDoc{
			Label:       p.Label,
			Source:      p.Source,
			Dest:        p.Dest,
			Redundant:   []string{},
			CreatedDirs: []string{},
			Copied:      []string{},
			Renamed:     []renameDoc{},
		}
		if p.Report == nil {
			pd.Skipped = true
		} else {
			pd.Redundant = append(pd.Redundant, p.Report.Redundant...)
			pd.CreatedDirs = append(pd.CreatedDirs, p.Report.CreatedDirs...)
			pd.Copied = append(pd.Copied, p.Report.Copied...)
			pd.Renamed = append(pd.Renamed, renameDocs(p.Report.Renamed)...)
			pd.BytesCopied = p.Report.BytesCopied
		}
		doc.Passes = append(doc.Passes, pd)
	}

	if r.Manifest != nil {
		doc.Entries = entryDocs(r.Manifest)
		doc.Stats.Files = len(r.Manifest.Files())
		doc.Stats.Dirs = len(r.Manifest.Dirs())
		doc.Stats.TotalSize = r.Manifest.TotalSize()
	}
	return doc
}

func renameDocs(in []reconcile.Rename) []renameDoc {
	out := make([]renameDoc, 0, len(in))
	for _, rn := range in {
		out = append(out, renameDoc{From: rn.From, To: rn.To})
	}
	return out
}

func entryDocs(m types.Manifest) []entryDoc {
	out := make([]entryDoc, 0, len(m))
	for _, e := range m {
		out = append(out, entryDoc{
			Name:       e.Name,
			Kind:       string(e.Kind),
			Length:     e.Length,
			SizeHuman:  e.HumanSize(),
			ModifiedAt: e.ModifiedAt,
		})
	}
	return out
}
