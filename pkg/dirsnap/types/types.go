// Package types provides the core data model for dirsnap: the manifest entry
// describing one filesystem object, the ordered manifest of a directory tree,
// and the naming conventions shared by the builder, the store and the
// reconciler.
package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	// ToolPrefix is the fixed literal that starts every collision-renamed file.
	ToolPrefix = "dirsnap"

	// ReservedDir is the directory, relative to a snapshot root, holding the
	// persisted manifest. It is never part of a manifest itself.
	ReservedDir = ".snapshot"

	// ManifestFile is the manifest file name inside ReservedDir.
	ManifestFile = "manifest.json"

	// HiddenPrefix marks entries skipped unless hidden entries are included.
	HiddenPrefix = "."
)

// EntryKind tells directories and files apart.
type EntryKind string

const (
	// KindDir is a directory entry.
	KindDir EntryKind = "Dir"
	// KindFile is anything that is not a directory.
	KindFile EntryKind = "File"
)

// ErrInvalidKind is returned when decoding an unknown entry kind.
var ErrInvalidKind = errors.New("invalid entry kind")

// UnmarshalJSON rejects kinds other than "Dir" and "File".
func (k *EntryKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch EntryKind(s) {
	case KindDir, KindFile:
		*k = EntryKind(s)
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

// IdentityKind says which platform-specific identity an entry carries.
type IdentityKind uint8

const (
	// IdentityNone means no platform identity was recorded.
	IdentityNone IdentityKind = iota
	// IdentityInode holds a POSIX inode number.
	IdentityInode
	// IdentityFileAttr holds a Windows file-attribute bitmask.
	IdentityFileAttr
)

// Identity is the optional platform identity of an entry. It takes part in
// structural equality but is never consulted on its own.
type Identity struct {
	Kind  IdentityKind
	Value uint64
}

// Inode returns a POSIX inode identity.
func Inode(ino uint64) Identity {
	return Identity{Kind: IdentityInode, Value: ino}
}

// FileAttr returns a Windows file-attribute identity.
func FileAttr(attr uint32) Identity {
	return Identity{Kind: IdentityFileAttr, Value: uint64(attr)}
}

// Entry is a snapshot of one filesystem object. Entries are comparable with
// ==, which is the structural equality used by reconciliation.
type Entry struct {
	// Name is the slash-separated path relative to the manifest root.
	Name string

	// ModifiedAt is the modification time in seconds since the epoch, or 0.
	ModifiedAt uint64

	// Length is the size in bytes (0 for directories).
	Length uint64

	// Kind is KindDir or KindFile.
	Kind EntryKind

	// Identity is the platform identity, if any.
	Identity Identity
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool {
	return e.Kind == KindDir
}

// ModTime returns ModifiedAt as a time.Time.
func (e Entry) ModTime() time.Time {
	return time.Unix(int64(e.ModifiedAt), 0)
}

// HumanSize returns the entry size formatted with binary units.
func (e Entry) HumanSize() string {
	return FormatSize(int64(e.Length))
}

// wireEntry is the persisted form of an Entry.
type wireEntry struct {
	Name       string    `json:"name"`
	ModifiedAt uint64    `json:"modified_at"`
	Length     uint64    `json:"length"`
	Kind       EntryKind `json:"e_type"`
	Inode      *uint64   `json:"inode,omitempty"`
	FileAttr   *uint32   `json:"file_attr,omitempty"`
}

// MarshalJSON writes the platform identity as "inode" or "file_attr", and
// omits both when the entry has none.
func (e Entry) MarshalJSON() ([]byte, error) {
	w := wireEntry{
		Name:       e.Name,
		ModifiedAt: e.ModifiedAt,
		Length:     e.Length,
		Kind:       e.Kind,
	}
	switch e.Identity.Kind {
	case IdentityInode:
		ino := e.Identity.Value
		w.Inode = &ino
	case IdentityFileAttr:
		attr := uint32(e.Identity.Value)
		w.FileAttr = &attr
	}
	return json.Marshal(w)
}

// UnmarshalJSON reads the persisted form written by MarshalJSON.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var w wireEntry
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Kind == "" {
		return fmt.Errorf("%w: missing e_type for %q", ErrInvalidKind, w.Name)
	}

	*e = Entry{
		Name:       w.Name,
		ModifiedAt: w.ModifiedAt,
		Length:     w.Length,
		Kind:       w.Kind,
	}
	switch {
	case w.Inode != nil:
		e.Identity = Inode(*w.Inode)
	case w.FileAttr != nil:
		e.Identity = FileAttr(*w.FileAttr)
	}
	return nil
}

// Manifest is an ordered snapshot of a directory tree. Order is walk order;
// uniqueness of names is expected but not enforced.
type Manifest []Entry

// Contains reports whether an entry structurally equal to e is present.
func (m Manifest) Contains(e Entry) bool {
	for _, other := range m {
		if other == e {
			return true
		}
	}
	return false
}

// Index maps each name to its first entry in manifest order.
func (m Manifest) Index() map[string]Entry {
	idx := make(map[string]Entry, len(m))
	for _, e := range m {
		if _, ok := idx[e.Name]; !ok {
			idx[e.Name] = e
		}
	}
	return idx
}

// Set returns the entries of m as a set for structural lookups.
func (m Manifest) Set() map[Entry]struct{} {
	set := make(map[Entry]struct{}, len(m))
	for _, e := range m {
		set[e] = struct{}{}
	}
	return set
}

// Files returns the file entries in manifest order.
func (m Manifest) Files() Manifest {
	var files Manifest
	for _, e := range m {
		if !e.IsDir() {
			files = append(files, e)
		}
	}
	return files
}

// Dirs returns the directory entries in manifest order.
func (m Manifest) Dirs() Manifest {
	var dirs Manifest
	for _, e := range m {
		if e.IsDir() {
			dirs = append(dirs, e)
		}
	}
	return dirs
}

// TotalSize sums the length of all file entries.
func (m Manifest) TotalSize() int64 {
	var total int64
	for _, e := range m {
		if !e.IsDir() {
			total += int64(e.Length)
		}
	}
	return total
}

// RenamePrefix returns the base-name prefix given to copies renamed on
// behalf of the side identified by tag, e.g. "dirsnap-src-".
func RenamePrefix(tag string) string {
	return ToolPrefix + "-" + tag + "-"
}

// RenamedName returns the collision-avoiding name for name. The renamed copy
// lives in the same directory as the original.
func RenamedName(name, tag string) string {
	return path.Join(path.Dir(name), RenamePrefix(tag)+path.Base(name))
}

// HasRenameMarker reports whether the base name of name carries the rename
// prefix for tag. Only the base name is tested, never the directories.
func HasRenameMarker(name, tag string) bool {
	return strings.HasPrefix(path.Base(name), RenamePrefix(tag))
}

// IsHidden reports whether a base name is hidden by convention.
func IsHidden(base string) bool {
	return strings.HasPrefix(base, HiddenPrefix)
}

// FormatSize converts a size in bytes to a human-readable string using
// binary (IEC) units.
func FormatSize(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}
