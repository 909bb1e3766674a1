package reconcile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jamesainslie/dirsnap/pkg/dirsnap/event"
	"github.com/jamesainslie/dirsnap/pkg/dirsnap/scanner"
	"github.com/jamesainslie/dirsnap/pkg/dirsnap/types"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	srcRoot = "/src"
	dstRoot = "/dst"
)

var errInjected = errors.New("injected failure")

// failingFs refuses to create files with a given base name.
type failingFs struct {
	afero.Fs
	failOn string
}

func (f failingFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if flag&os.O_CREATE != 0 && filepath.Base(name) == f.failOn {
		return nil, errInjected
	}
	return f.Fs.OpenFile(name, flag, perm)
}

func writeMem(t *testing.T, fs afero.Fs, path, content string, mtime int64) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o640))
	ts := time.Unix(mtime, 0)
	require.NoError(t, fs.Chtimes(path, ts, ts))
}

func file(name string, mtime, length uint64, ino uint64) types.Entry {
	return types.Entry{Name: name, ModifiedAt: mtime, Length: length, Kind: types.KindFile, Identity: types.Inode(ino)}
}

func dir(name string, mtime uint64, ino uint64) types.Entry {
	return types.Entry{Name: name, ModifiedAt: mtime, Kind: types.KindDir, Identity: types.Inode(ino)}
}

func readMem(t *testing.T, fs afero.Fs, path string) string {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	return string(data)
}

func TestReconcileCopiesNewFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeMem(t, fs, "/src/a.txt", "alpha", 100)
	writeMem(t, fs, "/src/docs/b.txt", "bravo", 200)

	var rec event.Recorder
	report, err := New(fs, &rec).Reconcile(context.Background(), Request{
		SourceRoot: srcRoot,
		DestRoot:   dstRoot,
		Source: types.Manifest{
			file("a.txt", 100, 5, 1),
			dir("docs", 150, 2),
			file("docs/b.txt", 200, 5, 3),
		},
		Tag: TagSource,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a.txt", "docs/b.txt"}, report.Copied)
	assert.Equal(t, []string{"docs"}, report.CreatedDirs)
	assert.Empty(t, report.Redundant)
	assert.Empty(t, report.Renamed)
	assert.Equal(t, int64(10), report.BytesCopied)
	assert.Equal(t, 3, report.Changes())

	assert.Equal(t, "alpha", readMem(t, fs, "/dst/a.txt"))
	assert.Equal(t, "bravo", readMem(t, fs, "/dst/docs/b.txt"))

	info, err := fs.Stat("/dst/docs/b.txt")
	require.NoError(t, err)
	assert.Equal(t, time.Unix(200, 0).Unix(), info.ModTime().Unix(), "mtime preserved")
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm(), "permissions preserved")

	assert.Equal(t, 3, rec.Count(event.Ok))
	assert.Zero(t, rec.Count(event.Err))
}

func TestReconcileExactMatchPrecedence(t *testing.T) {
	fs := afero.NewMemMapFs()
	// Nothing exists on disk: an exact match must not touch the filesystem.
	shared := file("notes.txt", 100, 4, 7)
	sharedDir := dir("docs", 50, 8)

	report, err := New(fs, nil).Reconcile(context.Background(), Request{
		SourceRoot: srcRoot,
		DestRoot:   dstRoot,
		Source:     types.Manifest{sharedDir, shared},
		Dest: types.Manifest{
			file("notes.txt", 999, 1, 9),
			shared,
			sharedDir,
		},
		Tag: TagSource,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"docs", "notes.txt"}, report.Redundant)
	assert.Empty(t, report.Copied)
	assert.Empty(t, report.CreatedDirs)
	assert.Empty(t, report.Renamed)

	exists, err := afero.DirExists(fs, "/dst/docs")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestReconcileSameTimestampIsRedundant(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeMem(t, fs, "/src/a.txt", "source", 100)
	writeMem(t, fs, "/dst/a.txt", "dest", 100)

	report, err := New(fs, nil).Reconcile(context.Background(), Request{
		SourceRoot: srcRoot,
		DestRoot:   dstRoot,
		Source:     types.Manifest{file("a.txt", 100, 6, 1)},
		Dest:       types.Manifest{file("a.txt", 100, 4, 2)},
		Tag:        TagSource,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a.txt"}, report.Redundant)
	assert.Empty(t, report.Copied)
	assert.Equal(t, "dest", readMem(t, fs, "/dst/a.txt"))
}

func TestReconcileRenameOnDivergence(t *testing.T) {
	tests := []struct {
		name    string
		entry   string
		tag     string
		renamed string
	}{
		{name: "root file", entry: "notes.txt", tag: TagSource, renamed: "dirsnap-src-notes.txt"},
		{name: "nested file", entry: "docs/notes.txt", tag: TagSource, renamed: "docs/dirsnap-src-notes.txt"},
		{name: "dest tag", entry: "notes.txt", tag: TagDest, renamed: "dirsnap-dest-notes.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			writeMem(t, fs, filepath.Join(srcRoot, tt.entry), "source version", 100)
			writeMem(t, fs, filepath.Join(dstRoot, tt.entry), "dest version", 200)

			var rec event.Recorder
			report, err := New(fs, &rec).Reconcile(context.Background(), Request{
				SourceRoot: srcRoot,
				DestRoot:   dstRoot,
				Source:     types.Manifest{file(tt.entry, 100, 14, 1)},
				Dest:       types.Manifest{file(tt.entry, 200, 12, 2)},
				Tag:        tt.tag,
			})
			require.NoError(t, err)

			assert.Equal(t, []Rename{{From: tt.entry, To: tt.renamed}}, report.Renamed)
			assert.Equal(t, []string{tt.renamed}, report.Copied)
			assert.Equal(t, "source version", readMem(t, fs, filepath.Join(dstRoot, tt.renamed)))
			assert.Equal(t, "dest version", readMem(t, fs, filepath.Join(dstRoot, tt.entry)), "original untouched")
			assert.Equal(t, 1, rec.Count(event.Ok))
			assert.Equal(t, 1, rec.Count(event.Info))
		})
	}
}

func TestReconcileRenameReplacesEarlierCopy(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeMem(t, fs, filepath.Join(srcRoot, "notes.txt"), "newer source", 300)
	writeMem(t, fs, filepath.Join(dstRoot, "notes.txt"), "dest version", 200)
	writeMem(t, fs, filepath.Join(dstRoot, "dirsnap-src-notes.txt"), "stale copy from an earlier run", 100)

	report, err := New(fs, nil).Reconcile(context.Background(), Request{
		SourceRoot: srcRoot,
		DestRoot:   dstRoot,
		Source:     types.Manifest{file("notes.txt", 300, 12, 1)},
		Dest: types.Manifest{
			file("notes.txt", 200, 12, 2),
			file("dirsnap-src-notes.txt", 100, 30, 3),
		},
		Tag: TagSource,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"dirsnap-src-notes.txt"}, report.Copied)
	assert.Equal(t, "newer source", readMem(t, fs, filepath.Join(dstRoot, "dirsnap-src-notes.txt")))

	info, err := fs.Stat(filepath.Join(dstRoot, "dirsnap-src-notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, int64(300), info.ModTime().Unix())
}

func TestReconcileEmptyManifests(t *testing.T) {
	t.Run("empty source performs nothing", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		var rec event.Recorder

		report, err := New(fs, &rec).Reconcile(context.Background(), Request{
			SourceRoot: srcRoot,
			DestRoot:   dstRoot,
			Source:     types.Manifest{},
			Dest:       types.Manifest{file("x", 1, 1, 1)},
			Tag:        TagSource,
		})
		require.NoError(t, err)
		assert.Equal(t, &Report{}, report)
		assert.Empty(t, rec.Events())
	})

	t.Run("empty dest copies everything", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		writeMem(t, fs, "/src/x", "x", 1)
		writeMem(t, fs, "/src/y", "y", 2)

		report, err := New(fs, nil).Reconcile(context.Background(), Request{
			SourceRoot: srcRoot,
			DestRoot:   dstRoot,
			Source:     types.Manifest{file("x", 1, 1, 1), file("y", 2, 1, 2)},
			Dest:       nil,
			Tag:        TagSource,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"x", "y"}, report.Copied)
	})
}

func TestReconcileDirectoryFailureAborts(t *testing.T) {
	base := afero.NewMemMapFs()
	writeMem(t, base, "/src/a.txt", "a", 1)
	writeMem(t, base, "/src/z.txt", "z", 1)
	fs := afero.NewReadOnlyFs(base)

	var rec event.Recorder
	report, err := New(fs, &rec).Reconcile(context.Background(), Request{
		SourceRoot: srcRoot,
		DestRoot:   dstRoot,
		Source: types.Manifest{
			dir("blocked", 1, 1),
			file("z.txt", 1, 1, 2),
		},
		Tag: TagSource,
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCreateDir), "error = %v", err)
	assert.Contains(t, err.Error(), filepath.Join(dstRoot, "blocked"))
	require.NotNil(t, report)
	assert.Empty(t, report.CreatedDirs)
	assert.Empty(t, report.Copied, "no entries processed after the failure")
	assert.Equal(t, 1, rec.Count(event.Err))
}

func TestReconcileCopyFailureKeepsPartialReport(t *testing.T) {
	base := afero.NewMemMapFs()
	writeMem(t, base, "/src/a.txt", "a", 1)
	writeMem(t, base, "/src/b.txt", "b", 1)
	writeMem(t, base, "/src/c.txt", "c", 1)
	fs := failingFs{Fs: base, failOn: "b.txt"}

	report, err := New(fs, nil).Reconcile(context.Background(), Request{
		SourceRoot: srcRoot,
		DestRoot:   dstRoot,
		Source: types.Manifest{
			file("a.txt", 1, 1, 1),
			file("b.txt", 1, 1, 2),
			file("c.txt", 1, 1, 3),
		},
		Tag: TagSource,
	})

	require.ErrorIs(t, err, ErrCopyFile)
	require.ErrorIs(t, err, errInjected)
	assert.Contains(t, err.Error(), filepath.Join(srcRoot, "b.txt"))
	assert.Equal(t, []string{"a.txt"}, report.Copied)

	exists, _ := afero.Exists(base, "/dst/c.txt")
	assert.False(t, exists)
}

func TestReconcileMissingSourceFile(t *testing.T) {
	fs := afero.NewMemMapFs()

	_, err := New(fs, nil).Reconcile(context.Background(), Request{
		SourceRoot: srcRoot,
		DestRoot:   dstRoot,
		Source:     types.Manifest{file("gone.txt", 1, 1, 1)},
		Tag:        TagSource,
	})
	assert.ErrorIs(t, err, ErrCopyFile)
}

func TestReconcileInvalidRequest(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{name: "empty tag", req: Request{SourceRoot: srcRoot, DestRoot: dstRoot}},
		{name: "empty source root", req: Request{DestRoot: dstRoot, Tag: TagSource}},
		{name: "empty dest root", req: Request{SourceRoot: srcRoot, Tag: TagSource}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := New(afero.NewMemMapFs(), nil).Reconcile(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
			assert.NotNil(t, report)
		})
	}
}

func TestReconcileCancelled(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeMem(t, fs, "/src/a.txt", "a", 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := New(fs, nil).Reconcile(ctx, Request{
		SourceRoot: srcRoot,
		DestRoot:   dstRoot,
		Source:     types.Manifest{file("a.txt", 1, 1, 1)},
		Tag:        TagSource,
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report.Copied)
}

func TestReconcileDeterministic(t *testing.T) {
	run := func() *Report {
		fs := afero.NewMemMapFs()
		writeMem(t, fs, "/src/a.txt", "a", 10)
		writeMem(t, fs, "/src/d/b.txt", "b", 20)
		writeMem(t, fs, "/src/d/c.txt", "c", 30)
		writeMem(t, fs, "/dst/d/c.txt", "old", 5)

		report, err := New(fs, nil).Reconcile(context.Background(), Request{
			SourceRoot: srcRoot,
			DestRoot:   dstRoot,
			Source: types.Manifest{
				file("a.txt", 10, 1, 1),
				dir("d", 1, 2),
				file("d/b.txt", 20, 1, 3),
				file("d/c.txt", 30, 1, 4),
			},
			Dest: types.Manifest{dir("d", 1, 5), file("d/c.txt", 5, 3, 6)},
			Tag:  TagSource,
		})
		require.NoError(t, err)
		return report
	}

	first := run()
	assert.Equal(t, first, run())
	assert.Equal(t, []string{"a.txt", "d/b.txt", "d/dirsnap-src-c.txt"}, first.Copied)
}

func TestReconcileIdempotentOnDisk(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	mtime := time.Unix(1_650_000_000, 0)
	for _, rel := range []string{"a.txt", "docs/b.txt", "docs/deep/c.txt"} {
		path := filepath.Join(src, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(rel), 0o644))
		require.NoError(t, os.Chtimes(path, mtime, mtime))
	}

	ctx := context.Background()
	r := New(afero.NewOsFs(), nil)

	pass := func() *Report {
		srcManifest, err := scanner.Build(ctx, src, false)
		require.NoError(t, err)
		dstManifest, err := scanner.Build(ctx, dst, false)
		require.NoError(t, err)

		report, err := r.Reconcile(ctx, Request{
			SourceRoot: src,
			DestRoot:   dst,
			Source:     srcManifest,
			Dest:       dstManifest,
			Tag:        TagSource,
		})
		require.NoError(t, err)
		return report
	}

	first := pass()
	assert.Len(t, first.Copied, 3)

	second := pass()
	assert.Empty(t, second.Copied)
	assert.Empty(t, second.Renamed)
	assert.ElementsMatch(t, []string{"a.txt", "docs/b.txt", "docs/deep/c.txt"}, second.Redundant)
}

func TestReportString(t *testing.T) {
	r := &Report{
		Redundant:   []string{"a"},
		Copied:      []string{"b", "dirsnap-src-c"},
		Renamed:     []Rename{{From: "c", To: "dirsnap-src-c"}},
		BytesCopied: 2048,
	}
	assert.Equal(t, "1 redundant, 0 dirs, 2 copied (2.0 KiB), 1 renamed", r.String())
	assert.Equal(t, 3, r.Total())

	var nilReport *Report
	assert.Zero(t, nilReport.Changes())
	assert.Zero(t, nilReport.Total())
	assert.Equal(t, "skipped", nilReport.String())
}
