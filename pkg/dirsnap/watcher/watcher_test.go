package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	w, err := New(Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer w.Close()

	if w.watcher == nil {
		t.Error("New() did not create fsnotify watcher")
	}
}

func TestWatchSkipsReservedAndHidden(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"sub/deeper", ".snapshot", ".hidden/inner"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, d), 0o755))
	}

	tests := []struct {
		name string
		opts Options
		want []string
	}{
		{
			name: "hidden excluded",
			opts: Options{},
			want: []string{root, filepath.Join(root, "sub"), filepath.Join(root, "sub", "deeper")},
		},
		{
			name: "hidden included",
			opts: Options{IncludeHidden: true},
			want: []string{
				root,
				filepath.Join(root, ".hidden"),
				filepath.Join(root, ".hidden", "inner"),
				filepath.Join(root, "sub"),
				filepath.Join(root, "sub", "deeper"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := New(tt.opts)
			require.NoError(t, err)
			defer w.Close()

			require.NoError(t, w.Watch(root))
			got := w.Paths()
			sort.Strings(got)
			sort.Strings(tt.want)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWatchFileIsNoop(t *testing.T) {
	file := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	w, err := New(Options{})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Watch(file))
	assert.Empty(t, w.Paths())
}

func TestIgnored(t *testing.T) {
	root := filepath.Join(t.TempDir(), ".parent", "root")
	require.NoError(t, os.MkdirAll(root, 0o755))

	w, err := New(Options{})
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch(root))

	tests := []struct {
		path string
		want bool
	}{
		{path: root, want: false},
		{path: filepath.Join(root, "a.txt"), want: false},
		{path: filepath.Join(root, "docs", "b.txt"), want: false},
		{path: filepath.Join(root, ".snapshot", "manifest.json"), want: true},
		{path: filepath.Join(root, ".snapshot"), want: true},
		{path: filepath.Join(root, ".git", "HEAD"), want: true},
		{path: filepath.Join(root, "docs", ".swp"), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, w.Ignored(tt.path))
		})
	}
}

func TestRunReportsChanges(t *testing.T) {
	root := t.TempDir()

	w, err := New(Options{})
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch(root))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var changes []Change
	go w.Run(ctx, func(c Change) {
		mu.Lock()
		changes = append(changes, c)
		mu.Unlock()
	})

	require.NoError(t, os.MkdirAll(filepath.Join(root, ".snapshot"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(root, "newdir"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0o644))

	seen := func(path string) bool {
		mu.Lock()
		defer mu.Unlock()
		for _, c := range changes {
			if c.Path == path {
				return true
			}
		}
		return false
	}

	assert.Eventually(t, func() bool { return seen(filepath.Join(root, "a.txt")) }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		for _, p := range w.Paths() {
			if p == filepath.Join(root, "newdir") {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond, "new directory is watched")
	assert.False(t, seen(filepath.Join(root, ".snapshot")), "reserved directory changes are ignored")
}

func TestHandleRemoveDropsChildWatches(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a", "b"), 0o755))

	w, err := New(Options{})
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch(root))
	require.Len(t, w.Paths(), 3)

	w.handleRemove(filepath.Join(root, "a"))
	assert.Equal(t, []string{root}, w.Paths())
}

func TestCloseTwice(t *testing.T) {
	w, err := New(Options{})
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}

func TestIsSubPath(t *testing.T) {
	sep := string(filepath.Separator)
	assert.True(t, isSubPath("a"+sep+"b", "a"))
	assert.False(t, isSubPath("ab", "a"))
	assert.False(t, isSubPath("a", "a"))
}

func TestDebounceCollapsesBursts(t *testing.T) {
	events := make(chan Change, 16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var batches [][]Change
	done := make(chan struct{})
	go func() {
		Debounce(ctx, events, 50*time.Millisecond, func(b []Change) {
			mu.Lock()
			batches = append(batches, b)
			mu.Unlock()
		})
		close(done)
	}()

	for i := 0; i < 5; i++ {
		events <- Change{Path: "x", Op: fsnotify.Write}
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(batches) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Len(t, batches[0], 5)
	mu.Unlock()

	cancel()
	<-done
}

func TestDebounceFlushesOnClose(t *testing.T) {
	events := make(chan Change, 4)
	events <- Change{Path: "a", Op: fsnotify.Create}
	close(events)

	var got []Change
	Debounce(context.Background(), events, time.Hour, func(b []Change) { got = b })
	assert.Len(t, got, 1)
}

func TestDrain(t *testing.T) {
	events := make(chan Change, 8)
	for i := 0; i < 3; i++ {
		events <- Change{Path: "x"}
	}

	n := Drain(context.Background(), events, 20*time.Millisecond)
	assert.Equal(t, 3, n)
	assert.Empty(t, events)
}
