package history_test

import (
	"errors"
	"testing"
	"time"

	"github.com/jamesainslie/dirsnap/pkg/dirsnap/history"
	"github.com/jamesainslie/dirsnap/pkg/dirsnap/reconcile"
	"github.com/jamesainslie/dirsnap/pkg/dirsnap/syncer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	s, err := history.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreSchema(t *testing.T) {
	s := openStore(t)

	schema := s.GetSchema()
	require.NotNil(t, schema)
	assert.Equal(t, history.CurrentSchemaVersion, schema.Version)
}

func TestRecordAssignsIDAndTime(t *testing.T) {
	s := openStore(t)

	run, err := s.Record(history.Run{Operation: history.OpBackup, Source: "/a", Dest: "/b"})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	assert.Len(t, run.ID, 36)
	assert.False(t, run.StartedAt.IsZero())
	assert.Equal(t, time.UTC, run.StartedAt.Location())

	got, err := s.Get(run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "/a", got.Source)
	assert.Equal(t, history.OpBackup, got.Operation)
}

func TestRecordKeepsGivenID(t *testing.T) {
	s := openStore(t)

	run, err := s.Record(history.Run{ID: "fixed-id", Operation: history.OpSync})
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", run.ID)
}

func TestListNewestFirst(t *testing.T) {
	s := openStore(t)
	base := time.Now().Add(-time.Hour)

	for i, id := range []string{"b", "c", "a"} {
		_, err := s.Record(history.Run{ID: id, StartedAt: base.Add(time.Duration(i) * time.Minute)})
		require.NoError(t, err)
	}

	runs, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []string{"a", "c", "b"}, []string{runs[0].ID, runs[1].ID, runs[2].ID})

	limited, err := s.List(2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
	assert.Equal(t, "a", limited[0].ID)
}

func TestListEmpty(t *testing.T) {
	runs, err := openStore(t).List(10)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

func TestGet(t *testing.T) {
	s := openStore(t)
	for _, id := range []string{"abc123", "abd456", "abc"} {
		_, err := s.Record(history.Run{ID: id})
		require.NoError(t, err)
	}

	tests := []struct {
		name    string
		id      string
		want    string
		wantErr error
	}{
		{name: "exact", id: "abd456", want: "abd456"},
		{name: "exact shadows prefix", id: "abc", want: "abc"},
		{name: "unique prefix", id: "abd", want: "abd456"},
		{name: "ambiguous prefix", id: "ab", wantErr: history.ErrAmbiguousID},
		{name: "missing", id: "zzz", wantErr: history.ErrNotFound},
		{name: "empty", id: "  ", wantErr: history.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Get(tt.id)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Get(%q) error = %v, want %v", tt.id, err, tt.wantErr)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.ID)
		})
	}
}

func TestCleanup(t *testing.T) {
	s := openStore(t)
	now := time.Now()

	_, err := s.Record(history.Run{ID: "old", StartedAt: now.AddDate(0, 0, -100)})
	require.NoError(t, err)
	_, err = s.Record(history.Run{ID: "recent", StartedAt: now.AddDate(0, 0, -1)})
	require.NoError(t, err)

	removed, err := s.Cleanup(0)
	require.NoError(t, err)
	assert.Zero(t, removed, "zero retention keeps everything")

	removed, err = s.Cleanup(90)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	runs, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "recent", runs[0].ID)
}

func TestFromReport(t *testing.T) {
	started := time.Now().Add(-time.Second)
	report := &reconcile.Report{
		Redundant:   []string{"a"},
		CreatedDirs: []string{"d"},
		Copied:      []string{"b", "dirsnap-src-c"},
		Renamed:     []reconcile.Rename{{From: "c", To: "dirsnap-src-c"}},
		BytesCopied: 42,
	}

	run := history.FromReport("/src", "/dst", started, report, errors.New("boom"))
	assert.Equal(t, history.OpBackup, run.Operation)
	assert.Equal(t, 1, run.Redundant)
	assert.Equal(t, 1, run.CreatedDirs)
	assert.Equal(t, 2, run.Copied)
	assert.Equal(t, 1, run.Renamed)
	assert.Equal(t, int64(42), run.BytesCopied)
	assert.Equal(t, report.Renamed, run.Renames)
	assert.Equal(t, "boom", run.Error)
	assert.True(t, run.Failed())
	assert.GreaterOrEqual(t, run.Duration, time.Second)
}

func TestFromSync(t *testing.T) {
	res := &syncer.Result{
		DirA:     "/a",
		DirB:     "/b",
		Forward:  &reconcile.Report{Copied: []string{"x"}, BytesCopied: 1},
		Backward: &reconcile.Report{Copied: []string{"y", "z"}, BytesCopied: 2},
		Removed:  []string{"dirsnap-src-q"},
		Duration: 3 * time.Second,
	}

	run := history.FromSync(time.Now(), res)
	assert.Equal(t, history.OpSync, run.Operation)
	assert.Equal(t, "/a", run.Source)
	assert.Equal(t, "/b", run.Dest)
	assert.Equal(t, 3, run.Copied)
	assert.Equal(t, int64(3), run.BytesCopied)
	assert.Equal(t, 1, run.Removed)
	assert.Equal(t, 3*time.Second, run.Duration)
	assert.False(t, run.Failed())
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "12345678", history.Run{ID: "123456789abc"}.ShortID())
	assert.Equal(t, "abc", history.Run{ID: "abc"}.ShortID())
}
