// Package history keeps a log of backup and sync runs in a Badger database.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// ErrNotFound is returned when no run matches an ID.
var ErrNotFound = errors.New("run not found")

// ErrAmbiguousID is returned when an ID prefix matches several runs.
var ErrAmbiguousID = errors.New("ambiguous run id")

// Schema versions:
// 1 - Initial version (runs only)
const CurrentSchemaVersion = 1

const (
	prefixRun = "r:"
	schemaKey = "m:__schema__"
)

// Schema holds database schema information.
type Schema struct {
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is the run history backed by Badger DB.
type Store struct {
	db *badger.DB
}

// Open opens or creates a history database in the directory path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open history at %s: %w", path, err)
	}

	s := &Store{db: db}
	if s.GetSchema() == nil {
		if err := s.setSchema(&Schema{Version: CurrentSchemaVersion, UpdatedAt: time.Now().UTC()}); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to write history schema: %w", err)
		}
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetSchema returns the stored schema, or nil if not set.
func (s *Store) GetSchema() *Schema {
	var schema *Schema

	_ = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(schemaKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			schema = &Schema{}
			return json.Unmarshal(val, schema)
		})
	})

	return schema
}

func (s *Store) setSchema(schema *Schema) error {
	data, err := json.Marshal(schema)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(schemaKey), data)
	})
}

// Record stores a run, assigning an ID and start time when missing.
func (s *Store) Record(run Run) (Run, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	run.StartedAt = run.StartedAt.UTC()

	data, err := json.Marshal(run)
	if err != nil {
		return run, fmt.Errorf("failed to marshal run: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(runKey(run.ID), data)
	})
	if err != nil {
		return run, fmt.Errorf("failed to record run: %w", err)
	}
	return run, nil
}

// List returns runs newest first. A limit of zero or less returns all.
func (s *Store) List(limit int) ([]Run, error) {
	runs, err := s.all()
	if err != nil {
		return nil, err
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})

	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// Get returns the run with the given ID. A unique ID prefix is accepted.
func (s *Store) Get(id string) (*Run, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrNotFound)
	}

	var matches []Run
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := runKey(id)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var run Run
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &run)
			}); err != nil {
				return err
			}
			if run.ID == id {
				matches = []Run{run}
				return nil
			}
			matches = append(matches, run)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	case 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("%w: %s matches %d runs", ErrAmbiguousID, id, len(matches))
	}
}

// Cleanup deletes runs older than retentionDays and returns how many were
// removed. A retention of zero or less keeps everything.
func (s *Store) Cleanup(retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	runs, err := s.all()
	if err != nil {
		return 0, err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	removed := 0
	for _, run := range runs {
		if !run.StartedAt.Before(cutoff) {
			continue
		}
		if err := wb.Delete(runKey(run.ID)); err != nil {
			return 0, err
		}
		removed++
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("failed to clean history: %w", err)
	}
	return removed, nil
}

// all returns every stored run in key order. Undecodable values are skipped.
func (s *Store) all() ([]Run, error) {
	runs := []Run{}

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixRun)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			_ = it.Item().Value(func(val []byte) error {
				var run Run
				if err := json.Unmarshal(val, &run); err != nil {
					return nil
				}
				runs = append(runs, run)
				return nil
			})
		}
		return nil
	})
	return runs, err
}

func runKey(id string) []byte {
	return []byte(prefixRun + id)
}
