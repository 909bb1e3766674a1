// Package output renders backup, sync, and snapshot results in several
// formats (pretty, plain, json, yaml) and renders progress events on a
// console.
//
// Formatters are looked up by name from a registry:
//
//	formatter, err := output.Get("pretty")
//	if err != nil {
//	    return err
//	}
//	var buf bytes.Buffer
//	if err := formatter.Format(&buf, result); err != nil {
//	    return err
//	}
//	fmt.Print(buf.String())
package output

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jamesainslie/dirsnap/pkg/dirsnap/reconcile"
	"github.com/jamesainslie/dirsnap/pkg/dirsnap/types"
)

// Pass is one reconciliation pass from Source into Dest.
type Pass struct {
	// Label names the pass, e.g. "backup" or "a -> b".
	Label  string
	Source string
	Dest   string
	Report *reconcile.Report
}

// Result contains everything a formatter may render. Operations fill in the
// parts relevant to them: passes for backup and sync, a manifest for init
// and show.
type Result struct {
	// Operation is the command that produced the result.
	Operation string

	Source string
	Dest   string

	Passes []Pass

	// Removed lists transient copies deleted by a sync.
	Removed []string

	// Manifest is the snapshot rendered by init and show.
	Manifest types.Manifest

	// Skipped lists entries the snapshot could not read.
	Skipped []string

	Duration time.Duration

	// Errors holds the messages of errors that ended or interrupted the run.
	Errors []string

	Interrupted bool
}

// Renamed returns the renamed copies of every pass.
func (r *Result) Renamed() []reconcile.Rename {
	var out []reconcile.Rename
	for _, p := range r.Passes {
		if p.Report != nil {
			out = append(out, p.Report.Renamed...)
		}
	}
	return out
}

// Copied returns the number of files copied by all passes.
func (r *Result) Copied() int {
	n := 0
	for _, p := range r.Passes {
		if p.Report != nil {
			n += len(p.Report.Copied)
		}
	}
	return n
}

// BytesCopied returns the number of bytes copied by all passes.
func (r *Result) BytesCopied() int64 {
	var n int64
	for _, p := range r.Passes {
		if p.Report != nil {
			n += p.Report.BytesCopied
		}
	}
	return n
}

// Formatter is the interface that all output formatters must implement.
type Formatter interface {
	// Format writes the formatted output to the buffer.
	Format(w *bytes.Buffer, r *Result) error
}

// FormatterFactory is a function that creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates a new formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]FormatterFactory),
	}
}

// Register adds a formatter factory, replacing any with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns a sorted list of all registered formatter names.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a new formatter instance from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns all formatter names from the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}
