// Package event defines the typed progress events emitted by reconciliation
// and sync runs, and the sinks that receive them.
package event

import (
	"fmt"
	"sync"

	"github.com/jamesainslie/dirsnap/pkg/dirsnap/logging"
)

// Level classifies an event.
type Level int

const (
	// Info is an informational or warning message.
	Info Level = iota
	// Ok reports a successful operation.
	Ok
	// Err reports a failed operation.
	Err
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case Info:
		return "info"
	case Ok:
		return "ok"
	case Err:
		return "err"
	default:
		return "unknown"
	}
}

// Event is a single progress message.
type Event struct {
	Level   Level
	Message string

	// Path is the relative path the event is about, if any.
	Path string
}

// Sink receives events. Implementations must not block for long; emitters
// call Emit synchronously.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Event)

// Emit calls f.
func (f SinkFunc) Emit(e Event) {
	f(e)
}

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Infof emits an Info event.
func Infof(s Sink, path, format string, args ...interface{}) {
	s.Emit(Event{Level: Info, Path: path, Message: fmt.Sprintf(format, args...)})
}

// Okf emits an Ok event.
func Okf(s Sink, path, format string, args ...interface{}) {
	s.Emit(Event{Level: Ok, Path: path, Message: fmt.Sprintf(format, args...)})
}

// Errf emits an Err event.
func Errf(s Sink, path, format string, args ...interface{}) {
	s.Emit(Event{Level: Err, Path: path, Message: fmt.Sprintf(format, args...)})
}

type multi []Sink

func (m multi) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}

// Multi fans events out to every non-nil sink.
func Multi(sinks ...Sink) Sink {
	var out multi
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// Recorder keeps every event it receives. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit records e.
func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Count returns the number of recorded events at level.
func (r *Recorder) Count(level Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Level == level {
			n++
		}
	}
	return n
}

// NewLogSink forwards events to a component logger: Info and Ok at info
// level, Err at error level.
func NewLogSink(logger *logging.Logger) Sink {
	return SinkFunc(func(e Event) {
		args := []interface{}{"event", e.Level.String()}
		if e.Path != "" {
			args = append(args, "path", e.Path)
		}
		if e.Level == Err {
			logger.Error(e.Message, args...)
			return
		}
		logger.Info(e.Message, args...)
	})
}
