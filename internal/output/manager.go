package output

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// Sink is a destination for answers and lifecycle events.
type Sink interface {
	Write(v any) error
	Close() error
}

// ErrClosed is returned for writes to a closed Manager.
var ErrClosed = errors.New("output manager closed")

// Manager fans every write out to all sinks and joins their errors. Writes
// are serialized, so sinks see the events of concurrent requests in one
// order.
type Manager struct {
	mu     sync.Mutex
	sinks  []Sink
	closed bool
}

func NewManager() *Manager {
	return &Manager{}
}

func (m *Manager) AddSink(s Sink) error {
	if s == nil {
		return errors.New("sink must not be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.sinks = append(m.sinks, s)
	return nil
}

// Len returns the number of sinks.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sinks)
}

func (m *Manager) Write(v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	return m.each("writing to", func(s Sink) error { return s.Write(v) })
}

// Close closes every sink once. Later calls return nil.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.each("closing", Sink.Close)
}

func (m *Manager) each(verb string, fn func(Sink) error) error {
	var errs []error
	for _, s := range m.sinks {
		if err := fn(s); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", s, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors %s sinks: %w", verb, errors.Join(errs...))
	}
	return nil
}

// flushIfPossible pushes buffered output of w to its destination, so NDJSON
// consumers see each event as it is written.
func flushIfPossible(w io.Writer) error {
	switch f := w.(type) {
	case interface{ Flush() error }:
		return f.Flush()
	case http.Flusher:
		f.Flush()
	}
	return nil
}
