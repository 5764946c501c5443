package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"reposcope/internal/engine"
)

// EmitSink writes additional structured outputs.
//
// Formats:
//   - json: aggregates answers and writes a single JSON array on Close
//   - ndjson: streams Event values (one JSON object per line)
type EmitSink struct {
	writer  io.Writer
	format  string // "json" | "ndjson"
	mu      sync.Mutex
	answers []*engine.Answer
}

func NewEmitSink(w io.Writer, format string) (*EmitSink, error) {
	if w == nil {
		return nil, fmt.Errorf("emit sink writer must not be nil")
	}
	if format != "json" && format != "ndjson" {
		return nil, fmt.Errorf("unsupported emit format: %s", format)
	}
	return &EmitSink{writer: w, format: format}, nil
}

func (s *EmitSink) Write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, isAnswer := asAnswer(v)
	switch s.format {
	case "json":
		if isAnswer {
			s.answers = append(s.answers, a)
		}
		return nil
	case "ndjson":
		var ev Event
		switch t := v.(type) {
		case Event:
			ev = t
		default:
			if !isAnswer {
				return nil
			}
			ev = eventFromAnswer(a)
		}
		if err := json.NewEncoder(s.writer).Encode(ev); err != nil {
			return err
		}
		return flushIfPossible(s.writer)
	default:
		return fmt.Errorf("unsupported emit format: %s", s.format)
	}
}

func (s *EmitSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.format == "json" {
		if err := writeJSONArray(s.writer, s.answers); err != nil {
			return err
		}
		return flushIfPossible(s.writer)
	}
	return nil
}
