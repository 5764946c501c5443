package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"reposcope/internal/engine"
)

// FileSink writes answers to a file as a JSON array, a YAML list or an
// NDJSON event stream.
type FileSink struct {
	path    string
	format  string
	file    *os.File
	mu      sync.Mutex
	answers []*engine.Answer
}

func NewFileSink(path string, format string) (*FileSink, error) {
	if path == "" {
		return nil, fmt.Errorf("output path required")
	}

	if format == "" {
		ext := strings.ToLower(filepath.Ext(path))
		switch ext {
		case ".json":
			format = "json"
		case ".ndjson", ".jsonl":
			format = "ndjson"
		case ".yaml", ".yml":
			format = "yaml"
		default:
			return nil, fmt.Errorf("cannot infer output format from file extension %q", ext)
		}
	}

	switch format {
	case "json", "ndjson", "yaml":
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	return &FileSink{
		path:   path,
		format: format,
		file:   f,
	}, nil
}

func (s *FileSink) Write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, isAnswer := asAnswer(v)
	if s.format != "ndjson" {
		if isAnswer {
			s.answers = append(s.answers, a)
		}
		return nil
	}

	encoder := json.NewEncoder(s.file)
	switch t := v.(type) {
	case Event:
		return encoder.Encode(t)
	default:
		if !isAnswer {
			return nil
		}
		return encoder.Encode(eventFromAnswer(a))
	}
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	switch s.format {
	case "json":
		err = writeJSONArray(s.file, s.answers)
	case "yaml":
		err = writeYAML(s.file, s.answers)
	}

	if closeErr := s.file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}
