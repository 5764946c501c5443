package output

import (
	"errors"
	"strings"
	"sync"
	"testing"
)

type recordingSink struct {
	name     string
	writes   []any
	closes   int
	writeErr error
	closeErr error
}

func (s *recordingSink) Write(v any) error {
	s.writes = append(s.writes, v)
	if s.writeErr != nil {
		return errors.New(s.name + ": " + s.writeErr.Error())
	}
	return nil
}

func (s *recordingSink) Close() error {
	s.closes++
	if s.closeErr != nil {
		return errors.New(s.name + ": " + s.closeErr.Error())
	}
	return nil
}

func newManager(t *testing.T, sinks ...Sink) *Manager {
	t.Helper()
	mgr := NewManager()
	for _, s := range sinks {
		if err := mgr.AddSink(s); err != nil {
			t.Fatalf("AddSink: %v", err)
		}
	}
	return mgr
}

func TestManager_FansOut(t *testing.T) {
	a, b := &recordingSink{name: "a"}, &recordingSink{name: "b"}
	mgr := newManager(t, a, b)

	_ = mgr.Write(Event{Type: "run.started"})
	_ = mgr.Write(answer("acme/a", "high"))
	if err := mgr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(a.writes) != 2 || len(b.writes) != 2 {
		t.Fatalf("writes: a=%d b=%d, want 2 each", len(a.writes), len(b.writes))
	}
	if mgr.Len() != 2 {
		t.Fatalf("Len = %d", mgr.Len())
	}
}

func TestManager_JoinsErrors(t *testing.T) {
	tests := []struct {
		name string
		a, b *recordingSink
		run  func(*Manager) error
		want []string
	}{
		{
			name: "write",
			a:    &recordingSink{name: "console", writeErr: errors.New("broken pipe")},
			b:    &recordingSink{name: "report", writeErr: errors.New("disk full")},
			run:  func(m *Manager) error { return m.Write(Event{Type: "run.started"}) },
			want: []string{"errors writing to sinks", "console: broken pipe", "report: disk full", "recordingSink"},
		},
		{
			name: "close",
			a:    &recordingSink{name: "file", closeErr: errors.New("rename failed")},
			b:    &recordingSink{name: "emit"},
			run:  func(m *Manager) error { return m.Close() },
			want: []string{"errors closing sinks", "file: rename failed"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run(newManager(t, tt.a, tt.b))
			if err == nil {
				t.Fatalf("expected error")
			}
			for _, want := range tt.want {
				if !strings.Contains(err.Error(), want) {
					t.Fatalf("error missing %q; got: %s", want, err)
				}
			}
		})
	}
}

func TestManager_Closed(t *testing.T) {
	s := &recordingSink{name: "a"}
	mgr := newManager(t, s)
	if err := mgr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := mgr.Close(); err != nil || s.closes != 1 {
		t.Fatalf("second Close: err=%v closes=%d", err, s.closes)
	}
	if err := mgr.Write(Event{Type: "run.finished"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("Write after Close = %v, want ErrClosed", err)
	}
	if err := mgr.AddSink(&recordingSink{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("AddSink after Close = %v, want ErrClosed", err)
	}
	if err := NewManager().AddSink(nil); err == nil {
		t.Fatalf("AddSink(nil) want error")
	}
}

func TestManager_ConcurrentWrites(t *testing.T) {
	s := &recordingSink{name: "a"}
	mgr := newManager(t, s)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = mgr.Write(Event{Type: "request.started"})
		}()
	}
	wg.Wait()
	if len(s.writes) != 16 {
		t.Fatalf("writes = %d, want 16", len(s.writes))
	}
}
