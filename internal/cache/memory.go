package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process Backend.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

type MemoryOption func(*Memory)

// WithMemoryClock overrides the clock used for expiry checks.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{entries: make(map[string]Entry), now: time.Now}
	for _, apply := range opts {
		apply(m)
	}
	return m
}

func (m *Memory) Get(_ context.Context, key string) (Entry, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return Entry{}, false, nil
	}
	if e.Expired(m.now()) {
		m.mu.Lock()
		// Re-check: a concurrent Put may have replaced it.
		if cur, ok := m.entries[key]; ok && cur.Expired(m.now()) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return Entry{}, false, nil
	}
	return e.clone(), true, nil
}

func (m *Memory) Put(_ context.Context, e Entry) error {
	m.mu.Lock()
	m.entries[e.Key] = e.clone()
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[key]
	delete(m.entries, key)
	return ok, nil
}

func (m *Memory) DeletePrefix(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed []string
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			removed = append(removed, k)
			delete(m.entries, k)
		}
	}
	return removed, nil
}

func (m *Memory) Stats(_ context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := m.now()
	st := Stats{Entries: len(m.entries)}
	for _, e := range m.entries {
		if e.Expired(now) {
			st.Expired++
		}
	}
	return st, nil
}

// Len returns the number of stored entries, expired or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
