package fetcher

import (
	"strings"
	"sync"
	"time"
)

type memoEntry struct {
	val     any
	expires time.Time
}

// memo holds fetched values for a short TTL. A zero TTL stores nothing.
type memo struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoEntry
	now     func() time.Time
}

func newMemo(ttl time.Duration) *memo {
	return &memo{ttl: ttl, entries: make(map[string]memoEntry), now: time.Now}
}

func (m *memo) get(key string) (any, bool) {
	if m.ttl <= 0 {
		return nil, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if m.now().After(e.expires) {
		delete(m.entries, key)
		return nil, false
	}
	return e.val, true
}

func (m *memo) set(key string, val any) {
	if m.ttl <= 0 {
		return
	}
	m.mu.Lock()
	m.entries[key] = memoEntry{val: val, expires: m.now().Add(m.ttl)}
	m.mu.Unlock()
}

func (m *memo) forgetPrefix(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
			n++
		}
	}
	return n
}
