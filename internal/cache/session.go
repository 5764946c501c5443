package cache

import (
	"context"
	"sync"
	"time"

	"reposcope/internal/data"
)

// Sessions hands out one in-memory session tier per conversation. Idle
// sessions are dropped the next time the registry is touched.
type Sessions struct {
	mu    sync.Mutex
	slots map[string]*sessionSlot
	idle  time.Duration
	now   func() time.Time
}

type sessionSlot struct {
	tier     *Memory
	lastUsed time.Time
}

func NewSessions(idle time.Duration) *Sessions {
	return &Sessions{slots: make(map[string]*sessionSlot), idle: idle, now: time.Now}
}

// Get returns the tier for id, creating it if needed. An empty id has no
// session tier and returns nil.
func (s *Sessions) Get(id string) Backend {
	if s == nil || id == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.dropIdleLocked(now)
	slot, ok := s.slots[id]
	if !ok {
		slot = &sessionSlot{tier: NewMemory(WithMemoryClock(s.now))}
		s.slots[id] = slot
	}
	slot.lastUsed = now
	return slot.tier
}

func (s *Sessions) Drop(id string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	delete(s.slots, id)
	s.mu.Unlock()
}

func (s *Sessions) Len() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}

// InvalidateAllFor purges ref from every live session tier and returns the
// number of keys removed.
func (s *Sessions) InvalidateAllFor(ctx context.Context, ref data.RepoRef) int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	tiers := make([]*Memory, 0, len(s.slots))
	for _, slot := range s.slots {
		tiers = append(tiers, slot.tier)
	}
	s.mu.Unlock()

	prefix := invalidationPrefix(ref)
	n := 0
	for _, t := range tiers {
		keys, _ := t.DeletePrefix(ctx, prefix)
		n += len(keys)
	}
	return n
}

func (s *Sessions) dropIdleLocked(now time.Time) {
	if s.idle <= 0 {
		return
	}
	for id, slot := range s.slots {
		if now.Sub(slot.lastUsed) > s.idle {
			delete(s.slots, id)
		}
	}
}
