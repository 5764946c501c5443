package cache

import (
	"context"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestMemory_ExpiredEntryIsEvictedOnLookup(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m := NewMemory(WithMemoryClock(clock.Now))

	if err := m.Put(ctx, Entry{Key: "k", Payload: []byte("v"), CreatedAt: clock.Now(), TTL: time.Minute}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	clock.Advance(time.Minute)
	if _, ok, _ := m.Get(ctx, "k"); !ok {
		t.Fatalf("expected hit exactly at ttl boundary")
	}

	clock.Advance(time.Millisecond)
	if m.Len() != 1 {
		t.Fatalf("expected no proactive sweep, got len=%d", m.Len())
	}
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Fatalf("expected miss after expiry")
	}
	if m.Len() != 0 {
		t.Fatalf("expected lookup to evict expired entry, got len=%d", m.Len())
	}
}

func TestMemory_PayloadIsCopied(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	payload := []byte("abc")
	_ = m.Put(ctx, Entry{Key: "k", Payload: payload, CreatedAt: time.Now(), TTL: time.Hour})
	payload[0] = 'z'

	e, ok, _ := m.Get(ctx, "k")
	if !ok || string(e.Payload) != "abc" {
		t.Fatalf("expected stored copy %q, got %q (ok=%v)", "abc", e.Payload, ok)
	}
	e.Payload[0] = 'y'
	e2, _, _ := m.Get(ctx, "k")
	if string(e2.Payload) != "abc" {
		t.Fatalf("expected read copy to be isolated, got %q", e2.Payload)
	}
}

func TestMemory_DeletePrefix(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for _, k := range []string{"a:1", "a:2", "b:1"} {
		_ = m.Put(ctx, Entry{Key: k, CreatedAt: time.Now(), TTL: time.Hour})
	}
	removed, err := m.DeletePrefix(ctx, "a:")
	if err != nil {
		t.Fatalf("DeletePrefix failed: %v", err)
	}
	if len(removed) != 2 {
		t.Fatalf("expected 2 removed, got %v", removed)
	}
	if m.Len() != 1 {
		t.Fatalf("expected 1 remaining, got %d", m.Len())
	}
}
