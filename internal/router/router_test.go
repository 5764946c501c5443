package router

import (
	"context"
	"testing"
	"time"

	"reposcope/internal/cache"
	"reposcope/internal/data"
	"reposcope/internal/intent"
)

var (
	testNow = time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	widgets = data.RepoRef{Owner: "acme", Name: "widgets"}
)

type mapLookup struct {
	entries map[string]cache.Entry
	calls   int
}

func (m *mapLookup) Get(_ context.Context, key string) (cache.Entry, cache.Tier, bool) {
	m.calls++
	e, ok := m.entries[key]
	return e, cache.TierProcess, ok
}

func withEntry(key string, age time.Duration) *mapLookup {
	return &mapLookup{entries: map[string]cache.Entry{
		key: {Key: key, Payload: []byte("{}"), CreatedAt: testNow.Add(-age), TTL: time.Hour},
	}}
}

func TestRoute_FullEmptyCache(t *testing.T) {
	d := Route(context.Background(), intent.ExecutionIntent{Strategy: intent.Full, Depth: intent.Standard}, widgets, DefaultPolicy(), &mapLookup{}, testNow)
	if d.Strategy != intent.Full {
		t.Fatalf("expected full, got %q", d.Strategy)
	}
	if d.TTL != 30*time.Minute {
		t.Fatalf("expected short ttl, got %v", d.TTL)
	}
	if !d.UseCache || d.Freshness != Miss || d.Entry != nil {
		t.Fatalf("expected cache miss, got %+v", d)
	}
	if d.Key != cache.Key(widgets, intent.FullAnalysisType, intent.Standard) {
		t.Fatalf("unexpected key %q", d.Key)
	}
}

func TestRoute_FullFreshnessWindows(t *testing.T) {
	key := cache.Key(widgets, intent.FullAnalysisType, intent.Standard)
	tests := []struct {
		name      string
		age       time.Duration
		serve     bool
		want      Freshness
		wantEntry bool
	}{
		{name: "fresh", age: 5 * time.Minute, serve: true, want: Fresh, wantEntry: true},
		{name: "fresh boundary", age: 10 * time.Minute, serve: true, want: Fresh, wantEntry: true},
		{name: "stale eligible", age: 15 * time.Minute, serve: true, want: Stale, wantEntry: true},
		{name: "stale disabled", age: 15 * time.Minute, serve: false, want: Miss},
		{name: "too old", age: 26 * time.Minute, serve: true, want: Miss},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultPolicy()
			p.ServeStale = tt.serve
			d := Route(context.Background(), intent.ExecutionIntent{Strategy: intent.Full, Depth: intent.Standard}, widgets, p, withEntry(key, tt.age), testNow)
			if d.Freshness != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, d.Freshness)
			}
			if (d.Entry != nil) != tt.wantEntry {
				t.Fatalf("expected entry=%v, got %v", tt.wantEntry, d.Entry != nil)
			}
		})
	}
}

func TestRoute_ForceRefreshNeverUsesCache(t *testing.T) {
	key := cache.Key(widgets, intent.FullAnalysisType, intent.Standard)
	for _, s := range []intent.Strategy{intent.Full, intent.Targeted, intent.Reinterpret} {
		t.Run(string(s), func(t *testing.T) {
			lookup := withEntry(key, time.Minute)
			d := Route(context.Background(), intent.ExecutionIntent{Strategy: s, TargetedTopic: "docs", Depth: intent.Standard, ForceRefresh: true}, widgets, DefaultPolicy(), lookup, testNow)
			if d.UseCache {
				t.Fatalf("expected use_cache=false")
			}
			if d.Entry != nil || d.Freshness != Bypass {
				t.Fatalf("expected bypass, got freshness=%q entry=%v", d.Freshness, d.Entry != nil)
			}
			if lookup.calls != 0 {
				t.Fatalf("expected no cache reads, got %d", lookup.calls)
			}
		})
	}
}

func TestRoute_ReinterpretDowngradesWithoutSource(t *testing.T) {
	d := Route(context.Background(), intent.ExecutionIntent{Strategy: intent.Reinterpret, Depth: intent.Standard}, widgets, DefaultPolicy(), &mapLookup{}, testNow)
	if d.Strategy != intent.Full || !d.Downgraded || d.Requested != intent.Reinterpret {
		t.Fatalf("expected downgrade to full, got %+v", d)
	}
	if d.TTL != 30*time.Minute {
		t.Fatalf("expected full ttl after downgrade, got %v", d.TTL)
	}
}

func TestRoute_ReinterpretUsesSourceAtOtherDepth(t *testing.T) {
	src := cache.Key(widgets, intent.FullAnalysisType, intent.Thorough)
	in := intent.ExecutionIntent{Strategy: intent.Reinterpret, Depth: intent.Quick, ReinterpretPerspective: "beginner"}
	d := Route(context.Background(), in, widgets, DefaultPolicy(), withEntry(src, 20*time.Minute), testNow)
	if d.Strategy != intent.Reinterpret {
		t.Fatalf("expected reinterpret, got %q", d.Strategy)
	}
	if d.SourceKey != src || d.Source == nil {
		t.Fatalf("expected source %q, got %q", src, d.SourceKey)
	}
	if d.TTL != 6*time.Hour {
		t.Fatalf("expected long ttl, got %v", d.TTL)
	}
	if d.Key == src {
		t.Fatalf("expected reinterpretation key to differ from source")
	}
}

func TestRoute_TargetedLongTTL(t *testing.T) {
	in := intent.ExecutionIntent{Strategy: intent.Targeted, TargetedTopic: "docs", Depth: intent.Standard}
	key := cache.Key(widgets, "targeted.docs", intent.Standard)
	d := Route(context.Background(), in, widgets, DefaultPolicy(), withEntry(key, 3*time.Hour), testNow)
	if d.TTL != 6*time.Hour {
		t.Fatalf("expected long ttl, got %v", d.TTL)
	}
	if d.Freshness != Fresh || d.Entry == nil {
		t.Fatalf("expected reuse of unexpired targeted entry, got %q", d.Freshness)
	}
}
