// Package router decides how a classified request is executed and under
// which cache key and TTL its result lives.
package router

import (
	"context"
	"time"

	"reposcope/internal/cache"
	"reposcope/internal/data"
	"reposcope/internal/intent"
)

// Freshness describes how a cached entry may be used.
type Freshness string

const (
	// Miss means no usable entry; compute.
	Miss Freshness = "miss"
	// Fresh means reuse as-is.
	Fresh Freshness = "fresh"
	// Stale means reuse, but the answer is marked stale.
	Stale Freshness = "stale"
	// Bypass means the cache was not consulted (force refresh).
	Bypass Freshness = "bypass"
)

// Policy holds the TTL and freshness windows.
type Policy struct {
	TargetedTTL    time.Duration
	ReinterpretTTL time.Duration
	FullTTL        time.Duration

	// FreshFor is the age up to which a Full entry is reused as fresh.
	FreshFor time.Duration
	// StaleAfter is the age beyond which a Full entry is a miss. Between
	// FreshFor and StaleAfter the entry is reused when ServeStale is set.
	StaleAfter time.Duration
	ServeStale bool
}

func DefaultPolicy() Policy {
	return Policy{
		TargetedTTL:    6 * time.Hour,
		ReinterpretTTL: 6 * time.Hour,
		FullTTL:        30 * time.Minute,
		FreshFor:       10 * time.Minute,
		StaleAfter:     25 * time.Minute,
		ServeStale:     true,
	}
}

// Lookup is the read side of the cache the router needs.
type Lookup interface {
	Get(ctx context.Context, key string) (cache.Entry, cache.Tier, bool)
}

// Decision is the routing outcome.
type Decision struct {
	Strategy  intent.Strategy `json:"strategy"`
	Requested intent.Strategy `json:"requested"`
	// Downgraded is set when Reinterpret fell back to Full.
	Downgraded bool `json:"downgraded,omitempty"`

	Key      string        `json:"key"`
	TTL      time.Duration `json:"ttl"`
	UseCache bool          `json:"use_cache"`

	// Freshness and Entry describe the cached answer for Key, if any.
	Freshness Freshness     `json:"freshness"`
	Entry     *cache.Entry  `json:"-"`
	Tier      cache.Tier    `json:"tier,omitempty"`
	Age       time.Duration `json:"age,omitempty"`

	// SourceKey and Source locate the primary Full result a reinterpretation
	// is built from.
	SourceKey string       `json:"source_key,omitempty"`
	Source    *cache.Entry `json:"-"`
}

// Route picks the strategy, key and TTL for in. It reads the cache through
// lookup and has no other effects.
func Route(ctx context.Context, in intent.ExecutionIntent, ref data.RepoRef, p Policy, lookup Lookup, now time.Time) Decision {
	d := Decision{Requested: in.Strategy, Strategy: in.Strategy, UseCache: !in.ForceRefresh}
	if d.Strategy == "" {
		d.Strategy = intent.Full
		d.Requested = intent.Full
	}
	depth := in.Depth
	if depth == "" {
		depth = intent.Standard
	}

	if d.Strategy == intent.Reinterpret {
		if !d.UseCache {
			// A reinterpretation needs cached material; refreshing means
			// recomputing it.
			return routeFull(ctx, d.downgrade(), ref, depth, p, lookup, now)
		}
		srcKey, src, ok := findSource(ctx, ref, depth, lookup)
		if !ok {
			return routeFull(ctx, d.downgrade(), ref, depth, p, lookup, now)
		}
		d.SourceKey = srcKey
		d.Source = src
		d.Key = cache.Key(ref, in.AnalysisType(), depth)
		d.TTL = p.ReinterpretTTL
		d.applyLongTTLLookup(ctx, lookup, now)
		return d
	}

	if d.Strategy == intent.Targeted {
		d.Key = cache.Key(ref, in.AnalysisType(), depth)
		d.TTL = p.TargetedTTL
		d.applyLongTTLLookup(ctx, lookup, now)
		return d
	}

	return routeFull(ctx, d, ref, depth, p, lookup, now)
}

func (d Decision) downgrade() Decision {
	d.Strategy = intent.Full
	d.Downgraded = true
	return d
}

func routeFull(ctx context.Context, d Decision, ref data.RepoRef, depth intent.Depth, p Policy, lookup Lookup, now time.Time) Decision {
	d.Key = cache.Key(ref, intent.FullAnalysisType, depth)
	d.TTL = p.FullTTL
	d.Freshness = Miss
	if !d.UseCache {
		d.Freshness = Bypass
		return d
	}
	if lookup == nil {
		return d
	}
	e, tier, ok := lookup.Get(ctx, d.Key)
	if !ok {
		return d
	}
	age := e.Age(now)
	switch f := classifyFull(age, p); f {
	case Fresh, Stale:
		d.Freshness = f
		d.Entry = &e
		d.Tier = tier
		d.Age = age
	}
	return d
}

// classifyFull applies the Full freshness windows to an entry's age.
func classifyFull(age time.Duration, p Policy) Freshness {
	switch {
	case age <= p.FreshFor:
		return Fresh
	case age > p.StaleAfter:
		return Miss
	case p.ServeStale:
		return Stale
	default:
		return Miss
	}
}

// applyLongTTLLookup reuses any unexpired entry; long-TTL results have no
// stale window.
func (d *Decision) applyLongTTLLookup(ctx context.Context, lookup Lookup, now time.Time) {
	d.Freshness = Miss
	if !d.UseCache {
		d.Freshness = Bypass
		return
	}
	if lookup == nil {
		return
	}
	if e, tier, ok := lookup.Get(ctx, d.Key); ok {
		d.Freshness = Fresh
		d.Entry = &e
		d.Tier = tier
		d.Age = e.Age(now)
	}
}

// findSource looks for a primary Full result at the requested depth, then
// at every other depth, deepest first.
func findSource(ctx context.Context, ref data.RepoRef, depth intent.Depth, lookup Lookup) (string, *cache.Entry, bool) {
	if lookup == nil {
		return "", nil, false
	}
	order := []intent.Depth{depth}
	for _, dd := range intent.Depths() {
		if dd != depth {
			order = append(order, dd)
		}
	}
	for _, dd := range order {
		key := cache.Key(ref, intent.FullAnalysisType, dd)
		e, _, ok := lookup.Get(ctx, key)
		if !ok {
			continue
		}
		return key, &e, true
	}
	return "", nil, false
}
