package cache

import (
	"context"
	"log/slog"
	"time"

	"reposcope/internal/data"
	"reposcope/internal/logging"
)

// Layered is the Store used by the engine. It consults an optional session
// tier before the process tier, copies process hits into the session tier and
// writes through to both. Backend errors are logged and treated as misses.
type Layered struct {
	process Backend
	session Backend
	now     func() time.Time
	log     *slog.Logger
}

type Option func(*Layered)

func WithClock(now func() time.Time) Option {
	return func(l *Layered) {
		if now != nil {
			l.now = now
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(l *Layered) {
		if log != nil {
			l.log = log
		}
	}
}

// NewLayered builds a store over the process tier. A nil process backend
// yields a store that always misses.
func NewLayered(process Backend, opts ...Option) *Layered {
	l := &Layered{process: process, now: time.Now, log: logging.New("cache")}
	for _, apply := range opts {
		apply(l)
	}
	return l
}

// WithSession returns a view of l that consults session first. The process
// tier is shared with l.
func (l *Layered) WithSession(session Backend) *Layered {
	cp := *l
	cp.session = session
	return &cp
}

func (l *Layered) Get(ctx context.Context, key string) (Entry, Tier, bool) {
	now := l.now()
	if l.session != nil {
		e, ok, err := l.session.Get(ctx, key)
		if err != nil {
			l.log.Warn("session tier lookup failed; treating as miss", "key", key, "error", err)
		} else if ok && !e.Expired(now) {
			return e, TierSession, true
		}
	}

	if l.process == nil {
		return Entry{}, TierNone, false
	}
	e, ok, err := l.process.Get(ctx, key)
	if err != nil {
		l.log.Warn("process tier lookup failed; treating as miss", "key", key, "error", err)
		return Entry{}, TierNone, false
	}
	if !ok || e.Expired(now) {
		return Entry{}, TierNone, false
	}
	if l.session != nil {
		if err := l.session.Put(ctx, e); err != nil {
			l.log.Warn("session tier backfill failed", "key", key, "error", err)
		}
	}
	return e, TierProcess, true
}

func (l *Layered) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	e := Entry{Key: key, Payload: payload, CreatedAt: l.now(), TTL: ttl}
	if l.session != nil {
		if err := l.session.Put(ctx, e); err != nil {
			l.log.Warn("session tier write failed", "key", key, "error", err)
		}
	}
	if l.process != nil {
		if err := l.process.Put(ctx, e); err != nil {
			l.log.Warn("process tier write failed", "key", key, "error", err)
		}
	}
}

func (l *Layered) Invalidate(ctx context.Context, key string) bool {
	existed := false
	for _, b := range l.tiers() {
		ok, err := b.Delete(ctx, key)
		if err != nil {
			l.log.Warn("invalidate failed", "key", key, "error", err)
			continue
		}
		existed = existed || ok
	}
	return existed
}

// InvalidateAllFor removes every entry derived from ref across analysis
// types and depths. A ref without a revision covers every revision. The
// count is of distinct keys.
func (l *Layered) InvalidateAllFor(ctx context.Context, ref data.RepoRef) int {
	prefix := invalidationPrefix(ref)
	seen := make(map[string]struct{})
	for _, b := range l.tiers() {
		keys, err := b.DeletePrefix(ctx, prefix)
		if err != nil {
			l.log.Warn("invalidate by repository failed", "repo", ref.String(), "error", err)
			continue
		}
		for _, k := range keys {
			seen[k] = struct{}{}
		}
	}
	if len(seen) > 0 {
		l.log.Info("invalidated cached results", "repo", ref.String(), "count", len(seen))
	}
	return len(seen)
}

// Stats reports the process tier when its backend supports it.
func (l *Layered) Stats(ctx context.Context) (Stats, bool, error) {
	sr, ok := l.process.(StatsReporter)
	if !ok {
		return Stats{}, false, nil
	}
	st, err := sr.Stats(ctx)
	return st, true, err
}

func (l *Layered) tiers() []Backend {
	var out []Backend
	if l.session != nil {
		out = append(out, l.session)
	}
	if l.process != nil {
		out = append(out, l.process)
	}
	return out
}
