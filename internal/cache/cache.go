// Package cache stores computed answers under deterministic keys in two
// tiers: a per-session tier consulted first and a process-wide tier shared by
// all requests.
package cache

import (
	"context"
	"errors"
	"time"

	"reposcope/internal/data"
	"reposcope/internal/intent"
)

// ErrUnavailable marks a backend that cannot serve requests. Store callers
// never see it; lookups degrade to a miss.
var ErrUnavailable = errors.New("cache unavailable")

// Tier names where a hit came from.
type Tier string

const (
	TierNone    Tier = ""
	TierSession Tier = "session"
	TierProcess Tier = "process"
)

// Entry is one cached payload. It is never returned once now > CreatedAt+TTL.
type Entry struct {
	Key       string
	Payload   []byte
	CreatedAt time.Time
	TTL       time.Duration
}

func (e Entry) ExpiresAt() time.Time { return e.CreatedAt.Add(e.TTL) }

func (e Entry) Expired(now time.Time) bool { return now.After(e.ExpiresAt()) }

func (e Entry) Age(now time.Time) time.Duration {
	if now.Before(e.CreatedAt) {
		return 0
	}
	return now.Sub(e.CreatedAt)
}

func (e Entry) clone() Entry {
	if e.Payload != nil {
		e.Payload = append([]byte(nil), e.Payload...)
	}
	return e
}

// Backend is one storage tier. Implementations evict expired entries when a
// lookup finds them and never sweep in the background.
type Backend interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Put(ctx context.Context, e Entry) error
	Delete(ctx context.Context, key string) (bool, error)
	// DeletePrefix removes every key starting with prefix and returns them.
	DeletePrefix(ctx context.Context, prefix string) ([]string, error)
}

// Stats is a point-in-time view of a backend.
type Stats struct {
	Entries int `json:"entries"`
	Expired int `json:"expired"`
}

// StatsReporter is implemented by backends that can count their entries.
type StatsReporter interface {
	Stats(ctx context.Context) (Stats, error)
}

// Store is the cache surface the engine and router depend on.
type Store interface {
	Get(ctx context.Context, key string) (Entry, Tier, bool)
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration)
	Invalidate(ctx context.Context, key string) bool
	InvalidateAllFor(ctx context.Context, ref data.RepoRef) int
}

const keyNamespace = "reposcope:v1:"

// Key derives the cache key for a result. Equal inputs give equal keys;
// owner and name are case-insensitive.
func Key(ref data.RepoRef, analysisType string, depth intent.Depth) string {
	return RepoPrefix(ref) + analysisType + ":" + string(depth)
}

// RepoPrefix is the key prefix shared by every result derived from ref.
func RepoPrefix(ref data.RepoRef) string {
	n := ref.Normalized()
	return keyNamespace + n.Owner + "/" + n.Name + "@" + n.Revision + ":"
}

// invalidationPrefix is what InvalidateAllFor deletes: the ref's revision,
// or every revision when ref has none.
func invalidationPrefix(ref data.RepoRef) string {
	if ref.Revision == "" {
		return repoWidePrefix(ref)
	}
	return RepoPrefix(ref)
}

// repoWidePrefix covers every revision of the repository.
func repoWidePrefix(ref data.RepoRef) string {
	n := ref.Normalized()
	return keyNamespace + n.Owner + "/" + n.Name + "@"
}
