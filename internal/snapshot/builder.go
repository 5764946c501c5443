package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/go-github/v81/github"
	"golang.org/x/sync/errgroup"

	"reposcope/internal/data"
	"reposcope/internal/data/models"
	"reposcope/internal/fetcher"
	"reposcope/internal/logging"
)

const defaultActivityWindowDays = 90

// KeyFetcher is the subset of *fetcher.Fetcher the Builder needs.
type KeyFetcher interface {
	Fetch(ctx context.Context, ref data.RepoRef, key data.DependencyKey, params map[string]string) (any, error)
}

var _ KeyFetcher = (*fetcher.Fetcher)(nil)

// Builder implements Fetcher on top of the dependency-key fetcher.
type Builder struct {
	keys    KeyFetcher
	now     func() time.Time
	verbose bool
	log     *slog.Logger
}

type BuilderOption func(*Builder)

// WithVerboseErrors keeps full GitHub error text (request URLs included) in
// Snapshot.Missing.
func WithVerboseErrors(enabled bool) BuilderOption {
	return func(b *Builder) { b.verbose = enabled }
}

func WithClock(now func() time.Time) BuilderOption {
	return func(b *Builder) { b.now = now }
}

func NewBuilder(keys KeyFetcher, opts ...BuilderOption) *Builder {
	b := &Builder{keys: keys, now: time.Now, log: logging.New("snapshot")}
	for _, apply := range opts {
		apply(b)
	}
	return b
}

// optionalKeys are fetched concurrently once the revision is known.
var optionalKeys = []data.DependencyKey{
	data.DepRepoReadme,
	data.DepRepoTree,
	data.DepRepoActivity,
	data.DepRepoManifests,
	data.DepRepoSecurityAlerts,
}

func (b *Builder) Fetch(ctx context.Context, ref data.RepoRef, opts Options) (*Snapshot, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	window := opts.ActivityWindowDays
	if window <= 0 {
		window = defaultActivityWindowDays
	}

	values := make(map[data.DependencyKey]any, len(optionalKeys)+2)
	for _, key := range []data.DependencyKey{data.DepRepoMetadata, data.DepRepoRevision} {
		val, err := b.keys.Fetch(ctx, ref, key, nil)
		if err != nil {
			if isNotFound(err) {
				return nil, fmt.Errorf("%w: %s: %s", ErrRepoNotFound, ref, PresentError(key, err, b.verbose).Message)
			}
			return nil, fmt.Errorf("fetch %s: %w", key, err)
		}
		values[key] = val
	}

	var (
		mu      sync.Mutex
		missing = make(map[data.DependencyKey]string)
		g       errgroup.Group
	)
	for _, key := range optionalKeys {
		var params map[string]string
		if key == data.DepRepoActivity {
			params = map[string]string{"window_days": strconv.Itoa(window)}
		}
		g.Go(func() error {
			val, err := b.keys.Fetch(ctx, ref, key, params)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				p := PresentError(key, err, b.verbose)
				missing[key] = p.Message
				if p.Disposition == DispositionSkip {
					b.log.Debug("optional dependency skipped", "repo", ref.String(), "key", key, "reason", p.Message)
				} else {
					b.log.Warn("optional dependency failed", "repo", ref.String(), "key", key, "error", p.Message)
				}
				return nil
			}
			values[key] = val
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap, err := assemble(ref, data.NewMapDataContext(values))
	if err != nil {
		return nil, err
	}
	snap.FetchedAt = b.now()
	if len(missing) > 0 {
		snap.Missing = missing
	}
	return snap, nil
}

// assemble builds a Snapshot from fetched values. A value of an unexpected
// type is an error, never a silent absence.
func assemble(ref data.RepoRef, dc data.DataContext) (*Snapshot, error) {
	snap := &Snapshot{Ref: ref}

	md, okMD, err := data.Lookup[*models.RepoMetadata](dc, data.DepRepoMetadata)
	if err != nil {
		return nil, err
	}
	rev, okRev, err := data.Lookup[*models.Revision](dc, data.DepRepoRevision)
	if err != nil {
		return nil, err
	}
	snap.Metadata = md
	if okRev {
		snap.SHA = rev.SHA
	}
	snap.OK = okMD && okRev && snap.SHA != ""

	if snap.Readme, _, err = data.Lookup[*models.Readme](dc, data.DepRepoReadme); err != nil {
		return nil, err
	}
	if snap.Tree, _, err = data.Lookup[*models.Tree](dc, data.DepRepoTree); err != nil {
		return nil, err
	}
	if snap.Activity, _, err = data.Lookup[*models.Activity](dc, data.DepRepoActivity); err != nil {
		return nil, err
	}
	if snap.Manifests, _, err = data.Lookup[*models.Manifests](dc, data.DepRepoManifests); err != nil {
		return nil, err
	}
	if snap.Alerts, _, err = data.Lookup[*models.SecurityAlerts](dc, data.DepRepoSecurityAlerts); err != nil {
		return nil, err
	}
	return snap, nil
}

func isNotFound(err error) bool {
	var er *github.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		return er.Response.StatusCode == http.StatusNotFound
	}
	return false
}
