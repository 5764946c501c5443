package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"reposcope/internal/data"
	gh "reposcope/internal/github"
	"reposcope/internal/logging"
)

// DefaultMemoTTL bounds how long a fetched value is shared between requests
// before GitHub is asked again.
const DefaultMemoTTL = 2 * time.Minute

// Fetcher resolves dependency keys for a repository through registered
// DataFetchers. Concurrent identical fetches share one call and results are
// memoized briefly.
type Fetcher struct {
	client *gh.Client
	budget *RequestBudget
	group  singleflight.Group
	memo   *memo
	log    *slog.Logger
}

type fetchChainKey struct{}

type Option func(*Fetcher)

// WithMemoTTL overrides DefaultMemoTTL. Zero disables memoization.
func WithMemoTTL(ttl time.Duration) Option {
	return func(f *Fetcher) { f.memo = newMemo(ttl) }
}

func NewFetcher(client *gh.Client, budget *RequestBudget, opts ...Option) *Fetcher {
	f := &Fetcher{
		client: client,
		budget: budget,
		memo:   newMemo(DefaultMemoTTL),
		log:    logging.New("fetcher"),
	}
	for _, apply := range opts {
		apply(f)
	}
	return f
}

func (f *Fetcher) Budget() *RequestBudget {
	return f.budget
}

func (f *Fetcher) Client() *gh.Client {
	return f.client
}

// Forget drops every memoized value for the repository, all revisions.
func (f *Fetcher) Forget(ref data.RepoRef) int {
	n := ref.Normalized()
	return f.memo.forgetPrefix(n.Owner + "/" + n.Name + "@")
}

func (f *Fetcher) Fetch(ctx context.Context, ref data.RepoRef, key data.DependencyKey, params map[string]string) (any, error) {
	if ctx == nil {
		return nil, fmt.Errorf("Fetch: nil context")
	}
	if f == nil {
		return nil, fmt.Errorf("Fetch: nil Fetcher")
	}
	if f.client == nil || f.client.Client == nil {
		return nil, fmt.Errorf("Fetch: nil GitHub client (use NewFetcher)")
	}
	if f.budget == nil {
		return nil, fmt.Errorf("Fetch: nil request budget (use NewFetcher)")
	}
	if key == "" {
		return nil, fmt.Errorf("Fetch: empty dependency key")
	}
	if err := ref.Validate(); err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}

	impl, ok := ResolveDataFetcher(key)
	if !ok {
		return nil, fmt.Errorf("unsupported dependency key: %s", key)
	}

	flightKey, err := makeFlightKey(ref, impl.Scope(), key, params)
	if err != nil {
		return nil, err
	}

	ctx, err = withFetchChain(ctx, flightKey)
	if err != nil {
		return nil, err
	}

	if val, ok := f.memo.get(flightKey); ok {
		return val, nil
	}

	val, err, shared := f.group.Do(flightKey, func() (any, error) {
		return impl.Fetch(ctx, ref, params, f)
	})
	if err != nil {
		f.log.Debug("fetch failed", "key", flightKey, "error", err)
		return nil, err
	}
	if shared {
		f.log.Debug("fetch shared", "key", flightKey)
	}
	f.memo.set(flightKey, val)
	return val, nil
}

func withFetchChain(ctx context.Context, flightKey string) (context.Context, error) {
	chain := getFetchChain(ctx)
	for _, existing := range chain {
		if existing == flightKey {
			return nil, fmt.Errorf("Fetch: dependency cycle detected: %s -> %s", strings.Join(chain, " -> "), flightKey)
		}
	}

	updated := make([]string, 0, len(chain)+1)
	updated = append(updated, chain...)
	updated = append(updated, flightKey)
	return context.WithValue(ctx, fetchChainKey{}, updated), nil
}

func getFetchChain(ctx context.Context) []string {
	chain, _ := ctx.Value(fetchChainKey{}).([]string)
	return chain
}

func makeFlightKey(ref data.RepoRef, scope data.FetchScope, key data.DependencyKey, params map[string]string) (string, error) {
	n := ref.Normalized()
	var prefix string
	switch scope {
	case data.ScopeRevision:
		prefix = n.Owner + "/" + n.Name + "@" + n.Revision
	case data.ScopeRepo:
		prefix = n.Owner + "/" + n.Name + "@*"
	default:
		return "", fmt.Errorf("Fetch: unknown fetch scope %q for dependency: %s", scope, key)
	}
	return prefix + ":" + string(key) + ":" + stableParamsKey(params), nil
}

func stableParamsKey(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+params[k])
	}
	return strings.Join(parts, "&")
}
