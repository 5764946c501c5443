package providers

import (
	"context"
	"fmt"
	"net/http"

	"reposcope/internal/data"
	"reposcope/internal/data/models"
	"reposcope/internal/fetcher"

	"github.com/google/go-github/v81/github"
)

// observe feeds rate-limit headers back into the budget.
func observe(f *fetcher.Fetcher, resp *github.Response) {
	if resp != nil {
		f.Budget().UpdateFromResponse(resp.Response)
	}
}

func isNotFound(resp *github.Response) bool {
	return resp != nil && resp.StatusCode == http.StatusNotFound
}

func fetchMetadata(ctx context.Context, ref data.RepoRef, f *fetcher.Fetcher) (*models.RepoMetadata, error) {
	val, err := f.Fetch(ctx, ref, data.DepRepoMetadata, nil)
	if err != nil {
		return nil, err
	}
	md, ok := val.(*models.RepoMetadata)
	if !ok {
		return nil, fmt.Errorf("unexpected type %T for %s", val, data.DepRepoMetadata)
	}
	return md, nil
}

// resolveSHA returns the commit SHA for ref's revision.
func resolveSHA(ctx context.Context, ref data.RepoRef, f *fetcher.Fetcher) (string, error) {
	val, err := f.Fetch(ctx, ref, data.DepRepoRevision, nil)
	if err != nil {
		return "", fmt.Errorf("failed to resolve revision: %w", err)
	}
	rev, ok := val.(*models.Revision)
	if !ok {
		return "", fmt.Errorf("failed to resolve revision: unexpected type %T for %s", val, data.DepRepoRevision)
	}
	if rev.SHA == "" {
		return "", fmt.Errorf("failed to resolve revision: empty sha")
	}
	return rev.SHA, nil
}
