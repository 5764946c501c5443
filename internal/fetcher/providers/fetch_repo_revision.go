package providers

import (
	"context"
	"fmt"

	"reposcope/internal/data"
	"reposcope/internal/data/models"
	"reposcope/internal/fetcher"
)

type repoRevisionFetcher struct{}

func (r *repoRevisionFetcher) Key() data.DependencyKey { return data.DepRepoRevision }

func (r *repoRevisionFetcher) Scope() data.FetchScope { return data.ScopeRevision }

func (r *repoRevisionFetcher) Fetch(ctx context.Context, ref data.RepoRef, _ map[string]string, f *fetcher.Fetcher) (any, error) {
	requested := ref.Normalized().Revision
	target := requested
	if requested == data.HeadRevision {
		md, err := fetchMetadata(ctx, ref, f)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve default branch: %w", err)
		}
		if md.DefaultBranch == "" {
			return nil, fmt.Errorf("failed to resolve default branch: empty default branch")
		}
		target = md.DefaultBranch
	}

	if err := f.Budget().Acquire(ctx, 1); err != nil {
		return nil, err
	}
	sha, resp, err := f.Client().Client.Repositories.GetCommitSHA1(ctx, ref.Owner, ref.Name, target, "")
	observe(f, resp)
	if err != nil {
		if isNotFound(resp) {
			return nil, fmt.Errorf("revision %q not found in %s: %w", target, ref.FullName(), err)
		}
		return nil, err
	}
	return &models.Revision{Requested: requested, SHA: sha}, nil
}

func init() {
	fetcher.RegisterDataFetcher(&repoRevisionFetcher{})
}
