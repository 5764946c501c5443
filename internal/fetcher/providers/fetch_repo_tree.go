package providers

import (
	"context"

	"reposcope/internal/data"
	"reposcope/internal/data/models"
	"reposcope/internal/fetcher"
)

type repoTreeFetcher struct{}

func (t *repoTreeFetcher) Key() data.DependencyKey { return data.DepRepoTree }

func (t *repoTreeFetcher) Scope() data.FetchScope { return data.ScopeRevision }

func (t *repoTreeFetcher) Fetch(ctx context.Context, ref data.RepoRef, _ map[string]string, f *fetcher.Fetcher) (any, error) {
	sha, err := resolveSHA(ctx, ref, f)
	if err != nil {
		return nil, err
	}

	if err := f.Budget().Acquire(ctx, 1); err != nil {
		return nil, err
	}
	tree, resp, err := f.Client().Client.Git.GetTree(ctx, ref.Owner, ref.Name, sha, true)
	observe(f, resp)
	if err != nil {
		return nil, err
	}

	out := &models.Tree{
		SHA:       tree.GetSHA(),
		Truncated: tree.GetTruncated(),
		Entries:   make([]models.TreeEntry, 0, len(tree.Entries)),
	}
	for _, e := range tree.Entries {
		if e == nil {
			continue
		}
		out.Entries = append(out.Entries, models.TreeEntry{
			Path: e.GetPath(),
			Type: e.GetType(),
			Size: e.GetSize(),
		})
	}
	return out, nil
}

func init() {
	fetcher.RegisterDataFetcher(&repoTreeFetcher{})
}
