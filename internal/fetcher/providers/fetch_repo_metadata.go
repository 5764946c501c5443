package providers

import (
	"context"

	"reposcope/internal/data"
	"reposcope/internal/data/models"
	"reposcope/internal/fetcher"
)

type repoMetadataFetcher struct{}

func (r *repoMetadataFetcher) Key() data.DependencyKey { return data.DepRepoMetadata }

func (r *repoMetadataFetcher) Scope() data.FetchScope { return data.ScopeRepo }

func (r *repoMetadataFetcher) Fetch(ctx context.Context, ref data.RepoRef, _ map[string]string, f *fetcher.Fetcher) (any, error) {
	if err := f.Budget().Acquire(ctx, 1); err != nil {
		return nil, err
	}

	repo, resp, err := f.Client().Client.Repositories.Get(ctx, ref.Owner, ref.Name)
	observe(f, resp)
	if err != nil {
		return nil, err
	}

	md := &models.RepoMetadata{
		FullName:      repo.GetFullName(),
		Description:   repo.GetDescription(),
		HTMLURL:       repo.GetHTMLURL(),
		DefaultBranch: repo.GetDefaultBranch(),
		Language:      repo.GetLanguage(),
		Topics:        append([]string(nil), repo.Topics...),
		Stars:         repo.GetStargazersCount(),
		Forks:         repo.GetForksCount(),
		OpenIssues:    repo.GetOpenIssuesCount(),
		Archived:      repo.GetArchived(),
		Fork:          repo.GetFork(),
		PushedAt:      repo.GetPushedAt().Time,
	}
	if lic := repo.GetLicense(); lic != nil {
		md.License = lic.GetSPDXID()
		if md.License == "" || md.License == "NOASSERTION" {
			md.License = lic.GetName()
		}
	}
	return md, nil
}

func init() {
	fetcher.RegisterDataFetcher(&repoMetadataFetcher{})
}
