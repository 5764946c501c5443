package providers

import (
	"context"

	"reposcope/internal/data"
	"reposcope/internal/data/models"
	"reposcope/internal/fetcher"

	"github.com/google/go-github/v81/github"
)

// maxReadmeBytes caps how much README text is kept for analysis.
const maxReadmeBytes = 256 << 10

type repoReadmeFetcher struct{}

func (d *repoReadmeFetcher) Key() data.DependencyKey { return data.DepRepoReadme }

func (d *repoReadmeFetcher) Scope() data.FetchScope { return data.ScopeRevision }

func (d *repoReadmeFetcher) Fetch(ctx context.Context, ref data.RepoRef, _ map[string]string, f *fetcher.Fetcher) (any, error) {
	sha, err := resolveSHA(ctx, ref, f)
	if err != nil {
		return nil, err
	}

	readme := &models.Readme{}

	if err := f.Budget().Acquire(ctx, 1); err != nil {
		return nil, err
	}
	content, resp, err := f.Client().Client.Repositories.GetReadme(ctx, ref.Owner, ref.Name, &github.RepositoryContentGetOptions{Ref: sha})
	observe(f, resp)
	if err != nil {
		if isNotFound(resp) {
			return readme, nil
		}
		return nil, err
	}
	if content == nil {
		return readme, nil
	}

	readme.Found = true
	readme.Path = content.GetPath()
	readme.HTMLURL = content.GetHTMLURL()
	text, err := content.GetContent()
	if err != nil {
		return nil, err
	}
	if len(text) > maxReadmeBytes {
		text = text[:maxReadmeBytes]
	}
	readme.Content = text
	return readme, nil
}

func init() {
	fetcher.RegisterDataFetcher(&repoReadmeFetcher{})
}
