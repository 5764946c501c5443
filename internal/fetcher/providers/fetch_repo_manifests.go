package providers

import (
	"context"

	"reposcope/internal/data"
	"reposcope/internal/data/models"
	"reposcope/internal/fetcher"

	"github.com/google/go-github/v81/github"
)

// rootManifests lists the manifests read from the repository root, in
// output order.
var rootManifests = []struct {
	path      string
	ecosystem models.Ecosystem
}{
	{"go.mod", models.EcosystemGo},
	{"package.json", models.EcosystemNPM},
	{"Cargo.toml", models.EcosystemCargo},
	{"pyproject.toml", models.EcosystemPyPI},
	{"requirements.txt", models.EcosystemPyPI},
}

type repoManifestsFetcher struct{}

func (m *repoManifestsFetcher) Key() data.DependencyKey { return data.DepRepoManifests }

func (m *repoManifestsFetcher) Scope() data.FetchScope { return data.ScopeRevision }

func (m *repoManifestsFetcher) Fetch(ctx context.Context, ref data.RepoRef, _ map[string]string, f *fetcher.Fetcher) (any, error) {
	val, err := f.Fetch(ctx, ref, data.DepRepoTree, nil)
	if err != nil {
		return nil, err
	}
	tree, _ := val.(*models.Tree)
	sha, err := resolveSHA(ctx, ref, f)
	if err != nil {
		return nil, err
	}

	out := &models.Manifests{}
	for _, mf := range rootManifests {
		if !tree.Has(mf.path) {
			continue
		}
		if err := f.Budget().Acquire(ctx, 1); err != nil {
			return nil, err
		}
		file, _, resp, err := f.Client().Client.Repositories.GetContents(ctx, ref.Owner, ref.Name, mf.path, &github.RepositoryContentGetOptions{Ref: sha})
		observe(f, resp)
		if err != nil {
			if isNotFound(resp) {
				continue
			}
			return nil, err
		}
		if file == nil {
			continue
		}
		content, err := file.GetContent()
		if err != nil {
			return nil, err
		}
		out.Files = append(out.Files, models.ManifestFile{
			Path:      file.GetPath(),
			Ecosystem: mf.ecosystem,
			HTMLURL:   file.GetHTMLURL(),
			Content:   content,
		})
	}
	return out, nil
}

func init() {
	fetcher.RegisterDataFetcher(&repoManifestsFetcher{})
}
