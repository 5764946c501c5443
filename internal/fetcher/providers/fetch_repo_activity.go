package providers

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"reposcope/internal/data"
	"reposcope/internal/data/models"
	"reposcope/internal/fetcher"
	gh "reposcope/internal/github"
	"reposcope/internal/logging"

	"github.com/google/go-github/v81/github"
)

const (
	defaultActivityWindowDays = 90
	activityPerPage           = 100
	// activityMaxPages bounds the REST listing; the GraphQL total fills in
	// the commit count past the cap.
	activityMaxPages = 3
)

type repoActivityFetcher struct {
	now func() time.Time
}

func (a *repoActivityFetcher) Key() data.DependencyKey { return data.DepRepoActivity }

func (a *repoActivityFetcher) Scope() data.FetchScope { return data.ScopeRepo }

func (a *repoActivityFetcher) Fetch(ctx context.Context, ref data.RepoRef, params map[string]string, f *fetcher.Fetcher) (any, error) {
	window, err := windowDays(params)
	if err != nil {
		return nil, err
	}
	since := a.now().Add(-time.Duration(window) * 24 * time.Hour)

	out := &models.Activity{WindowDays: window}
	authors := make(map[string]struct{})

	opts := &github.CommitsListOptions{
		Since:       since,
		ListOptions: github.ListOptions{PerPage: activityPerPage},
	}
	for page := 0; page < activityMaxPages; page++ {
		if err := f.Budget().Acquire(ctx, 1); err != nil {
			return nil, err
		}
		commits, resp, err := f.Client().Client.Repositories.ListCommits(ctx, ref.Owner, ref.Name, opts)
		observe(f, resp)
		if err != nil {
			// An empty repository answers 409.
			if resp != nil && resp.StatusCode == 409 {
				return out, nil
			}
			return nil, err
		}
		for _, c := range commits {
			out.Commits++
			if login := c.GetAuthor().GetLogin(); login != "" {
				authors[login] = struct{}{}
			} else if name := c.GetCommit().GetAuthor().GetName(); name != "" {
				authors[name] = struct{}{}
			}
			if at := c.GetCommit().GetCommitter().GetDate().Time; at.After(out.LastCommitAt) {
				out.LastCommitAt = at
			}
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		if page == activityMaxPages-1 {
			out.Truncated = true
			break
		}
		opts.Page = resp.NextPage
	}
	out.Authors = len(authors)

	if err := f.Budget().Acquire(ctx, 1); err != nil {
		return nil, err
	}
	counts, httpResp, err := gh.FetchActivityCounts(ctx, f.Client(), ref.Owner, ref.Name, since)
	f.Budget().UpdateFromResponse(httpResp)
	if err != nil {
		// REST metadata counts pull requests as issues; good enough without GraphQL.
		logging.New("providers").Debug("graphql activity counts unavailable", "repo", ref.FullName(), "error", err)
		md, mdErr := fetchMetadata(ctx, ref, f)
		if mdErr != nil {
			return nil, mdErr
		}
		out.OpenIssues = md.OpenIssues
		return out, nil
	}
	out.OpenIssues = counts.OpenIssues
	out.OpenPRs = counts.OpenPRs
	if counts.CommitsSince > out.Commits {
		out.Commits = counts.CommitsSince
	}
	return out, nil
}

func windowDays(params map[string]string) (int, error) {
	raw, ok := params["window_days"]
	if !ok || raw == "" {
		return defaultActivityWindowDays, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid window_days %q", raw)
	}
	return n, nil
}

func init() {
	fetcher.RegisterDataFetcher(&repoActivityFetcher{now: time.Now})
}
