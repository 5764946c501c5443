package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type GraphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type GraphQLError struct {
	Message string `json:"message"`
}

type GraphQLResponse[T any] struct {
	Data   T              `json:"data"`
	Errors []GraphQLError `json:"errors"`
}

// graphqlEndpoint derives the GraphQL URL from the REST base:
// api.github.com/ -> api.github.com/graphql, HOST/api/v3/ -> HOST/api/graphql.
func graphqlEndpoint(base *url.URL) (*url.URL, error) {
	if base == nil {
		return nil, fmt.Errorf("graphql: base url is nil")
	}
	u := *base
	u.RawQuery = ""
	u.Fragment = ""

	path := strings.TrimSuffix(u.Path, "/")
	switch {
	case strings.HasSuffix(path, "/api/v3"):
		u.Path = strings.TrimSuffix(path, "/v3") + "/graphql"
	case path == "":
		u.Path = "/graphql"
	default:
		u.Path = path + "/graphql"
	}
	return &u, nil
}

// DoGraphQL POSTs req through the client's transport. Budget accounting is
// the caller's job.
func DoGraphQL[T any](ctx context.Context, c *Client, req GraphQLRequest) (T, *http.Response, error) {
	var zero T
	if ctx == nil {
		return zero, nil, fmt.Errorf("graphql: ctx is nil")
	}
	if c == nil || c.Client == nil || c.HTTP == nil {
		return zero, nil, fmt.Errorf("graphql: client is nil")
	}

	endpoint, err := graphqlEndpoint(c.Client.BaseURL)
	if err != nil {
		return zero, nil, err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return zero, nil, fmt.Errorf("graphql: marshal request: %w", err)
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return zero, nil, fmt.Errorf("graphql: build request: %w", err)
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("Accept", "application/json")

	hresp, err := c.HTTP.Do(hreq)
	if err != nil {
		return zero, nil, fmt.Errorf("graphql: do request: %w", err)
	}
	defer hresp.Body.Close()

	if hresp.StatusCode < 200 || hresp.StatusCode >= 300 {
		return zero, hresp, fmt.Errorf("graphql: http %d", hresp.StatusCode)
	}

	var out GraphQLResponse[T]
	if err := json.NewDecoder(hresp.Body).Decode(&out); err != nil {
		return zero, hresp, fmt.Errorf("graphql: decode response: %w", err)
	}
	if len(out.Errors) > 0 {
		return zero, hresp, fmt.Errorf("graphql: %s", out.Errors[0].Message)
	}
	return out.Data, hresp, nil
}

const activityCountsQuery = `query($owner: String!, $name: String!, $since: GitTimestamp!) {
  repository(owner: $owner, name: $name) {
    issues(states: OPEN) { totalCount }
    pullRequests(states: OPEN) { totalCount }
    defaultBranchRef {
      target {
        ... on Commit { history(since: $since) { totalCount } }
      }
    }
  }
}`

// ActivityCounts are totals the REST API only exposes through pagination.
type ActivityCounts struct {
	OpenIssues   int
	OpenPRs      int
	CommitsSince int
}

type activityCountsData struct {
	Repository *struct {
		Issues           struct{ TotalCount int } `json:"issues"`
		PullRequests     struct{ TotalCount int } `json:"pullRequests"`
		DefaultBranchRef *struct {
			Target struct {
				History *struct{ TotalCount int } `json:"history"`
			} `json:"target"`
		} `json:"defaultBranchRef"`
	} `json:"repository"`
}

// FetchActivityCounts returns open issue/PR totals and the number of commits
// on the default branch since the given time.
func FetchActivityCounts(ctx context.Context, c *Client, owner, name string, since time.Time) (ActivityCounts, *http.Response, error) {
	d, resp, err := DoGraphQL[activityCountsData](ctx, c, GraphQLRequest{
		Query: activityCountsQuery,
		Variables: map[string]any{
			"owner": owner,
			"name":  name,
			"since": since.UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return ActivityCounts{}, resp, err
	}
	if d.Repository == nil {
		return ActivityCounts{}, resp, fmt.Errorf("graphql: repository %s/%s not found", owner, name)
	}
	out := ActivityCounts{
		OpenIssues: d.Repository.Issues.TotalCount,
		OpenPRs:    d.Repository.PullRequests.TotalCount,
	}
	if ref := d.Repository.DefaultBranchRef; ref != nil && ref.Target.History != nil {
		out.CommitsSince = ref.Target.History.TotalCount
	}
	return out, resp, nil
}
