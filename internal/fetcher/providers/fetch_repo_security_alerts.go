package providers

import (
	"context"
	"net/http"

	"reposcope/internal/data"
	"reposcope/internal/data/models"
	"reposcope/internal/fetcher"

	"github.com/google/go-github/v81/github"
)

const alertsMaxPages = 5

type repoSecurityAlertsFetcher struct{}

func (s *repoSecurityAlertsFetcher) Key() data.DependencyKey { return data.DepRepoSecurityAlerts }

func (s *repoSecurityAlertsFetcher) Scope() data.FetchScope { return data.ScopeRepo }

func (s *repoSecurityAlertsFetcher) Fetch(ctx context.Context, ref data.RepoRef, _ map[string]string, f *fetcher.Fetcher) (any, error) {
	out := &models.SecurityAlerts{Available: true}
	after := ""
	for page := 0; page < alertsMaxPages; page++ {
		if err := f.Budget().Acquire(ctx, 1); err != nil {
			return nil, err
		}
		alerts, resp, err := f.Client().Client.Dependabot.ListRepoAlerts(ctx, ref.Owner, ref.Name, &github.ListAlertsOptions{
			State:             github.Ptr("open"),
			ListCursorOptions: github.ListCursorOptions{PerPage: 100, After: after},
		})
		observe(f, resp)
		if err != nil {
			if resp != nil && (resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusNotFound) {
				return &models.SecurityAlerts{Available: false, Reason: unavailableReason(resp.StatusCode)}, nil
			}
			return nil, err
		}
		for _, a := range alerts {
			out.Alerts = append(out.Alerts, models.SecurityAlert{
				Number:   a.GetNumber(),
				Severity: alertSeverity(a),
				Package:  a.GetDependency().GetPackage().GetName(),
				Summary:  a.GetSecurityAdvisory().GetSummary(),
				HTMLURL:  a.GetHTMLURL(),
			})
		}
		if resp == nil || resp.After == "" {
			break
		}
		after = resp.After
	}
	return out, nil
}

func alertSeverity(a *github.DependabotAlert) string {
	if sev := a.GetSecurityVulnerability().GetSeverity(); sev != "" {
		return sev
	}
	return a.GetSecurityAdvisory().GetSeverity()
}

func unavailableReason(status int) string {
	if status == http.StatusForbidden {
		return "token cannot read Dependabot alerts"
	}
	return "Dependabot alerts are disabled or the repository is not visible"
}

func init() {
	fetcher.RegisterDataFetcher(&repoSecurityAlertsFetcher{})
}
