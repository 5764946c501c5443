package scoring

import (
	"time"

	"reposcope/internal/data/models"
)

// Activity levels.
const (
	LevelActive   = "active"
	LevelModerate = "moderate"
	LevelLow      = "low"
	LevelInactive = "inactive"
)

// ActivityResult is the analyze_activity output.
type ActivityResult struct {
	Score      int    `json:"score"`
	Level      string `json:"level"`
	WindowDays int    `json:"window_days"`
	Commits    int    `json:"commits"`
	Authors    int    `json:"authors"`
	// DaysSinceLastCommit is -1 when no commit falls in the window.
	DaysSinceLastCommit int  `json:"days_since_last_commit"`
	OpenIssues          int  `json:"open_issues"`
	OpenPRs             int  `json:"open_pull_requests"`
	Archived            bool `json:"archived"`
}

// Activity scores commit cadence, recency and contributor spread.
func Activity(a *models.Activity, md *models.RepoMetadata, now time.Time) ActivityResult {
	out := ActivityResult{DaysSinceLastCommit: -1}
	if md != nil {
		out.Archived = md.Archived
	}
	if a == nil {
		out.Level = LevelInactive
		return out
	}
	out.WindowDays = a.WindowDays
	out.Commits = a.Commits
	out.Authors = a.Authors
	out.OpenIssues = a.OpenIssues
	out.OpenPRs = a.OpenPRs

	last := a.LastCommitAt
	if last.IsZero() && md != nil {
		last = md.PushedAt
	}
	if !last.IsZero() {
		out.DaysSinceLastCommit = int(now.Sub(last).Hours() / 24)
		if out.DaysSinceLastCommit < 0 {
			out.DaysSinceLastCommit = 0
		}
	}

	window := a.WindowDays
	if window <= 0 {
		window = 90
	}
	// Normalize to commits per 30 days so wider windows are comparable.
	perMonth := float64(a.Commits) * 30 / float64(window)

	var score float64
	switch {
	case perMonth >= 30:
		score += 50
	case perMonth >= 10:
		score += 40
	case perMonth >= 3:
		score += 28
	case perMonth >= 1:
		score += 15
	case a.Commits > 0:
		score += 8
	}

	switch d := out.DaysSinceLastCommit; {
	case d < 0:
	case d <= 7:
		score += 30
	case d <= 30:
		score += 22
	case d <= 90:
		score += 12
	case d <= 365:
		score += 5
	}

	switch {
	case a.Authors >= 10:
		score += 20
	case a.Authors >= 5:
		score += 15
	case a.Authors >= 2:
		score += 10
	case a.Authors == 1:
		score += 5
	}

	if out.Archived {
		score = score / 2
	}
	out.Score = clamp(score)

	switch {
	case out.Archived || out.DaysSinceLastCommit < 0 || out.DaysSinceLastCommit > 365:
		out.Level = LevelInactive
	case out.Score >= 70:
		out.Level = LevelActive
	case out.Score >= 40:
		out.Level = LevelModerate
	default:
		out.Level = LevelLow
	}
	return out
}
