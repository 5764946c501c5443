package models

import "time"

// Activity summarizes commit history over a trailing window.
type Activity struct {
	WindowDays   int       `json:"window_days"`
	Commits      int       `json:"commits"`
	Authors      int       `json:"authors"`
	LastCommitAt time.Time `json:"last_commit_at,omitempty"`
	OpenIssues   int       `json:"open_issues"`
	OpenPRs      int       `json:"open_pull_requests"`
	// Truncated is set when the commit listing hit the page cap.
	Truncated bool `json:"truncated,omitempty"`
}
