package models

import "time"

// RepoMetadata is the subset of the GitHub repository object analyzers use.
type RepoMetadata struct {
	FullName      string    `json:"full_name"`
	Description   string    `json:"description,omitempty"`
	HTMLURL       string    `json:"html_url"`
	DefaultBranch string    `json:"default_branch"`
	Language      string    `json:"language,omitempty"`
	Topics        []string  `json:"topics,omitempty"`
	License       string    `json:"license,omitempty"`
	Stars         int       `json:"stars"`
	Forks         int       `json:"forks"`
	OpenIssues    int       `json:"open_issues"`
	Archived      bool      `json:"archived"`
	Fork          bool      `json:"fork"`
	PushedAt      time.Time `json:"pushed_at"`
}

// Revision is a requested ref resolved to a commit.
type Revision struct {
	Requested string `json:"requested"`
	SHA       string `json:"sha"`
}
