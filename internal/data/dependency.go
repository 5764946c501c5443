package data

// DependencyKey uniquely identifies one piece of GitHub data a snapshot is
// assembled from.
type DependencyKey string

// FetchScope controls how fetched values are shared between requests.
type FetchScope string

const (
	// ScopeRevision values are keyed by owner/name@revision.
	ScopeRevision FetchScope = "revision"
	// ScopeRepo values are keyed by owner/name and shared across revisions.
	ScopeRepo FetchScope = "repo"
)
