package data

const (
	// DepRepoMetadata is the repository object (description, default branch,
	// counters, license).
	DepRepoMetadata DependencyKey = "repo.metadata"

	// DepRepoRevision resolves the requested revision (or the default branch
	// head) to a commit SHA.
	DepRepoRevision DependencyKey = "repo.revision"

	// DepRepoReadme is the decoded README for the resolved revision.
	DepRepoReadme DependencyKey = "repo.readme"

	// DepRepoTree is the recursive git tree for the resolved revision.
	DepRepoTree DependencyKey = "repo.tree"

	// DepRepoActivity summarizes commits in a trailing window.
	//
	// Params: "window_days".
	DepRepoActivity DependencyKey = "repo.activity"

	// DepRepoManifests holds the raw content of recognized dependency
	// manifests found at the tree root.
	DepRepoManifests DependencyKey = "repo.manifests"

	// DepRepoSecurityAlerts lists open Dependabot alerts. Unavailable (403/404)
	// is reported as a value, not an error.
	DepRepoSecurityAlerts DependencyKey = "repo.security_alerts"
)
