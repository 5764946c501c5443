// Package snapshot assembles the repository data a pipeline run works on.
package snapshot

import (
	"context"
	"errors"
	"time"

	"reposcope/internal/data"
	"reposcope/internal/data/models"
)

// ErrRepoNotFound is returned when the repository or revision does not
// exist or is not visible to the token. It is never worth retrying.
var ErrRepoNotFound = errors.New("repository not found")

// Snapshot is an immutable view of one repository at one commit. Optional
// parts are nil when they could not be fetched; Missing says why.
type Snapshot struct {
	Ref       data.RepoRef           `json:"ref"`
	SHA       string                 `json:"sha"`
	FetchedAt time.Time              `json:"fetched_at"`
	OK        bool                   `json:"ok"`
	Metadata  *models.RepoMetadata   `json:"metadata,omitempty"`
	Readme    *models.Readme         `json:"readme,omitempty"`
	Tree      *models.Tree           `json:"tree,omitempty"`
	Activity  *models.Activity       `json:"activity,omitempty"`
	Manifests *models.Manifests      `json:"manifests,omitempty"`
	Alerts    *models.SecurityAlerts `json:"security_alerts,omitempty"`

	// Missing maps optional dependency keys that failed to a presentable
	// error message.
	Missing map[data.DependencyKey]string `json:"missing,omitempty"`
}

// Options tune what is fetched.
type Options struct {
	// ActivityWindowDays is the trailing commit window. Zero means 90.
	ActivityWindowDays int
}

// Fetcher produces snapshots. The pipeline calls it from fetch_snapshot.
type Fetcher interface {
	Fetch(ctx context.Context, ref data.RepoRef, opts Options) (*Snapshot, error)
}

// ReadmeText returns the README content or "".
func (s *Snapshot) ReadmeText() string {
	if s == nil || s.Readme == nil {
		return ""
	}
	return s.Readme.Content
}

// FullName prefers the canonical name GitHub reported.
func (s *Snapshot) FullName() string {
	if s == nil {
		return ""
	}
	if s.Metadata != nil && s.Metadata.FullName != "" {
		return s.Metadata.FullName
	}
	return s.Ref.FullName()
}

// HTMLURL is the repository web URL, or "" when metadata is absent.
func (s *Snapshot) HTMLURL() string {
	if s == nil || s.Metadata == nil {
		return ""
	}
	return s.Metadata.HTMLURL
}

// BlobURL links a path at the snapshot's commit.
func (s *Snapshot) BlobURL(path string) string {
	base := s.HTMLURL()
	if base == "" {
		return ""
	}
	rev := s.SHA
	if rev == "" {
		rev = data.HeadRevision
	}
	return base + "/blob/" + rev + "/" + path
}

// Clone returns a copy that can be handed to a concurrent stage. The models
// are copied one level deep; their slices are shared and must be treated as
// read-only.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Metadata = clonePtr(s.Metadata)
	cp.Readme = clonePtr(s.Readme)
	cp.Tree = clonePtr(s.Tree)
	cp.Activity = clonePtr(s.Activity)
	cp.Manifests = clonePtr(s.Manifests)
	cp.Alerts = clonePtr(s.Alerts)
	if s.Missing != nil {
		cp.Missing = make(map[data.DependencyKey]string, len(s.Missing))
		for k, v := range s.Missing {
			cp.Missing[k] = v
		}
	}
	return &cp
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
