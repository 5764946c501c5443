package data

import (
	"fmt"
	"net/url"
	"strings"
)

// HeadRevision is the key-space name for "default branch head".
const HeadRevision = "HEAD"

// RepoRef identifies a repository at a revision. The zero Revision means the
// default branch head.
type RepoRef struct {
	Owner    string `json:"owner"`
	Name     string `json:"name"`
	Revision string `json:"revision,omitempty"`
}

// Normalized lowercases owner and name and maps an empty revision to HEAD.
// Revisions are case-sensitive (branch names) and kept as-is.
func (r RepoRef) Normalized() RepoRef {
	rev := strings.TrimSpace(r.Revision)
	if rev == "" {
		rev = HeadRevision
	}
	return RepoRef{
		Owner:    strings.ToLower(strings.TrimSpace(r.Owner)),
		Name:     strings.ToLower(strings.TrimSpace(r.Name)),
		Revision: rev,
	}
}

// FullName returns owner/name as given.
func (r RepoRef) FullName() string {
	return r.Owner + "/" + r.Name
}

func (r RepoRef) String() string {
	if r.Revision == "" || r.Revision == HeadRevision {
		return r.FullName()
	}
	return r.FullName() + "@" + r.Revision
}

func (r RepoRef) Validate() error {
	if strings.TrimSpace(r.Owner) == "" || strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("repository owner and name are required")
	}
	if strings.ContainsAny(r.Owner+r.Name, " /\t\n") {
		return fmt.Errorf("invalid repository %q", r.FullName())
	}
	return nil
}

// ParseRepoRef accepts OWNER/NAME, OWNER/NAME@REV and GitHub URLs such as
// https://github.com/OWNER/NAME or https://github.com/OWNER/NAME/tree/REV.
func ParseRepoRef(raw string) (RepoRef, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return RepoRef{}, fmt.Errorf("empty repository reference")
	}

	if strings.HasPrefix(raw, "github.com/") || strings.HasPrefix(raw, "www.github.com/") {
		raw = "https://" + raw
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		u, err := url.Parse(raw)
		if err != nil {
			return RepoRef{}, fmt.Errorf("invalid repository URL %q", raw)
		}
		host := strings.ToLower(u.Hostname())
		if host != "github.com" && host != "www.github.com" {
			return RepoRef{}, fmt.Errorf("unsupported repository host %q", host)
		}
		parts := strings.FieldsFunc(strings.Trim(u.Path, "/"), func(r rune) bool { return r == '/' })
		if len(parts) < 2 {
			return RepoRef{}, fmt.Errorf("invalid repository URL %q", raw)
		}
		ref := RepoRef{Owner: parts[0], Name: strings.TrimSuffix(parts[1], ".git")}
		if len(parts) >= 4 && (parts[2] == "tree" || parts[2] == "commit") {
			ref.Revision = strings.Join(parts[3:], "/")
		}
		return ref, ref.Validate()
	}

	spec, rev, _ := strings.Cut(raw, "@")
	owner, name, ok := strings.Cut(spec, "/")
	if !ok {
		return RepoRef{}, fmt.Errorf("invalid repository %q: expected OWNER/NAME", raw)
	}
	ref := RepoRef{Owner: owner, Name: name, Revision: rev}
	if err := ref.Validate(); err != nil {
		return RepoRef{}, err
	}
	return ref, nil
}
