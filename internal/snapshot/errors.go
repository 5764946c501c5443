package snapshot

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v81/github"

	"reposcope/internal/data"
)

// Disposition says whether a fetch error degrades the answer or is an
// expected gap.
type Disposition int

const (
	DispositionError Disposition = iota
	DispositionSkip
)

// Presentation is a fetch error rendered for users.
type Presentation struct {
	Disposition Disposition
	Message     string
}

// isSkippable reports keys whose 403/404 means "not available to this
// token", not a failure.
func isSkippable(key data.DependencyKey) bool {
	switch key {
	case data.DepRepoSecurityAlerts, data.DepRepoManifests, data.DepRepoReadme:
		return true
	default:
		return false
	}
}

// PresentError renders err without leaking request URLs unless verbose.
func PresentError(key data.DependencyKey, err error, verbose bool) Presentation {
	if err == nil {
		return Presentation{Disposition: DispositionError, Message: "unknown error"}
	}

	full := err.Error()

	// Prefer structured GitHub error types to avoid leaking full request URLs.
	var er *github.ErrorResponse
	if errors.As(err, &er) {
		msg := strings.TrimSpace(er.Message)
		if er.Response != nil && isSkippable(key) {
			switch er.Response.StatusCode {
			case http.StatusForbidden, http.StatusNotFound:
				if msg == "" {
					msg = "GitHub API request forbidden"
				}
				return Presentation{Disposition: DispositionSkip, Message: msg}
			}
		}

		if verbose {
			return Presentation{Disposition: DispositionError, Message: full}
		}

		status := ""
		if er.Response != nil {
			status = fmt.Sprintf("%d %s", er.Response.StatusCode, http.StatusText(er.Response.StatusCode))
		}
		if msg == "" {
			msg = "GitHub API request failed"
		}
		if status != "" {
			return Presentation{Disposition: DispositionError, Message: fmt.Sprintf("GitHub API request failed (%s): %s", status, msg)}
		}
		return Presentation{Disposition: DispositionError, Message: fmt.Sprintf("GitHub API request failed: %s", msg)}
	}

	s := strings.TrimSpace(full)
	if verbose {
		return Presentation{Disposition: DispositionError, Message: full}
	}
	if scrubbed := scrubGitHubRequestFromErrorString(s); scrubbed != "" {
		return Presentation{Disposition: DispositionError, Message: scrubbed}
	}
	return Presentation{Disposition: DispositionError, Message: s}
}

// ScrubError is PresentError's non-verbose message for an arbitrary error.
func ScrubError(err error) string {
	if err == nil {
		return ""
	}
	return PresentError("", err, false).Message
}

func scrubGitHubRequestFromErrorString(s string) string {
	// go-github formats errors as:
	//   GET https://api.github.com/...: 403 Some message. [..]
	methods := []string{"GET ", "POST ", "PUT ", "PATCH ", "DELETE "}
	for _, m := range methods {
		idx := strings.Index(s, m)
		if idx < 0 {
			continue
		}
		prefix := s[:idx]
		rest := s[idx:]
		if i := strings.Index(rest, "://"); i >= 0 {
			if j := strings.Index(rest[i:], ": "); j >= 0 {
				return prefix + strings.TrimSpace(rest[i+j+2:])
			}
		}
		if j := strings.Index(rest, ": "); j >= 0 {
			return prefix + strings.TrimSpace(rest[j+2:])
		}
		break
	}
	return ""
}
