package snapshot

import (
	"errors"
	"net/http"
	"testing"

	"github.com/google/go-github/v81/github"

	"reposcope/internal/data"
)

func TestPresentError_Forbidden_SecurityAlerts_IsSkippableAndPreservesMessage(t *testing.T) {
	msg := "Resource not accessible by integration"
	err := &github.ErrorResponse{
		Response: &http.Response{StatusCode: 403, Status: "403 Forbidden"},
		Message:  msg,
	}

	pres := PresentError(data.DepRepoSecurityAlerts, err, false)
	if pres.Disposition != DispositionSkip {
		t.Fatalf("expected skippable disposition, got %v", pres.Disposition)
	}
	if pres.Message != msg {
		t.Fatalf("expected message %q, got %q", msg, pres.Message)
	}
}

func TestPresentError_Forbidden_Metadata_IsHardError(t *testing.T) {
	err := &github.ErrorResponse{
		Response: &http.Response{StatusCode: 403, Status: "403 Forbidden"},
		Message:  "Resource not accessible by integration",
	}

	pres := PresentError(data.DepRepoMetadata, err, false)
	if pres.Disposition != DispositionError {
		t.Fatalf("expected hard error disposition, got %v", pres.Disposition)
	}
	if want := "GitHub API request failed (403 Forbidden): Resource not accessible by integration"; pres.Message != want {
		t.Fatalf("expected %q, got %q", want, pres.Message)
	}
}

func TestPresentError_VerboseKeepsFullText(t *testing.T) {
	err := errors.New("GET https://api.github.com/repos/acme/foo: 500 boom []")
	if got := PresentError(data.DepRepoTree, err, true).Message; got != err.Error() {
		t.Fatalf("expected full text, got %q", got)
	}
}

func TestScrubGitHubRequestFromErrorString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "GET https://api.github.com/repos/acme/foo/git/trees/abc: 403 some message []", want: "403 some message []"},
		{in: "fetch repo.tree: GET https://api.github.com/repos/acme/foo: 502 Bad Gateway []", want: "fetch repo.tree: 502 Bad Gateway []"},
		{in: "connection refused", want: ""},
	}
	for _, tt := range tests {
		if got := scrubGitHubRequestFromErrorString(tt.in); got != tt.want {
			t.Errorf("scrub(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := ScrubError(errors.New("connection refused")); got != "connection refused" {
		t.Errorf("ScrubError passthrough = %q", got)
	}
}
