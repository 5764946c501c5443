package models

// Readme is the README resolved for a revision. Found is false when the
// repository has none; that is not an error.
type Readme struct {
	Found   bool   `json:"found"`
	Path    string `json:"path,omitempty"`
	HTMLURL string `json:"html_url,omitempty"`
	Content string `json:"-"`
}
