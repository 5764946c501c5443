package models

// Ecosystem names a package ecosystem.
type Ecosystem string

const (
	EcosystemGo    Ecosystem = "go"
	EcosystemNPM   Ecosystem = "npm"
	EcosystemCargo Ecosystem = "cargo"
	EcosystemPyPI  Ecosystem = "pypi"
)

// ManifestFile is the raw content of one dependency manifest.
type ManifestFile struct {
	Path      string    `json:"path"`
	Ecosystem Ecosystem `json:"ecosystem"`
	HTMLURL   string    `json:"html_url,omitempty"`
	Content   string    `json:"-"`
}

// Manifests is the set of manifests found at the repository root.
type Manifests struct {
	Files []ManifestFile `json:"files"`
}
