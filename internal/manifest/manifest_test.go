package manifest

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"reposcope/internal/data/models"
)

func TestParse_GoMod(t *testing.T) {
	content := `module github.com/acme/widgets

go 1.22

require (
	github.com/spf13/cobra v1.8.0
	golang.org/x/sys v0.20.0 // indirect
)
`
	got, err := Parse(models.ManifestFile{Path: "go.mod", Content: content})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := Parsed{
		Path:      "go.mod",
		Ecosystem: models.EcosystemGo,
		Name:      "github.com/acme/widgets",
		Dependencies: []Dependency{
			{Name: "github.com/spf13/cobra", Version: "v1.8.0", Ecosystem: models.EcosystemGo},
			{Name: "golang.org/x/sys", Version: "v0.20.0", Ecosystem: models.EcosystemGo, Indirect: true},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("go.mod mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_PackageJSON(t *testing.T) {
	content := `{"name":"widgets","dependencies":{"react":"^18.2.0","left-pad":"1.3.0"},"devDependencies":{"jest":"29.0.0"}}`
	got, err := Parse(models.ManifestFile{Path: "package.json", Content: content})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []Dependency{
		{Name: "left-pad", Version: "1.3.0", Ecosystem: models.EcosystemNPM},
		{Name: "react", Version: "^18.2.0", Ecosystem: models.EcosystemNPM},
		{Name: "jest", Version: "29.0.0", Ecosystem: models.EcosystemNPM, Dev: true},
	}
	if diff := cmp.Diff(want, got.Dependencies); diff != "" {
		t.Fatalf("package.json mismatch (-want +got):\n%s", diff)
	}
	if got.Name != "widgets" {
		t.Fatalf("expected name widgets, got %q", got.Name)
	}
}

func TestParse_CargoToml(t *testing.T) {
	content := `[package]
name = "widgets"

[dependencies]
serde = { version = "1.0", features = ["derive"] }
log = "=0.4.20"

[dev-dependencies]
criterion = "0.5"
`
	got, err := Parse(models.ManifestFile{Path: "Cargo.toml", Content: content})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []Dependency{
		{Name: "log", Version: "=0.4.20", Ecosystem: models.EcosystemCargo},
		{Name: "serde", Version: "1.0", Ecosystem: models.EcosystemCargo},
		{Name: "criterion", Version: "0.5", Ecosystem: models.EcosystemCargo, Dev: true},
	}
	if diff := cmp.Diff(want, got.Dependencies); diff != "" {
		t.Fatalf("Cargo.toml mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_PyProject(t *testing.T) {
	content := `[project]
name = "widgets"
dependencies = ["requests[socks]>=2.31 ; python_version > '3.8'", "click"]

[project.optional-dependencies]
test = ["pytest==8.0.0"]
`
	got, err := Parse(models.ManifestFile{Path: "pyproject.toml", Content: content})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []Dependency{
		{Name: "click", Ecosystem: models.EcosystemPyPI},
		{Name: "requests", Version: ">=2.31", Ecosystem: models.EcosystemPyPI},
		{Name: "pytest", Version: "==8.0.0", Ecosystem: models.EcosystemPyPI, Dev: true},
	}
	if diff := cmp.Diff(want, got.Dependencies); diff != "" {
		t.Fatalf("pyproject mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_PoetryPyProject(t *testing.T) {
	content := `[tool.poetry]
name = "widgets"

[tool.poetry.dependencies]
python = "^3.11"
httpx = "^0.27"
`
	got, err := Parse(models.ManifestFile{Path: "pyproject.toml", Content: content})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []Dependency{{Name: "httpx", Version: "^0.27", Ecosystem: models.EcosystemPyPI}}
	if diff := cmp.Diff(want, got.Dependencies); diff != "" {
		t.Fatalf("poetry mismatch (-want +got):\n%s", diff)
	}
	if got.Name != "widgets" {
		t.Fatalf("expected poetry name, got %q", got.Name)
	}
}

func TestParse_Requirements(t *testing.T) {
	content := `# runtime
Django==5.0.1
requests >= 2.0  # http
-r dev.txt
-e git+https://github.com/acme/lib.git#egg=lib

numpy
`
	got, err := Parse(models.ManifestFile{Path: "requirements.txt", Content: content})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []Dependency{
		{Name: "Django", Version: "==5.0.1", Ecosystem: models.EcosystemPyPI},
		{Name: "numpy", Ecosystem: models.EcosystemPyPI},
		{Name: "requests", Version: ">=2.0", Ecosystem: models.EcosystemPyPI},
	}
	if diff := cmp.Diff(want, got.Dependencies); diff != "" {
		t.Fatalf("requirements mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		file models.ManifestFile
		want string
	}{
		{name: "unsupported", file: models.ManifestFile{Path: "build.gradle"}, want: "unsupported manifest"},
		{name: "bad json", file: models.ManifestFile{Path: "package.json", Content: "{"}, want: "parse package.json"},
		{name: "bad toml", file: models.ManifestFile{Path: "Cargo.toml", Content: "[dependencies\n"}, want: "parse Cargo.toml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.file)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestDependency_Pinned(t *testing.T) {
	tests := []struct {
		dep  Dependency
		want bool
	}{
		{Dependency{Ecosystem: models.EcosystemGo, Version: "v1.0.0"}, true},
		{Dependency{Ecosystem: models.EcosystemNPM, Version: "1.3.0"}, true},
		{Dependency{Ecosystem: models.EcosystemNPM, Version: "^18.2.0"}, false},
		{Dependency{Ecosystem: models.EcosystemNPM, Version: "latest"}, false},
		{Dependency{Ecosystem: models.EcosystemCargo, Version: "1.0"}, false},
		{Dependency{Ecosystem: models.EcosystemCargo, Version: "=0.4.20"}, true},
		{Dependency{Ecosystem: models.EcosystemPyPI, Version: "==5.0.1"}, true},
		{Dependency{Ecosystem: models.EcosystemPyPI, Version: ">=2.0"}, false},
		{Dependency{Ecosystem: models.EcosystemPyPI}, false},
	}
	for _, tt := range tests {
		if got := tt.dep.Pinned(); got != tt.want {
			t.Errorf("%s %q Pinned() = %v, want %v", tt.dep.Ecosystem, tt.dep.Version, got, tt.want)
		}
	}
}
