// Package manifest extracts declared dependencies from package manifests.
package manifest

import (
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"golang.org/x/mod/modfile"

	"reposcope/internal/data/models"
)

// Dependency is one declared dependency.
type Dependency struct {
	Name      string           `json:"name"`
	Version   string           `json:"version,omitempty"`
	Ecosystem models.Ecosystem `json:"ecosystem"`
	// Dev marks test/build-only dependencies.
	Dev bool `json:"dev,omitempty"`
	// Indirect marks dependencies recorded only for reproducibility
	// (go.mod "// indirect").
	Indirect bool `json:"indirect,omitempty"`
}

// Pinned reports whether Version names one exact release.
func (d Dependency) Pinned() bool {
	v := strings.TrimSpace(d.Version)
	if v == "" || v == "*" || v == "latest" {
		return false
	}
	switch d.Ecosystem {
	case models.EcosystemGo:
		return true
	case models.EcosystemPyPI:
		return strings.HasPrefix(v, "==")
	case models.EcosystemCargo:
		// Bare Cargo versions are caret requirements.
		return strings.HasPrefix(v, "=")
	default:
		v = strings.TrimPrefix(v, "=")
		return v != "" && v[0] >= '0' && v[0] <= '9' && !strings.ContainsAny(v, "^~<>*|x ")
	}
}

// Parsed is the result of parsing one manifest file.
type Parsed struct {
	Path         string           `json:"path"`
	Ecosystem    models.Ecosystem `json:"ecosystem"`
	Name         string           `json:"name,omitempty"`
	Dependencies []Dependency     `json:"dependencies"`
}

// Parse dispatches on the file name.
func Parse(f models.ManifestFile) (Parsed, error) {
	content := []byte(f.Content)
	var (
		p   Parsed
		err error
	)
	switch strings.ToLower(path.Base(f.Path)) {
	case "go.mod":
		p, err = ParseGoMod(f.Path, content)
	case "package.json":
		p, err = ParsePackageJSON(content)
	case "cargo.toml":
		p, err = ParseCargoToml(content)
	case "pyproject.toml":
		p, err = ParsePyProject(content)
	case "requirements.txt":
		p, err = ParseRequirements(content)
	default:
		return Parsed{}, fmt.Errorf("unsupported manifest %q", f.Path)
	}
	if err != nil {
		return Parsed{}, fmt.Errorf("parse %s: %w", f.Path, err)
	}
	p.Path = f.Path
	sortDependencies(p.Dependencies)
	return p, nil
}

func ParseGoMod(file string, content []byte) (Parsed, error) {
	mf, err := modfile.ParseLax(file, content, nil)
	if err != nil {
		return Parsed{}, err
	}
	out := Parsed{Ecosystem: models.EcosystemGo}
	if mf.Module != nil {
		out.Name = mf.Module.Mod.Path
	}
	for _, r := range mf.Require {
		out.Dependencies = append(out.Dependencies, Dependency{
			Name:      r.Mod.Path,
			Version:   r.Mod.Version,
			Ecosystem: models.EcosystemGo,
			Indirect:  r.Indirect,
		})
	}
	return out, nil
}

func ParsePackageJSON(content []byte) (Parsed, error) {
	var pkg struct {
		Name                 string            `json:"name"`
		Dependencies         map[string]string `json:"dependencies"`
		DevDependencies      map[string]string `json:"devDependencies"`
		OptionalDependencies map[string]string `json:"optionalDependencies"`
	}
	if err := json.Unmarshal(content, &pkg); err != nil {
		return Parsed{}, err
	}
	out := Parsed{Ecosystem: models.EcosystemNPM, Name: pkg.Name}
	add := func(m map[string]string, dev bool) {
		for name, version := range m {
			out.Dependencies = append(out.Dependencies, Dependency{Name: name, Version: version, Ecosystem: models.EcosystemNPM, Dev: dev})
		}
	}
	add(pkg.Dependencies, false)
	add(pkg.OptionalDependencies, false)
	add(pkg.DevDependencies, true)
	return out, nil
}

func ParseCargoToml(content []byte) (Parsed, error) {
	var cargo struct {
		Package struct {
			Name string `toml:"name"`
		} `toml:"package"`
		Dependencies      map[string]any `toml:"dependencies"`
		DevDependencies   map[string]any `toml:"dev-dependencies"`
		BuildDependencies map[string]any `toml:"build-dependencies"`
	}
	if err := toml.Unmarshal(content, &cargo); err != nil {
		return Parsed{}, err
	}
	out := Parsed{Ecosystem: models.EcosystemCargo, Name: cargo.Package.Name}
	add := func(m map[string]any, dev bool) {
		for name, spec := range m {
			out.Dependencies = append(out.Dependencies, Dependency{Name: name, Version: tomlVersion(spec), Ecosystem: models.EcosystemCargo, Dev: dev})
		}
	}
	add(cargo.Dependencies, false)
	add(cargo.DevDependencies, true)
	add(cargo.BuildDependencies, true)
	return out, nil
}

// tomlVersion reads `dep = "1.0"` and `dep = { version = "1.0", ... }`.
func tomlVersion(spec any) string {
	switch v := spec.(type) {
	case string:
		return v
	case map[string]any:
		if s, ok := v["version"].(string); ok {
			return s
		}
	}
	return ""
}

func ParsePyProject(content []byte) (Parsed, error) {
	var py struct {
		Project struct {
			Name                 string              `toml:"name"`
			Dependencies         []string            `toml:"dependencies"`
			OptionalDependencies map[string][]string `toml:"optional-dependencies"`
		} `toml:"project"`
		Tool struct {
			Poetry struct {
				Name            string         `toml:"name"`
				Dependencies    map[string]any `toml:"dependencies"`
				DevDependencies map[string]any `toml:"dev-dependencies"`
			} `toml:"poetry"`
		} `toml:"tool"`
	}
	if err := toml.Unmarshal(content, &py); err != nil {
		return Parsed{}, err
	}
	out := Parsed{Ecosystem: models.EcosystemPyPI, Name: py.Project.Name}
	if out.Name == "" {
		out.Name = py.Tool.Poetry.Name
	}
	for _, req := range py.Project.Dependencies {
		if d, ok := parseRequirement(req); ok {
			out.Dependencies = append(out.Dependencies, d)
		}
	}
	for _, reqs := range py.Project.OptionalDependencies {
		for _, req := range reqs {
			if d, ok := parseRequirement(req); ok {
				d.Dev = true
				out.Dependencies = append(out.Dependencies, d)
			}
		}
	}
	for name, spec := range py.Tool.Poetry.Dependencies {
		if strings.EqualFold(name, "python") {
			continue
		}
		out.Dependencies = append(out.Dependencies, Dependency{Name: name, Version: tomlVersion(spec), Ecosystem: models.EcosystemPyPI})
	}
	for name, spec := range py.Tool.Poetry.DevDependencies {
		out.Dependencies = append(out.Dependencies, Dependency{Name: name, Version: tomlVersion(spec), Ecosystem: models.EcosystemPyPI, Dev: true})
	}
	return out, nil
}

// ParseRequirements reads pip requirements files. Options (-r, -e, --hash)
// and URLs are ignored.
func ParseRequirements(content []byte) (Parsed, error) {
	out := Parsed{Ecosystem: models.EcosystemPyPI}
	for _, line := range strings.Split(string(content), "\n") {
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(strings.TrimSuffix(line, "\\"))
		if line == "" || strings.HasPrefix(line, "-") || strings.Contains(line, "://") {
			continue
		}
		if d, ok := parseRequirement(line); ok {
			out.Dependencies = append(out.Dependencies, d)
		}
	}
	return out, nil
}

// parseRequirement splits a PEP 508 requirement ("requests[socks]>=2.0;
// python_version<'3.8'") into name and version specifier.
func parseRequirement(req string) (Dependency, bool) {
	req = strings.TrimSpace(req)
	if i := strings.Index(req, ";"); i >= 0 {
		req = strings.TrimSpace(req[:i])
	}
	end := strings.IndexAny(req, "<>=!~[( ")
	name, rest := req, ""
	if end >= 0 {
		name, rest = req[:end], req[end:]
	}
	if i := strings.Index(rest, "]"); strings.HasPrefix(rest, "[") && i >= 0 {
		rest = rest[i+1:]
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Dependency{}, false
	}
	version := strings.Trim(strings.TrimSpace(rest), "()")
	return Dependency{Name: name, Version: strings.ReplaceAll(version, " ", ""), Ecosystem: models.EcosystemPyPI}, true
}

func sortDependencies(deps []Dependency) {
	sort.Slice(deps, func(i, j int) bool {
		if deps[i].Dev != deps[j].Dev {
			return !deps[i].Dev
		}
		return deps[i].Name < deps[j].Name
	})
}
