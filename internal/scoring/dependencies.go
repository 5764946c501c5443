package scoring

import (
	"errors"
	"sort"

	"reposcope/internal/data/models"
	"reposcope/internal/manifest"
)

// ErrNoParsableManifest is returned when manifests exist but none parse.
var ErrNoParsableManifest = errors.New("no parsable dependency manifest")

// DependencyResult is the parse_dependencies output.
type DependencyResult struct {
	Score      int               `json:"score"`
	Manifests  []manifest.Parsed `json:"manifests,omitempty"`
	Ecosystems []string          `json:"ecosystems,omitempty"`
	Direct     int               `json:"direct"`
	Dev        int               `json:"dev"`
	Indirect   int               `json:"indirect"`
	Unpinned   int               `json:"unpinned"`
	HasLock    bool              `json:"has_lockfile"`
	// HasUpdater is set when Dependabot or Renovate is configured.
	HasUpdater  bool     `json:"has_update_automation"`
	ParseErrors []string `json:"parse_errors,omitempty"`
}

var lockfiles = map[models.Ecosystem][]string{
	models.EcosystemGo:    {"go.sum"},
	models.EcosystemNPM:   {"package-lock.json", "yarn.lock", "pnpm-lock.yaml", "bun.lockb"},
	models.EcosystemCargo: {"Cargo.lock"},
	models.EcosystemPyPI:  {"poetry.lock", "uv.lock", "Pipfile.lock", "pdm.lock"},
}

var updaterConfigs = []string{".github/dependabot.yml", ".github/dependabot.yaml", "renovate.json", ".github/renovate.json", ".renovaterc", ".renovaterc.json"}

// Dependencies parses manifests and scores dependency hygiene. A repository
// without manifests scores a neutral 50. tree may be nil.
func Dependencies(man *models.Manifests, tree *models.Tree) (DependencyResult, error) {
	var out DependencyResult
	files := 0
	if man != nil {
		files = len(man.Files)
	}
	for _, p := range updaterConfigs {
		if tree.Has(p) {
			out.HasUpdater = true
			break
		}
	}
	if files == 0 {
		out.Score = 50
		return out, nil
	}

	ecos := make(map[models.Ecosystem]bool)
	var errs []error
	for _, f := range man.Files {
		p, err := manifest.Parse(f)
		if err != nil {
			errs = append(errs, err)
			out.ParseErrors = append(out.ParseErrors, err.Error())
			continue
		}
		out.Manifests = append(out.Manifests, p)
		ecos[p.Ecosystem] = true
		for _, d := range p.Dependencies {
			switch {
			case d.Indirect:
				out.Indirect++
			case d.Dev:
				out.Dev++
			default:
				out.Direct++
			}
			if !d.Indirect && !d.Pinned() {
				out.Unpinned++
			}
		}
	}
	if len(out.Manifests) == 0 {
		return out, errors.Join(append([]error{ErrNoParsableManifest}, errs...)...)
	}

	locked := 0
	for eco := range ecos {
		out.Ecosystems = append(out.Ecosystems, string(eco))
		for _, lf := range lockfiles[eco] {
			if tree.Has(lf) {
				locked++
				break
			}
		}
	}
	sort.Strings(out.Ecosystems)
	out.HasLock = locked == len(ecos)

	score := 60.0
	if out.HasLock {
		score += 20
	} else if declared := out.Direct + out.Dev; declared > 0 {
		// Without a lockfile, ranges resolve differently on every install.
		score -= 30 * float64(out.Unpinned) / float64(declared)
	}
	if out.HasUpdater {
		score += 20
	}
	switch {
	case out.Direct > 150:
		score -= 20
	case out.Direct > 75:
		score -= 10
	}
	if len(out.ParseErrors) > 0 {
		score -= 10
	}
	out.Score = clamp(score)
	return out, nil
}
