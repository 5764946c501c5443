package analyzers

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry maps analyzer names to implementations. It is passed to the
// fan-out explicitly; there is no package-level instance.
type Registry struct {
	mu        sync.RWMutex
	analyzers map[string]Analyzer
}

func NewRegistry() *Registry {
	return &Registry{analyzers: make(map[string]Analyzer)}
}

// Register adds a. Names are unique.
func (r *Registry) Register(a Analyzer) error {
	name := a.Name()
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("analyzer name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.analyzers[name]; exists {
		return fmt.Errorf("analyzer %s already registered", name)
	}
	r.analyzers[name] = a
	return nil
}

// Replace registers a, overwriting any analyzer of the same name.
func (r *Registry) Replace(a Analyzer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.analyzers[a.Name()] = a
}

func (r *Registry) Resolve(name string) (Analyzer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.analyzers[name]
	return a, ok
}

// List returns every analyzer sorted by name.
func (r *Registry) List() []Analyzer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Analyzer, 0, len(r.analyzers))
	for _, a := range r.analyzers {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

func (r *Registry) Names() []string {
	list := r.List()
	out := make([]string, len(list))
	for i, a := range list {
		out[i] = a.Name()
	}
	return out
}

// Builtins returns a registry holding every built-in analyzer.
func Builtins() *Registry {
	r := NewRegistry()
	for _, a := range []Analyzer{
		Snapshot{}, Docs{}, Activity{}, Structure{}, Dependencies{}, Security{}, Onboarding{},
	} {
		if err := r.Register(a); err != nil {
			panic(err)
		}
	}
	return r
}
