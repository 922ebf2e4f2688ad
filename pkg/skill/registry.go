package skill

import (
	"fmt"
	"sync"

	"github.com/agentrt/core/pkg/errs"
)

// Registry discovers and holds every skill manifest found under the
// configured install paths, and enforces the draft/approved/deprecated
// lifecycle. The Skill Runner only dispatches manifests in the
// Approved state; Get still returns draft/deprecated skills so
// tooling can inspect and re-approve them.
type Registry struct {
	mu     sync.RWMutex
	skills map[string]*Manifest
	loader *Loader
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		skills: make(map[string]*Manifest),
		loader: NewLoader(),
	}
}

// Load discovers every skill.yaml under installPaths, in order.
func (r *Registry) Load(installPaths []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loader.LoadPaths(installPaths, r.skills)
}

// Get returns a manifest by name regardless of lifecycle state.
func (r *Registry) Get(name string) (*Manifest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.skills[name]
	if !ok {
		return nil, errs.New(errs.SkillNotFound, fmt.Sprintf("unknown skill %q", name))
	}
	return m, nil
}

// GetApproved returns a manifest by name, but only if it is currently
// approved; used by the Skill Runner's dispatch path.
func (r *Registry) GetApproved(name string) (*Manifest, error) {
	m, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	if !m.IsApproved() {
		return nil, errs.New(errs.SkillNotFound, fmt.Sprintf("skill %q is not approved (state: %s)", name, m.Lifecycle))
	}
	return m, nil
}

// List returns every registered manifest.
func (r *Registry) List() []*Manifest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Manifest, 0, len(r.skills))
	for _, m := range r.skills {
		out = append(out, m)
	}
	return out
}

// Transition moves name from its current lifecycle state to to. Only
// the three legal moves (draft->approved, approved->deprecated,
// deprecated->approved) are permitted.
func (r *Registry) Transition(name string, to Lifecycle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.skills[name]
	if !ok {
		return errs.New(errs.SkillNotFound, fmt.Sprintf("unknown skill %q", name))
	}
	if !CanTransition(m.Lifecycle, to) {
		return errs.New(errs.SkillManifestInvalid, fmt.Sprintf("illegal lifecycle transition for %q: %s -> %s", name, m.Lifecycle, to))
	}
	m.Lifecycle = to
	return nil
}

// Count returns the number of registered skills.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.skills)
}
