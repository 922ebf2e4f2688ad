package tool

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/agentrt/core/pkg/errs"
	"github.com/agentrt/core/pkg/schema"
)

// Registry maps tool name to Tool Definition. Registration is write-once;
// duplicate names fail loudly. The registry is always explicitly
// constructed and passed into collaborators — never a package singleton.
type Registry struct {
	mu             sync.RWMutex
	defs           map[string]*Definition
	enabled        []string // enable-list patterns; nil means "everything enabled"
	defaultTimeout time.Duration
	chain          Middleware
}

// Option configures a Registry at construction time.
type Option func(*Registry)

// WithEnabledPatterns sets the configured enable-list. A pattern is
// either an exact tool name or ends in ".*" and matches by prefix.
func WithEnabledPatterns(patterns []string) Option {
	return func(r *Registry) { r.enabled = append([]string{}, patterns...) }
}

// WithDefaultTimeout sets the timeout used when a tool declares none.
func WithDefaultTimeout(d time.Duration) Option {
	return func(r *Registry) { r.defaultTimeout = d }
}

// New constructs an empty Registry with the validation and timeout
// middleware installed, in that order (validate before racing the
// timeout clock).
func New(opts ...Option) *Registry {
	r := &Registry{
		defs:           make(map[string]*Definition),
		defaultTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.chain = chain(withValidation(), withTimeout(r.defaultTimeout))
	return r
}

// Register adds a tool definition. Returns an error if the name is
// already registered — tools are registered once at startup and never
// removed.
func (r *Registry) Register(def *Definition) error {
	if def == nil || strings.TrimSpace(def.Name) == "" {
		return fmt.Errorf("tool: definition must have a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("tool: duplicate registration for %q", def.Name)
	}
	r.defs[def.Name] = def
	return nil
}

// Get returns a registered definition by name.
func (r *Registry) Get(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[name]
	return d, ok
}

// List returns every registered definition, in registration order is not
// guaranteed (map iteration); callers that need stable order should sort.
func (r *Registry) List() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Definition, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}
	return out
}

// enabledLocked reports whether name matches the configured enable-list.
// An empty enable-list enables everything (the daemon's default config
// always sets one explicitly; an empty list here is the zero-value
// Registry used in unit tests).
func (r *Registry) enabledLocked(name string) bool {
	if len(r.enabled) == 0 {
		return true
	}
	for _, pattern := range r.enabled {
		if pattern == name {
			return true
		}
		if strings.HasSuffix(pattern, ".*") && strings.HasPrefix(name, strings.TrimSuffix(pattern, "*")) {
			return true
		}
	}
	return false
}

// Execute performs the registry's five-step dispatch: resolve, validate,
// enable-list check, timeout race, stamp elapsed. It never consults
// policy — gating is the caller's responsibility.
func (r *Registry) Execute(ctx context.Context, name string, rawInput map[string]any, ec *ExecutionContext) (*Result, error) {
	r.mu.RLock()
	def, ok := r.defs[name]
	enabled := ok && r.enabledLocked(name)
	chain := r.chain
	r.mu.RUnlock()

	if !ok {
		return nil, errs.New(errs.ToolNotFound, fmt.Sprintf("unknown tool %q", name))
	}
	if !enabled {
		return nil, errs.New(errs.ToolDisabled, fmt.Sprintf("tool %q is not in the enable-list", name))
	}

	start := time.Now()
	if rawInput == nil {
		rawInput = map[string]any{}
	}
	innermost := func(ctx context.Context, def *Definition, input map[string]any, ec *ExecutionContext) (*Result, error) {
		return def.Operation(ctx, input, ec)
	}
	res, err := chain(innermost)(ctx, def, rawInput, ec)
	elapsed := time.Since(start).Milliseconds()
	if res != nil {
		res.ElapsedMS = elapsed
	}
	return res, err
}

func withValidation() Middleware {
	return func(next call) call {
		return func(ctx context.Context, def *Definition, input map[string]any, ec *ExecutionContext) (*Result, error) {
			if def.Input != nil {
				violations := schema.Validate(def.Input, input)
				if len(violations) > 0 {
					details := make([]string, 0, len(violations))
					for _, v := range violations {
						details = append(details, v.String())
					}
					return nil, errs.New(errs.InvalidInput, fmt.Sprintf("input for %q failed validation", def.Name), details...)
				}
			}
			return next(ctx, def, input, ec)
		}
	}
}
