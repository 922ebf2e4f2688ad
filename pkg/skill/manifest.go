// Package skill implements the Skill Manifest and the Registry of
// Skills: on-disk discovery, YAML manifest parsing, and lifecycle
// (draft/approved/deprecated) enforcement. Adapted from the teacher's
// SKILL.md frontmatter loader (pkg/skill's original loader.go/registry.go)
// generalized from markdown-guidance skills to manifests that declare a
// tool allow-list, required permissions, and an input schema.
package skill

import (
	"regexp"
	"time"

	"github.com/agentrt/core/pkg/errs"
	"github.com/agentrt/core/pkg/permission"
	"github.com/agentrt/core/pkg/schema"
)

var (
	nameRe    = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)
	versionRe = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
)

// Lifecycle is the closed set of skill approval states.
type Lifecycle string

const (
	Draft      Lifecycle = "draft"
	Approved   Lifecycle = "approved"
	Deprecated Lifecycle = "deprecated"
)

func (l Lifecycle) valid() bool {
	switch l {
	case Draft, Approved, Deprecated:
		return true
	}
	return false
}

// transitions is the closed set of allowed lifecycle moves: draft to
// approved, approved to deprecated, and deprecated back to approved
// (re-approval).
var transitions = map[Lifecycle]map[Lifecycle]bool{
	Draft:      {Approved: true},
	Approved:   {Deprecated: true},
	Deprecated: {Approved: true},
}

// CanTransition reports whether moving from `from` to `to` is a legal
// lifecycle transition.
func CanTransition(from, to Lifecycle) bool {
	return transitions[from][to]
}

// Manifest is the persistent descriptor on disk (skill.yaml). Name and
// Version are validated against the closed alphabet/semver patterns
// before a skill is ever registered.
type Manifest struct {
	Name                string               `yaml:"name"`
	Version             string               `yaml:"version"`
	Description         string               `yaml:"description"`
	Entrypoint          string               `yaml:"entrypoint"`
	AllowedTools        []string             `yaml:"allowedTools"`
	RequiredPermissions []permission.Category `yaml:"requiredPermissions,omitempty"`
	OptionalPermissions []permission.Category `yaml:"optionalPermissions,omitempty"`
	InputSchema         *schema.Type          `yaml:"inputSchema,omitempty"`
	OSConstraints       []string             `yaml:"os,omitempty"`
	BinaryConstraints   []string             `yaml:"requiresBinaries,omitempty"`
	Validators          []string             `yaml:"validators,omitempty"`
	Lifecycle           Lifecycle            `yaml:"lifecycle,omitempty"`

	// Populated by the loader, not parsed from the manifest body.
	Source   string    `yaml:"-"`
	Dir      string    `yaml:"-"`
	LoadedAt time.Time `yaml:"-"`
}

// Validate checks every required field and the closed-alphabet/semver
// constraints, returning a SkillManifestInvalid error describing every
// violation found (not just the first).
func (m *Manifest) Validate() error {
	var problems []string

	if !nameRe.MatchString(m.Name) {
		problems = append(problems, "name must match ^[a-z0-9][a-z0-9._-]*$")
	}
	if !versionRe.MatchString(m.Version) {
		problems = append(problems, "version must match semver ^\\d+\\.\\d+\\.\\d+$")
	}
	if m.Description == "" {
		problems = append(problems, "description is required")
	}
	if m.Entrypoint == "" {
		problems = append(problems, "entrypoint is required")
	}
	if m.Lifecycle == "" {
		m.Lifecycle = Draft
	} else if !m.Lifecycle.valid() {
		problems = append(problems, "lifecycle must be one of draft, approved, deprecated")
	}
	if m.InputSchema != nil {
		if violations := schema.Validate(m.InputSchema, map[string]any{}); len(violations) > 0 {
			// An empty probe value only ever trips "required" violations,
			// which is expected for a non-trivial schema; the schema
			// shape itself is what we're checking compiles, so ignore
			// value-level violations here.
			_ = violations
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return errs.New(errs.SkillManifestInvalid, "manifest "+m.Name+" failed validation", problems...)
}

// IsApproved reports whether the skill may currently be dispatched by
// the Skill Runner.
func (m *Manifest) IsApproved() bool {
	return m.Lifecycle == Approved
}

// AllowsTool reports whether toolName is in the skill's declared
// allow-list.
func (m *Manifest) AllowsTool(toolName string) bool {
	for _, t := range m.AllowedTools {
		if t == toolName {
			return true
		}
	}
	return false
}
