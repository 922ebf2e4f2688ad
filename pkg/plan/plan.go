// Package plan parses the declarative plan file (spec §3 "Plan") from
// YAML: goals, steps, a policy block, a trigger, and outputs. Grounded
// on the teacher's pkg/ralph/control.go YAML-configuration idiom
// (struct-per-section, `yaml:` tags, a top-level Parse), generalized
// from Ralph's backend-rotation control file to this runtime's
// step/dependency/verification plan shape.
package plan

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/agentrt/core/pkg/tool"
)

// Mode is a Plan's execution mode.
type Mode string

const (
	ModeExecute Mode = "execute"
	ModePropose Mode = "propose"
)

// ApprovalMode governs how a plan's steps request approval.
type ApprovalMode string

const (
	ApprovalAuto       ApprovalMode = "auto"
	ApprovalPerStep    ApprovalMode = "per_step"
	ApprovalPreApprove ApprovalMode = "pre_approve"
)

// FailurePolicy is a step's behavior on failure.
type FailurePolicy string

const (
	OnFailureRetry FailurePolicy = "retry"
	OnFailureSkip  FailurePolicy = "skip"
	OnFailureAbort FailurePolicy = "abort"
)

// TriggerKind is a plan's activation source.
type TriggerKind string

const (
	TriggerCron   TriggerKind = "cron"
	TriggerFS     TriggerKind = "fs"
	TriggerManual TriggerKind = "manual"
)

// Goal is one of a plan's named objectives.
type Goal struct {
	ID              string        `yaml:"id"`
	Description     string        `yaml:"description"`
	SuccessCriteria []string      `yaml:"successCriteria,omitempty"`
	Risk            tool.RiskLevel `yaml:"risk,omitempty"`
}

// VerifyCheck is one check within a step's verification clause.
// Exactly one of Command or FileExists should be set.
type VerifyCheck struct {
	Command    string `yaml:"command,omitempty"`
	ExitCode   *int   `yaml:"exitCode,omitempty"`
	Contains   string `yaml:"contains,omitempty"`
	FileExists string `yaml:"fileExists,omitempty"`
}

// Verify is a step's verification clause: every check must pass.
type Verify struct {
	Checks []VerifyCheck `yaml:"checks"`
}

// Step is one Plan Step. Exactly one of Tool or Skill is set.
type Step struct {
	ID        string         `yaml:"id"`
	Name      string         `yaml:"name"`
	Tool      string         `yaml:"tool,omitempty"`
	Skill     string         `yaml:"skill,omitempty"`
	Args      map[string]any `yaml:"args,omitempty"`
	Verify    *Verify        `yaml:"verify,omitempty"`
	OnFailure FailurePolicy  `yaml:"onFailure,omitempty"`
	Retries   int            `yaml:"retries,omitempty"`
	DependsOn []string       `yaml:"dependsOn,omitempty"`
}

// UsesSkill reports whether the step dispatches to a skill rather than
// a builtin tool.
func (s Step) UsesSkill() bool { return s.Skill != "" }

// Policy is a plan-scoped policy block.
type Policy struct {
	ApprovalMode        ApprovalMode `yaml:"approvalMode,omitempty"`
	FilesystemAllowlist []string     `yaml:"filesystemAllowlist,omitempty"`
	CommandAllowlist    []string     `yaml:"commandAllowlist,omitempty"`
}

// Trigger is a plan's activation source.
type Trigger struct {
	Kind     TriggerKind   `yaml:"kind"`
	Cron     string        `yaml:"cron,omitempty"`
	Timezone string        `yaml:"timezone,omitempty"`
	Paths    []string      `yaml:"paths,omitempty"`
	Debounce string        `yaml:"debounce,omitempty"`
}

// Plan is the parsed declarative plan file.
type Plan struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Mode        Mode              `yaml:"mode"`
	Goals       []Goal            `yaml:"goals"`
	Steps       []Step            `yaml:"steps"`
	Policy      Policy            `yaml:"policy"`
	Trigger     Trigger           `yaml:"trigger"`
	Outputs     map[string]string `yaml:"outputs,omitempty"`
}

// StepByID returns the step with the given id, if present.
func (p *Plan) StepByID(id string) (Step, bool) {
	for _, s := range p.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return Step{}, false
}

// Parse reads and validates a plan file from path.
func Parse(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("plan: read %s: %w", path, err)
	}
	return ParseBytes(data)
}

// ParseBytes parses a plan from raw YAML bytes.
func ParseBytes(data []byte) (*Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("plan: parse yaml: %w", err)
	}
	if p.Mode == "" {
		p.Mode = ModeExecute
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Plan) validate() error {
	if p.Name == "" {
		return fmt.Errorf("plan: name is required")
	}
	if len(p.Goals) == 0 {
		return fmt.Errorf("plan %s: at least one goal is required", p.Name)
	}
	seen := make(map[string]bool, len(p.Steps))
	for i := range p.Steps {
		s := &p.Steps[i]
		if s.ID == "" {
			return fmt.Errorf("plan %s: step with empty id", p.Name)
		}
		if seen[s.ID] {
			return fmt.Errorf("plan %s: duplicate step id %q", p.Name, s.ID)
		}
		seen[s.ID] = true
		if (s.Tool == "") == (s.Skill == "") {
			return fmt.Errorf("plan %s: step %q must specify exactly one of tool or skill", p.Name, s.ID)
		}
		if s.OnFailure == "" {
			s.OnFailure = OnFailureAbort
		}
	}
	for _, s := range p.Steps {
		for _, dep := range s.DependsOn {
			if !seen[dep] {
				return fmt.Errorf("plan %s: step %q depends on unknown step %q", p.Name, s.ID, dep)
			}
		}
	}
	return nil
}
