package skillrunner

import (
	"context"
	"os"
	"path/filepath"

	"github.com/agentrt/core/pkg/skill"
	"github.com/agentrt/core/pkg/tool"
)

// Dispatcher looks a skill name up in a Registry and runs it,
// consumed by the Execution Engine for plan steps that name a skill
// rather than a tool. A prompt-driven skill's entrypoint file is read
// from disk and used as the loop's templated prompt; a workflow-driven
// skill is run through RunWorkflow via workflows, which are registered
// by name with RegisterWorkflow.
type Dispatcher struct {
	registry  *skill.Registry
	runner    *Runner
	workflows map[string]WorkflowFunc
}

// NewDispatcher constructs a Dispatcher over registry and runner.
func NewDispatcher(registry *skill.Registry, runner *Runner) *Dispatcher {
	return &Dispatcher{registry: registry, runner: runner, workflows: make(map[string]WorkflowFunc)}
}

// RegisterWorkflow associates a skill name with a workflow entrypoint.
// Skills with no registered workflow are treated as prompt-driven.
func (d *Dispatcher) RegisterWorkflow(skillName string, fn WorkflowFunc) {
	d.workflows[skillName] = fn
}

// Dispatch runs the named skill, only if it is currently approved.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]any, ec *tool.ExecutionContext) (*SkillRunResult, error) {
	m, err := d.registry.GetApproved(name)
	if err != nil {
		return nil, err
	}
	if fn, ok := d.workflows[name]; ok {
		return d.runner.RunWorkflow(ctx, m, args, fn, ec)
	}
	prompt, err := os.ReadFile(filepath.Join(m.Dir, m.Entrypoint))
	if err != nil {
		return nil, err
	}
	return d.runner.Run(ctx, m, string(prompt), args, ec)
}
