// Package execengine implements the Execution Engine (spec §4.5): given
// one Plan Step, it dispatches to the Tool Registry or the Skill
// Runner, gates the dispatch through the Policy Engine, and brackets
// filesystem-writing tool calls with Rollback Tracker snapshots.
// Grounded on the teacher's pkg/ralph/executor.go's single-iteration
// dispatch (policy/permission gate, then invoke, then record result)
// generalized from Ralph's backend-call shape to this runtime's
// tool/skill step dispatch.
package execengine

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/agentrt/core/pkg/plan"
	"github.com/agentrt/core/pkg/policy"
	"github.com/agentrt/core/pkg/risk"
	"github.com/agentrt/core/pkg/rollback"
	"github.com/agentrt/core/pkg/sandbox"
	"github.com/agentrt/core/pkg/skillrunner"
	"github.com/agentrt/core/pkg/tool"
)

// StepResult is execute_step's output, preserved by the Plan Runner
// into its per-step run record.
type StepResult struct {
	Success  bool
	Output   string
	Error    string
	Duration time.Duration
}

// SkillDispatcher runs a named skill end to end; satisfied by
// *skillrunner.Dispatcher. A narrow interface so the engine's tests can
// substitute a fake without constructing a full skill registry.
type SkillDispatcher interface {
	Dispatch(ctx context.Context, name string, args map[string]any, ec *tool.ExecutionContext) (*skillrunner.SkillRunResult, error)
}

// Engine wires the Tool Registry, Policy Engine, Rollback Tracker, and
// a Skill Dispatcher together for one step at a time.
type Engine struct {
	registry   *tool.Registry
	policy     *policy.Engine
	rollback   *rollback.Tracker
	skills     SkillDispatcher
	validators *sandbox.Sandbox
}

// New constructs an Engine. skills and tracker may be the zero value
// appropriate to their type; a nil skills dispatcher means any
// skill-step will fail with a descriptive error rather than panicking.
func New(registry *tool.Registry, pol *policy.Engine, tracker *rollback.Tracker, skills SkillDispatcher) *Engine {
	return &Engine{registry: registry, policy: pol, rollback: tracker, skills: skills, validators: sandbox.NewWithDefaults()}
}

// ExecuteStep implements execute_step(step, context).
func (e *Engine) ExecuteStep(ctx context.Context, step plan.Step, ec *tool.ExecutionContext) (StepResult, error) {
	if ec == nil {
		ec = &tool.ExecutionContext{}
	}
	ec.Ctx = ctx
	ec.StepID = step.ID

	if step.UsesSkill() {
		return e.executeSkillStep(ctx, step, ec)
	}
	return e.executeToolStep(ctx, step, ec)
}

func (e *Engine) executeSkillStep(ctx context.Context, step plan.Step, ec *tool.ExecutionContext) (StepResult, error) {
	start := time.Now()
	if e.skills == nil {
		return StepResult{Success: false, Error: "no skill dispatcher configured", Duration: time.Since(start)}, nil
	}
	res, err := e.skills.Dispatch(ctx, step.Skill, step.Args, ec)
	if err != nil {
		return StepResult{Success: false, Error: err.Error(), Duration: time.Since(start)}, nil
	}
	return StepResult{Success: res.Success, Output: res.Output, Duration: time.Since(start)}, nil
}

func (e *Engine) executeToolStep(ctx context.Context, step plan.Step, ec *tool.ExecutionContext) (StepResult, error) {
	start := time.Now()

	def, ok := e.registry.Get(step.Tool)
	if !ok {
		return StepResult{Success: false, Error: fmt.Sprintf("unknown tool %q", step.Tool), Duration: time.Since(start)}, nil
	}

	action := tool.ActionDescriptor{
		ToolName:    def.Name,
		Operation:   step.Name,
		Description: def.Description,
		Permissions: def.Permissions,
		Args:        step.Args,
		Risk:        risk.Derive(def, step.Args),
	}

	decision := e.policy.Check(action, ec.Approvals)
	if decision.Denied {
		return StepResult{Success: false, Error: "permission denied: " + decision.Reason, Duration: time.Since(start)}, nil
	}
	if decision.NeedsApproval {
		if !e.policy.RequestApproval(ec, action) {
			return StepResult{Success: false, Error: "approval denied: " + decision.Reason, Duration: time.Since(start)}, nil
		}
	}

	path, hasPath := step.Args["path"].(string)
	isFS := strings.HasPrefix(step.Tool, "fs.")
	if isFS && hasPath && e.rollback != nil {
		if err := e.rollback.CaptureBefore(step.ID, path); err != nil {
			return StepResult{Success: false, Error: "capture_before: " + err.Error(), Duration: time.Since(start)}, nil
		}
	}

	res, err := e.registry.Execute(ctx, step.Tool, step.Args, ec)
	success := err == nil && res != nil && res.Success
	ec.Emit("tool_call", map[string]any{"tool": step.Tool, "stepId": step.ID, "success": success})

	if err != nil {
		return StepResult{Success: false, Error: err.Error(), Duration: time.Since(start)}, nil
	}

	if isFS && hasPath && success && e.rollback != nil {
		if err := e.rollback.CaptureAfter(step.ID, path); err != nil {
			return StepResult{Success: false, Error: "capture_after: " + err.Error(), Duration: time.Since(start)}, nil
		}
	}

	out := StepResult{Success: res.Success, Duration: time.Since(start)}
	if res.Success {
		out.Output = fmt.Sprintf("%v", res.Output)
	} else {
		out.Error = res.Error
	}
	return out, nil
}

// Verify implements verify(clause, context): every check in clause must
// pass, and details concatenate per-check outcomes.
func (e *Engine) Verify(ctx context.Context, clause *plan.Verify, ec *tool.ExecutionContext) (bool, string) {
	if clause == nil || len(clause.Checks) == 0 {
		return true, ""
	}
	passed := true
	var details []string
	for _, check := range clause.Checks {
		ok, detail := e.runCheck(ctx, check)
		if !ok {
			passed = false
		}
		details = append(details, detail)
	}
	return passed, strings.Join(details, "; ")
}

func (e *Engine) runCheck(ctx context.Context, check plan.VerifyCheck) (bool, string) {
	if check.FileExists != "" {
		if _, err := os.Stat(check.FileExists); err != nil {
			return false, fmt.Sprintf("fileExists %q: not found", check.FileExists)
		}
		return true, fmt.Sprintf("fileExists %q: ok", check.FileExists)
	}

	if check.Command == "" {
		return true, ""
	}
	res := e.validators.Execute(ctx, check.Command)
	wantExit := 0
	if check.ExitCode != nil {
		wantExit = *check.ExitCode
	}
	if res.Error != nil || res.ExitCode != wantExit {
		return false, fmt.Sprintf("command %q: exit %d, want %d", check.Command, res.ExitCode, wantExit)
	}
	if check.Contains != "" && !strings.Contains(res.Stdout+res.Stderr, check.Contains) {
		return false, fmt.Sprintf("command %q: output missing %q", check.Command, check.Contains)
	}
	return true, fmt.Sprintf("command %q: ok", check.Command)
}
