// Package planrunner implements the Plan Runner state machine (spec
// §4.6): topologically honoring dependsOn, dispatching each step to an
// Execution Engine, running verification, and applying the step's
// retry/skip/abort failure policy. Grounded on the teacher's
// pkg/ralph/executor.go's Run/runIteration loop and functional-options
// construction (ExecutorOption / With... / New...(required, opts...)),
// generalized from Ralph's single-backend iteration loop to a
// multi-step, dependency-aware run.
package planrunner

import (
	"context"
	"fmt"

	"github.com/agentrt/core/pkg/audit"
	"github.com/agentrt/core/pkg/execengine"
	"github.com/agentrt/core/pkg/plan"
	"github.com/agentrt/core/pkg/tool"
)

// StepStatus is a step's position in its state machine: pending ->
// running -> (completed | failed | skipped | retrying), terminal in
// completed/failed/skipped.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
	StepRetrying  StepStatus = "retrying"
)

// RunStatus is a run's terminal outcome.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunAborted   RunStatus = "aborted"
)

// StepExecutor is the Execution Engine's contract as the Plan Runner
// consumes it; satisfied by *execengine.Engine.
type StepExecutor interface {
	ExecuteStep(ctx context.Context, step plan.Step, ec *tool.ExecutionContext) (execengine.StepResult, error)
	Verify(ctx context.Context, clause *plan.Verify, ec *tool.ExecutionContext) (bool, string)
}

// StepResult is an alias of execengine.StepResult for readability
// within this package.
type StepResult = execengine.StepResult

// Option configures a Runner at construction.
type Option func(*Runner)

// WithLogger attaches an audit.Logger; events are emitted through it
// when set, dropped otherwise.
func WithLogger(l *audit.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// Runner drives one plan through its step state machine.
type Runner struct {
	executor StepExecutor
	logger   *audit.Logger
}

// New constructs a Runner over executor.
func New(executor StepExecutor, opts ...Option) *Runner {
	r := &Runner{executor: executor}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// stepState is the Runner's bookkeeping for one step across the run.
type stepState struct {
	status StepStatus
	output string
	errMsg string
}

// Run executes p to completion and returns the final RunStatus. Step
// invocations are fully serialized (spec §4.6 Ordering) — parallel
// execution of independent steps is not implemented.
func (r *Runner) Run(ctx context.Context, p *plan.Plan, ec *tool.ExecutionContext) RunStatus {
	r.emit(ctx, audit.KindRunStart, map[string]any{"plan": p.Name})

	states := make(map[string]*stepState, len(p.Steps))
	for _, s := range p.Steps {
		states[s.ID] = &stepState{status: StepPending}
	}

	status := RunCompleted
	for _, step := range p.Steps {
		state := states[step.ID]

		if reason, unmet := unmetDependencies(step, states); unmet {
			state.status = StepSkipped
			state.errMsg = reason
			r.emit(ctx, audit.KindStepStart, map[string]any{"stepId": step.ID})
			r.emit(ctx, audit.KindStepFailed, map[string]any{"stepId": step.ID, "status": "skipped", "error": reason})
			continue
		}

		state.status = StepRunning
		r.emit(ctx, audit.KindStepStart, map[string]any{"stepId": step.ID})

		result, verified := r.runStepWithRetries(ctx, step, ec)
		state.output = result.Output
		state.errMsg = result.Error

		if result.Success {
			state.status = StepCompleted
			payload := map[string]any{"stepId": step.ID, "output": result.Output, "durationMs": float64(result.Duration.Milliseconds())}
			if verified != nil {
				payload["verified"] = *verified
			}
			r.emit(ctx, audit.KindStepComplete, payload)
			continue
		}

		state.status = StepFailed
		payload := map[string]any{"stepId": step.ID, "error": result.Error, "durationMs": float64(result.Duration.Milliseconds())}
		if verified != nil {
			payload["verified"] = *verified
		}
		r.emit(ctx, audit.KindStepFailed, payload)

		switch step.OnFailure {
		case plan.OnFailureSkip:
			continue
		case plan.OnFailureAbort, "":
			status = RunFailed
			r.emit(ctx, audit.KindRunComplete, map[string]any{"plan": p.Name, "status": string(status)})
			return status
		}
	}

	if anyFailed(states) {
		status = RunFailed
	}
	r.emit(ctx, audit.KindRunComplete, map[string]any{"plan": p.Name, "status": string(status)})
	return status
}

// runStepWithRetries invokes execute_step, then verify if a
// verification clause is present; on failure with an onFailure=retry
// policy, re-invokes up to step.Retries times, returning on the first
// success. The returned *bool reports the verification outcome of the
// returned attempt: nil when the step has no verify clause, a pointer
// to the pass/fail result otherwise.
func (r *Runner) runStepWithRetries(ctx context.Context, step plan.Step, ec *tool.ExecutionContext) (StepResult, *bool) {
	attempts := 1
	if step.OnFailure == plan.OnFailureRetry && step.Retries > 0 {
		attempts += step.Retries
	}

	var last StepResult
	var verified *bool
	for i := 0; i < attempts; i++ {
		last, verified = r.runStepOnce(ctx, step, ec)
		if last.Success {
			return last, verified
		}
	}
	return last, verified
}

func (r *Runner) runStepOnce(ctx context.Context, step plan.Step, ec *tool.ExecutionContext) (StepResult, *bool) {
	result, err := r.executor.ExecuteStep(ctx, step, ec)
	if err != nil {
		return StepResult{Success: false, Error: err.Error()}, nil
	}
	if !result.Success {
		return result, nil
	}
	if step.Verify == nil {
		return result, nil
	}
	passed, details := r.executor.Verify(ctx, step.Verify, ec)
	if !passed {
		return StepResult{Success: false, Error: details, Duration: result.Duration}, &passed
	}
	return result, &passed
}

func unmetDependencies(step plan.Step, states map[string]*stepState) (string, bool) {
	var unmet []string
	for _, dep := range step.DependsOn {
		if s, ok := states[dep]; !ok || s.status != StepCompleted {
			unmet = append(unmet, dep)
		}
	}
	if len(unmet) == 0 {
		return "", false
	}
	return fmt.Sprintf("unmet dependencies: %v", unmet), true
}

func anyFailed(states map[string]*stepState) bool {
	for _, s := range states {
		if s.status == StepFailed {
			return true
		}
	}
	return false
}

func (r *Runner) emit(ctx context.Context, kind audit.Kind, payload map[string]any) {
	if r.logger == nil {
		return
	}
	_ = r.logger.Emit(ctx, kind, payload)
}
