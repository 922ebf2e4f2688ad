package skillrunner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/agentrt/core/pkg/errs"
	"github.com/agentrt/core/pkg/policy"
	"github.com/agentrt/core/pkg/risk"
	"github.com/agentrt/core/pkg/sandbox"
	"github.com/agentrt/core/pkg/skill"
	"github.com/agentrt/core/pkg/tool"
)

const defaultMaxIterations = 20

// ToolCallRecord is one tool invocation made during a skill run, kept
// in the order it happened.
type ToolCallRecord struct {
	ID        string
	Name      string
	Arguments map[string]any
	Result    string
	Success   bool
	Duration  time.Duration
}

// ValidatorResult is the outcome of one post-run validator command.
type ValidatorResult struct {
	Command  string
	ExitCode int
	Output   string
	Passed   bool
}

// SkillRunResult is the Skill Runner's output: spec §4.4.
type SkillRunResult struct {
	Success          bool
	Output           string
	ToolCalls        []ToolCallRecord
	ValidatorResults []ValidatorResult
	Duration         time.Duration
}

// ToolExecutor is the callable a workflow-driven skill receives instead
// of a prompt: tool_executor(name, args). It enforces the same
// allow-list and policy checks as the prompt-driven loop.
type ToolExecutor func(ctx context.Context, name string, args map[string]any) (*tool.Result, error)

// WorkflowFunc is a workflow-driven skill's entrypoint.
type WorkflowFunc func(ctx context.Context, inputs map[string]any, exec ToolExecutor, ec *tool.ExecutionContext) (string, error)

// Runner executes skills via the agentic tool-use loop (prompt-driven)
// or by invoking a workflow entrypoint (workflow-driven), gating every
// tool dispatch through the Policy Engine and the Tool Registry.
// Grounded on the teacher's pkg/toolrunner.Runner loop and
// pkg/agent.TaskExecutor's tool-call message-log bookkeeping, narrowed
// to the spec's bounded-iteration, allow-list-gated shape (the
// teacher's parallel-tool-execution, response caching, and streaming
// support have no analog in SPEC_FULL.md and are dropped).
type Runner struct {
	registry      *tool.Registry
	policy        *policy.Engine
	model         ModelClient
	maxIterations int
	validators    *sandbox.Sandbox
}

// New constructs a Runner. validators may be nil, in which case no
// validator commands are run (skills without validators still succeed).
func New(registry *tool.Registry, pol *policy.Engine, model ModelClient, validators *sandbox.Sandbox) *Runner {
	if validators == nil {
		validators = sandbox.NewWithDefaults()
	}
	return &Runner{
		registry:      registry,
		policy:        pol,
		model:         model,
		maxIterations: defaultMaxIterations,
		validators:    validators,
	}
}

// templatePrompt replaces every {{key}} occurrence in prompt with the
// stringified value of inputs[key] (spec §4.4 step 1).
func templatePrompt(prompt string, inputs map[string]any) string {
	out := prompt
	for k, v := range inputs {
		out = strings.ReplaceAll(out, "{{"+k+"}}", stringify(v))
	}
	return out
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}

// catalogue builds the intersection of the skill's allow-list and the
// Tool Registry, exposed as (name, description, input schema) triples
// (spec §4.4 step 2).
func (r *Runner) catalogue(m *skill.Manifest) []ToolSpec {
	specs := make([]ToolSpec, 0, len(m.AllowedTools))
	for _, name := range m.AllowedTools {
		def, ok := r.registry.Get(name)
		if !ok {
			continue
		}
		specs = append(specs, ToolSpec{Name: def.Name, Description: def.Description, InputSchema: def.Input})
	}
	return specs
}

// Run executes a prompt-driven skill to completion.
func (r *Runner) Run(ctx context.Context, m *skill.Manifest, prompt string, inputs map[string]any, ec *tool.ExecutionContext) (*SkillRunResult, error) {
	start := time.Now()
	if ec == nil {
		ec = &tool.ExecutionContext{}
	}
	ec.Ctx = ctx

	tools := r.catalogue(m)
	messages := []Message{
		{Role: "system", Content: templatePrompt(prompt, inputs)},
		{Role: "user", Content: stringify(inputs)},
	}

	result := &SkillRunResult{}

	for i := 0; i < r.maxIterations; i++ {
		if ec.Progress != nil {
			ec.Progress.Progress(string(StateAwaitingModel))
		}
		resp, err := r.model.Chat(ctx, messages, tools)
		if err != nil {
			result.Success = false
			result.Output = fmt.Sprintf("model error: %v", err)
			result.Duration = time.Since(start)
			return result, nil
		}

		if len(resp.ToolCalls) == 0 {
			result.Success = true
			result.Output = resp.Content
			result.Duration = time.Since(start)
			return r.runValidators(ctx, m, result), nil
		}

		if ec.Progress != nil {
			ec.Progress.Progress(string(StateDispatchingTools))
		}
		messages = append(messages, Message{Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls})

		for _, call := range resp.ToolCalls {
			record, msg := r.dispatch(ctx, m, call, ec)
			result.ToolCalls = append(result.ToolCalls, record)
			messages = append(messages, msg)
		}
	}

	result.Success = false
	result.Output = "max iterations reached"
	result.Duration = time.Since(start)
	return result, nil
}

// dispatch enforces the allow-list and policy check for one tool call,
// dispatches through the registry on success, and returns both the
// ToolCallRecord for the run's log and the tool-result message to
// append to the conversation (spec §4.4 step 4).
func (r *Runner) dispatch(ctx context.Context, m *skill.Manifest, call ToolCall, ec *tool.ExecutionContext) (ToolCallRecord, Message) {
	started := time.Now()
	record := ToolCallRecord{ID: call.ID, Name: call.Name, Arguments: call.Arguments}

	if !m.AllowsTool(call.Name) {
		return r.toolError(record, started, errs.New(errs.ToolNotAllowed, fmt.Sprintf("tool %q is not in this skill's allow-list", call.Name)).Error())
	}

	def, ok := r.registry.Get(call.Name)
	if !ok {
		return r.toolError(record, started, errs.New(errs.ToolNotFound, fmt.Sprintf("unknown tool %q", call.Name)).Error())
	}

	action := tool.ActionDescriptor{
		ToolName:    def.Name,
		Operation:   "invoke",
		Description: def.Description,
		Permissions: def.Permissions,
		Args:        call.Arguments,
		Risk:        risk.Derive(def, call.Arguments),
	}

	decision := r.policy.Check(action, ec.Approvals)
	if decision.Denied {
		return r.toolError(record, started, "permission denied: "+decision.Reason)
	}
	if decision.NeedsApproval {
		if !r.policy.RequestApproval(ec, action) {
			return r.toolError(record, started, "approval denied: "+decision.Reason)
		}
	}

	res, err := r.registry.Execute(ctx, call.Name, call.Arguments, ec)
	ec.Emit("tool_call", map[string]any{"tool": call.Name, "success": err == nil && res != nil && res.Success})
	if err != nil {
		return r.toolError(record, started, err.Error())
	}

	record.Success = res.Success
	record.Duration = time.Since(started)
	payload, _ := json.Marshal(res)
	record.Result = string(payload)
	return record, Message{Role: "tool", Content: record.Result, ToolCallID: call.ID}
}

func (r *Runner) toolError(record ToolCallRecord, started time.Time, reason string) (ToolCallRecord, Message) {
	record.Success = false
	record.Duration = time.Since(started)
	record.Result = fmt.Sprintf(`{"error":%q}`, reason)
	return record, Message{Role: "tool", Content: record.Result, ToolCallID: record.ID}
}

// RunWorkflow executes a workflow-driven skill's entrypoint, supplying
// a tool_executor callable that enforces the same allow-list and
// policy checks the prompt-driven loop does (spec §4.4 final paragraph).
func (r *Runner) RunWorkflow(ctx context.Context, m *skill.Manifest, inputs map[string]any, entry WorkflowFunc, ec *tool.ExecutionContext) (*SkillRunResult, error) {
	start := time.Now()
	if ec == nil {
		ec = &tool.ExecutionContext{}
	}
	ec.Ctx = ctx

	executor := func(ctx context.Context, name string, args map[string]any) (*tool.Result, error) {
		call := ToolCall{ID: name, Name: name, Arguments: args}
		record, _ := r.dispatch(ctx, m, call, ec)
		if !record.Success {
			return nil, fmt.Errorf("%s", record.Result)
		}
		var res tool.Result
		if err := json.Unmarshal([]byte(record.Result), &res); err != nil {
			return nil, err
		}
		return &res, nil
	}

	output, err := entry(ctx, inputs, executor, ec)
	result := &SkillRunResult{Duration: time.Since(start)}
	if err != nil {
		result.Success = false
		result.Output = err.Error()
		return result, nil
	}
	result.Success = true
	result.Output = output
	return r.runValidators(ctx, m, result), nil
}

// runValidators executes every declared validator command; the skill
// succeeds only if every validator passes (spec §4.4 step 5). Absence
// of validators is success.
func (r *Runner) runValidators(ctx context.Context, m *skill.Manifest, result *SkillRunResult) *SkillRunResult {
	for _, cmd := range m.Validators {
		res := r.validators.Execute(ctx, cmd)
		passed := res.Error == nil && res.ExitCode == 0
		result.ValidatorResults = append(result.ValidatorResults, ValidatorResult{
			Command:  cmd,
			ExitCode: res.ExitCode,
			Output:   res.Stdout + res.Stderr,
			Passed:   passed,
		})
		if !passed {
			result.Success = false
		}
	}
	return result
}
