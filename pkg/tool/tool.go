// Package tool holds the Tool Registry: typed dispatch over a closed,
// write-once set of builtin capabilities. The registry never consults
// policy — gating is the caller's duty, so trusted orchestration paths
// can use the registry directly.
package tool

import (
	"context"
	"time"

	"github.com/agentrt/core/pkg/permission"
	"github.com/agentrt/core/pkg/schema"
)

// Result is what a tool operation returns. A failed tool call still
// returns (Result, nil) so that failures never raise across a dispatch
// boundary — only ElapsedMS is always stamped by the registry regardless
// of outcome.
type Result struct {
	Success   bool
	Output    map[string]any
	Error     string
	ElapsedMS int64
}

// Definition is an immutable Tool Definition. Operation is a pure async
// function of validated input and the execution context.
type Definition struct {
	Name        string // dotted, e.g. "fs.read"
	Category    string
	Description string
	Input       *schema.Type
	Output      *schema.Type
	Permissions []permission.Category
	Timeout     time.Duration // zero means use the registry default
	Operation   func(ctx context.Context, input map[string]any, ec *ExecutionContext) (*Result, error)
}

// ProgressSink receives free-form progress notifications from a running
// tool or skill. Front-ends implement this; the core only calls it.
type ProgressSink interface {
	Progress(message string)
}

// ApprovalPrompter is invoked by the Policy Engine when a permission
// resolves to confirm. Returns whether the action was approved.
type ApprovalPrompter interface {
	Prompt(ctx context.Context, descriptor ActionDescriptor) (bool, error)
}

// ActionDescriptor is the bundle passed to the Policy Engine: tool name,
// operation, description, required permissions, arguments, risk level.
type ActionDescriptor struct {
	ToolName    string
	Operation   string
	Description string
	Permissions []permission.Category
	Args        map[string]any
	Risk        RiskLevel
}

// RiskLevel is a closed enumeration used by request_approval's
// autonomous-low-risk auto-grant path.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// ExecutionContext is the per-invocation record threaded through every
// tool, skill, and step dispatch.
type ExecutionContext struct {
	RunID      string
	StepID     string
	WorkDir    string
	Config     any // opaque config snapshot; concrete type lives in pkg/config
	DryRun     bool
	Autonomous bool
	Approvals  map[string]bool // set of already-approved "permission\x00tool" pairs
	Prompter   ApprovalPrompter
	Progress   ProgressSink
	EmitEvent  func(kind string, payload map[string]any)
	Ctx        context.Context
}

// ApprovalKey builds the session-approval map key for a (tool, permission) pair.
func ApprovalKey(toolName string, perm permission.Category) string {
	return string(perm) + "\x00" + toolName
}

// Emit is a nil-safe event emission helper.
func (ec *ExecutionContext) Emit(kind string, payload map[string]any) {
	if ec == nil || ec.EmitEvent == nil {
		return
	}
	ec.EmitEvent(kind, payload)
}

// Context returns ec.Ctx, defaulting to context.Background when ec or its
// context is nil, so tool operations never need to nil-check it themselves.
func (ec *ExecutionContext) Context() context.Context {
	if ec == nil || ec.Ctx == nil {
		return context.Background()
	}
	return ec.Ctx
}
