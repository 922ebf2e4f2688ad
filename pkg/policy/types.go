// Package policy implements the Policy Engine: permission resolution,
// scope checks, and per-run approval caching. Adapted from a
// category/exception/risk-rule/time-window evaluator, remapped onto the
// closed permission enumeration and gating algorithm of this runtime.
package policy

import (
	"github.com/agentrt/core/pkg/permission"
	"github.com/agentrt/core/pkg/tool"
)

// Action in {allow, deny, confirm} — the outcome a rule resolves to.
type Action string

const (
	ActionAllow   Action = "allow"
	ActionDeny    Action = "deny"
	ActionConfirm Action = "confirm"
)

// Rule binds a permission category to an action.
type Rule struct {
	Permission permission.Category
	Action     Action
}

// RiskRule optionally escalates a rule's action based on a declared risk
// level, layered on top of category resolution as an enrichment — not a
// replacement for it.
type RiskRule struct {
	Permission permission.Category
	Risk       tool.RiskLevel
	Action     Action
}

// TimeWindow lets a confirm-by-default rule auto-resolve to allow for a
// configured local-time range (e.g. business hours), feeding
// request_approval's autonomous-low-risk auto-grant idea.
type TimeWindow struct {
	Permission permission.Category
	Start      string // "HH:MM"
	End        string // "HH:MM"
	Action     Action
}

// Config is the policy configuration snapshot the engine holds.
type Config struct {
	DefaultApproval     Action
	Rules               []Rule
	RiskRules           []RiskRule
	TimeWindows         []TimeWindow
	FilesystemAllowlist []string
	CommandAllowlist    []string
	DomainAllowlist     []string
	ProjectRoot         string
}

// DefaultConfig returns a conservative starting policy: confirm by
// default, no allow-lists configured (an empty allow-list means every
// scope_check for that domain fails — callers must configure explicitly,
// per the Failure semantics rule that misconfiguration never means
// implicit allow).
func DefaultConfig(projectRoot string) Config {
	return Config{
		DefaultApproval: ActionConfirm,
		ProjectRoot:     projectRoot,
	}
}

// Decision is the result of check(): exactly one of Allowed, Denied
// (with Reason), or NeedsApproval (with Reason).
type Decision struct {
	Allowed       bool
	Denied        bool
	NeedsApproval bool
	Reason        string
}

func allowed() Decision { return Decision{Allowed: true} }
func denied(reason string) Decision {
	return Decision{Denied: true, Reason: reason}
}
func needsApproval(reason string) Decision {
	return Decision{NeedsApproval: true, Reason: reason}
}

// AuditEmitter receives permission_denied / approval_granted /
// approval_denied events. Satisfied by an audit.Bus in production;
// kept as a narrow interface so the engine has no import-time
// dependency on the audit package.
type AuditEmitter interface {
	Emit(kind string, payload map[string]any)
}

// noopEmitter swallows events when no emitter is configured.
type noopEmitter struct{}

func (noopEmitter) Emit(string, map[string]any) {}
