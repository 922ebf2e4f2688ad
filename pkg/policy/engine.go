package policy

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/agentrt/core/pkg/permission"
	"github.com/agentrt/core/pkg/tool"
)

// Engine evaluates actions against a Config: check resolves allow/deny/
// confirm per permission, request_approval turns a confirm into a
// granted/denied bool (caching the grant for the session), and
// scope_check bounds fs/cmd/network tool arguments against the
// configured allow-lists independent of the category decision.
type Engine struct {
	cfg     Config
	emitter AuditEmitter
	now     func() time.Time
}

// New constructs an Engine. emitter may be nil (events are dropped).
func New(cfg Config, emitter AuditEmitter) *Engine {
	if emitter == nil {
		emitter = noopEmitter{}
	}
	return &Engine{cfg: cfg, emitter: emitter, now: time.Now}
}

// Check implements check(action, context) -> Decision. It evaluates every
// permission the action declares and returns allowed only if all of them
// clear; the first permission that resolves to deny or confirm short
// circuits the rest.
func (e *Engine) Check(action tool.ActionDescriptor, approvals map[string]bool) Decision {
	for _, perm := range action.Permissions {
		if approvals != nil && approvals[tool.ApprovalKey(action.ToolName, perm)] {
			continue
		}
		act, reason := e.resolve(perm, action.Risk)
		switch act {
		case ActionAllow:
			continue
		case ActionDeny:
			e.emitter.Emit("permission_denied", map[string]any{
				"tool":       action.ToolName,
				"permission": string(perm),
				"reason":     reason,
			})
			return denied(reason)
		case ActionConfirm:
			return needsApproval(reason)
		}
	}
	return allowed()
}

// resolve finds the most specific matching rule for perm: exact
// permission rule, else the parent category's rule, else the default.
// A matching time window, if any, overrides a rule's action for the
// window's duration. A matching risk rule, if any, is applied after
// category resolution as an escalation/de-escalation layer.
func (e *Engine) resolve(perm permission.Category, risk tool.RiskLevel) (Action, string) {
	act, reason := e.cfg.DefaultApproval, "default policy"

	for _, candidate := range perm.Chain() {
		if a, ok := e.ruleFor(candidate); ok {
			act, reason = a, "rule for "+string(candidate)
			break
		}
	}

	for _, rr := range e.cfg.RiskRules {
		if rr.Permission == perm && rr.Risk == risk {
			act, reason = rr.Action, "risk rule for "+string(perm)+"/"+string(risk)
			break
		}
	}

	for _, tw := range e.cfg.TimeWindows {
		if tw.Permission != perm {
			continue
		}
		if e.inWindow(tw) {
			act, reason = tw.Action, "time window for "+string(perm)
			break
		}
	}

	return act, reason
}

func (e *Engine) ruleFor(cat permission.Category) (Action, bool) {
	for _, r := range e.cfg.Rules {
		if r.Permission == cat {
			return r.Action, true
		}
	}
	return "", false
}

func (e *Engine) inWindow(tw TimeWindow) bool {
	start, err1 := time.Parse("15:04", tw.Start)
	end, err2 := time.Parse("15:04", tw.End)
	if err1 != nil || err2 != nil {
		return false
	}
	now := e.now()
	cur := time.Date(0, 1, 1, now.Hour(), now.Minute(), 0, 0, time.UTC)
	start = time.Date(0, 1, 1, start.Hour(), start.Minute(), 0, 0, time.UTC)
	end = time.Date(0, 1, 1, end.Hour(), end.Minute(), 0, 0, time.UTC)
	if start.Before(end) {
		return !cur.Before(start) && cur.Before(end)
	}
	// window wraps midnight
	return !cur.Before(start) || cur.Before(end)
}

// RequestApproval implements request_approval(action, context) -> bool.
// Autonomous low-risk actions auto-grant without a prompter. Otherwise a
// configured prompter is consulted; with none configured the default is
// deny. A grant caches every permission the action declares into
// approvals so later Check calls for the same (tool, permission) skip
// straight to allowed.
func (e *Engine) RequestApproval(ctx *tool.ExecutionContext, action tool.ActionDescriptor) bool {
	if ctx != nil && ctx.Autonomous && action.Risk == tool.RiskLow {
		e.grant(ctx, action)
		e.emitter.Emit("approval_granted", map[string]any{"tool": action.ToolName, "auto": true})
		return true
	}

	if ctx == nil || ctx.Prompter == nil {
		e.emitter.Emit("approval_denied", map[string]any{"tool": action.ToolName, "reason": "no approval prompter configured"})
		return false
	}

	granted, err := ctx.Prompter.Prompt(ctx.Context(), action)
	if err != nil || !granted {
		e.emitter.Emit("approval_denied", map[string]any{"tool": action.ToolName})
		return false
	}
	e.grant(ctx, action)
	e.emitter.Emit("approval_granted", map[string]any{"tool": action.ToolName})
	return true
}

func (e *Engine) grant(ctx *tool.ExecutionContext, action tool.ActionDescriptor) {
	if ctx.Approvals == nil {
		ctx.Approvals = make(map[string]bool)
	}
	for _, perm := range action.Permissions {
		ctx.Approvals[tool.ApprovalKey(action.ToolName, perm)] = true
	}
}

// ScopeCheck implements scope_check(tool_name, args). It is independent
// of Check/RequestApproval: a failed scope check is equivalent to
// denied, even if the category resolution would have allowed the call.
func (e *Engine) ScopeCheck(toolName string, args map[string]any) (bool, string) {
	switch {
	case strings.HasPrefix(toolName, "fs."):
		return e.scopeCheckFS(args)
	case toolName == "cmd.run":
		return e.scopeCheckCmd(args)
	case strings.HasPrefix(toolName, "net.") || strings.HasPrefix(toolName, "http."):
		return e.scopeCheckNetwork(args)
	default:
		return true, ""
	}
}

func (e *Engine) scopeCheckFS(args map[string]any) (bool, string) {
	raw, _ := args["path"].(string)
	if raw == "" {
		return true, ""
	}
	root := e.cfg.ProjectRoot
	var abs string
	if filepath.IsAbs(raw) {
		abs = filepath.Clean(raw)
	} else {
		abs = filepath.Clean(filepath.Join(root, raw))
	}
	if root != "" {
		rel, err := filepath.Rel(root, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return false, "path escapes project root: " + raw
		}
	}
	// Resolve symlinks before the allow-list match so a symlink inside
	// the workspace cannot point an otherwise-legitimate path outside it.
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	if len(e.cfg.FilesystemAllowlist) == 0 {
		return false, "no filesystem allow-list configured"
	}
	for _, pattern := range e.cfg.FilesystemAllowlist {
		if matchGlob(pattern, abs) {
			return true, ""
		}
	}
	return false, "path does not match filesystem allow-list: " + raw
}

func (e *Engine) scopeCheckCmd(args map[string]any) (bool, string) {
	command, _ := args["command"].(string)
	if len(e.cfg.CommandAllowlist) == 0 {
		return true, ""
	}
	for _, pattern := range e.cfg.CommandAllowlist {
		if matched, err := regexp.MatchString(pattern, command); err == nil && matched {
			return true, ""
		}
		if strings.HasPrefix(command, pattern) {
			return true, ""
		}
	}
	return false, "command does not match command allow-list"
}

func (e *Engine) scopeCheckNetwork(args map[string]any) (bool, string) {
	domain, _ := args["domain"].(string)
	if domain == "" {
		domain, _ = args["host"].(string)
	}
	if len(e.cfg.DomainAllowlist) == 0 {
		return false, "no domain allow-list configured"
	}
	for _, allowed := range e.cfg.DomainAllowlist {
		if allowed == domain {
			return true, ""
		}
		if strings.HasPrefix(allowed, ".") && strings.HasSuffix(domain, allowed) {
			return true, ""
		}
	}
	return false, "domain does not match domain allow-list: " + domain
}

func matchGlob(pattern, path string) bool {
	if strings.Contains(pattern, "**") {
		prefix := strings.SplitN(pattern, "**", 2)[0]
		return strings.HasPrefix(path, strings.TrimSuffix(prefix, "/"))
	}
	ok, err := filepath.Match(pattern, path)
	return err == nil && ok
}
