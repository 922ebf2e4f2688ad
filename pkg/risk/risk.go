// Package risk derives a tool.RiskLevel for a tool call from its
// declared permissions and arguments, shared by the Skill Runner and
// the Execution Engine so both gate request_approval's autonomous
// low-risk auto-grant the same way. Adapted from the teacher's
// pkg/orchestrator/safeguards.go regex-based dangerous-command
// detector, narrowed to the handful of irreversible operations
// relevant to a local filesystem/exec runtime — the teacher's broader
// bulk-operation/credential-exposure heuristics belong to the Policy
// Engine's configurable risk rules, not a hardcoded detector.
package risk

import (
	"regexp"

	"github.com/agentrt/core/pkg/permission"
	"github.com/agentrt/core/pkg/tool"
)

var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\brm\s+-rf\b`),
	regexp.MustCompile(`(?i)\bgit\s+push\s+.*--force\b`),
	regexp.MustCompile(`(?i)\bgit\s+reset\s+--hard\b`),
	regexp.MustCompile(`(?i)\bdrop\s+(table|database)\b`),
}

// Derive assigns a RiskLevel for a call to def with the given
// arguments. A command or path argument matching a dangerous pattern is
// high risk; a read-only permission set is low risk; everything else
// (writes, execs, network) is medium.
func Derive(def *tool.Definition, args map[string]any) tool.RiskLevel {
	if text, ok := args["command"].(string); ok && matchesDangerous(text) {
		return tool.RiskHigh
	}
	if path, ok := args["path"].(string); ok && matchesDangerous(path) {
		return tool.RiskHigh
	}

	readOnly := len(def.Permissions) > 0
	for _, p := range def.Permissions {
		if p != permission.FilesystemRead {
			readOnly = false
			break
		}
	}
	if readOnly {
		return tool.RiskLow
	}
	return tool.RiskMedium
}

func matchesDangerous(s string) bool {
	for _, p := range dangerousPatterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}
