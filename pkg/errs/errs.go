// Package errs defines the error kinds surfaced by the runtime core.
package errs

import "fmt"

// Kind identifies the class of a runtime error. Callers use errors.As to
// recover a *Error and switch on Kind rather than matching message text.
type Kind string

const (
	InvalidInput         Kind = "invalid_input"
	ToolNotFound         Kind = "tool_not_found"
	ToolDisabled         Kind = "tool_disabled"
	ToolNotAllowed       Kind = "tool_not_allowed"
	PermissionDenied     Kind = "permission_denied"
	ApprovalDenied       Kind = "approval_denied"
	Timeout              Kind = "timeout"
	ScopeViolation       Kind = "scope_violation"
	SkillNotFound        Kind = "skill_not_found"
	SkillManifestInvalid Kind = "skill_manifest_invalid"
	ValidatorFailed      Kind = "validator_failed"
	VerificationFailed   Kind = "verification_failed"
	UnmetDependencies    Kind = "unmet_dependencies"
	PlanParseError       Kind = "plan_parse_error"
	RunAborted           Kind = "run_aborted"
)

// Error is the concrete error type carried across every dispatch boundary
// in the core. Reason is always human-readable; Kind is always one of the
// constants above.
type Error struct {
	Kind   Kind
	Reason string
	// Details carries structured context, e.g. a list of schema violations
	// or the dependency ids that were unmet. Never required by callers.
	Details []string
}

func (e *Error) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Reason, e.Details)
}

// New builds an *Error of the given kind.
func New(kind Kind, reason string, details ...string) *Error {
	return &Error{Kind: kind, Reason: reason, Details: details}
}

// Is lets errors.Is(err, errs.ToolNotFound) work by comparing Kind; wrap
// Kind values with KindError for that purpose.
type KindError Kind

func (k KindError) Error() string { return string(k) }

// Is reports whether target's Kind matches k.
func (e *Error) Is(target error) bool {
	if ke, ok := target.(KindError); ok {
		return e.Kind == Kind(ke)
	}
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}
