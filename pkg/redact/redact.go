// Package redact scrubs sensitive values out of audit bytes before they
// are persisted. Grounded on the teacher's key-based header masking
// (pkg/model/transport.go's sanitizeHeaders, "[REDACTED]" sentinel);
// extended with pattern matching for values that leak outside of a
// known key (bearer tokens, API keys embedded in command strings).
// Hand-rolled on regexp/strings: no library in the example pack does
// generic secret scanning, so this is the one ambient concern
// implemented directly on the standard library.
package redact

import "regexp"

const mask = "[REDACTED]"

// sensitiveKeys mirrors sanitizeHeaders' case-insensitive key match,
// generalized from HTTP header names to any map key that reaches the
// audit log (tool args, config snapshots).
var sensitiveKeys = map[string]bool{
	"authorization": true,
	"x-api-key":     true,
	"apikey":        true,
	"api_key":       true,
	"api-key":       true,
	"password":      true,
	"secret":        true,
	"token":         true,
	"access_token":  true,
	"refresh_token": true,
	"private_key":   true,
}

var patterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)bearer\s+[a-z0-9._-]{10,}`),
	regexp.MustCompile(`sk-[a-zA-Z0-9]{16,}`),
	regexp.MustCompile(`(?i)(AKIA|ASIA)[0-9A-Z]{16}`),
	regexp.MustCompile(`ghp_[a-zA-Z0-9]{30,}`),
}

// IsSensitiveKey reports whether key (case-insensitively) names a value
// that should always be masked regardless of its contents.
func IsSensitiveKey(key string) bool {
	return sensitiveKeys[lower(key)]
}

// String replaces any recognized secret pattern inside s with the
// redaction sentinel.
func String(s string) string {
	for _, p := range patterns {
		s = p.ReplaceAllString(s, mask)
	}
	return s
}

// Map walks a JSON-decoded value tree (map[string]any / []any /
// scalars) in place, masking sensitive keys outright and scrubbing
// string values for embedded secret patterns.
func Map(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			if IsSensitiveKey(k) {
				out[k] = mask
				continue
			}
			out[k] = Map(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = Map(child)
		}
		return out
	case string:
		return String(val)
	default:
		return val
	}
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
