// Package skillrunner implements the Skill Runner: the agentic
// tool-use loop that drives a loaded skill to completion. The
// language-model provider is out of scope for the core (spec §1) — it
// is treated as a black-box `chat(messages, tools) -> (text,
// tool_calls)` function, so this package defines its own minimal
// ModelClient interface rather than depending on a concrete provider
// package, adapted from the teacher's pkg/toolrunner.ModelClient shape
// (itself narrowed to drop everything streaming/caching-specific that
// belonged to the teacher's own product, not this spec).
package skillrunner

import (
	"context"

	"github.com/agentrt/core/pkg/schema"
)

// Message is one entry in the conversation log passed to the model.
// Role is one of "system", "user", "assistant", or "tool".
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// ToolCall is a single tool invocation the model requested.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// ToolSpec describes one catalogued tool to the model: name,
// description, and input schema. Built as the intersection of a
// skill's allow-list and the Tool Registry (spec §4.4 step 2).
type ToolSpec struct {
	Name        string
	Description string
	InputSchema *schema.Type
}

// ChatResult is the model's response for one turn: either a final
// text answer, or one or more tool calls to dispatch before the loop
// continues.
type ChatResult struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
}

// ModelClient is the black-box LLM interface the Skill Runner drives.
// Front-ends supply a concrete implementation; the core never
// constructs one itself.
type ModelClient interface {
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatResult, error)
}
