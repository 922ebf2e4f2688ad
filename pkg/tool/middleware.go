package tool

import "context"

// call is the shape every middleware wraps: given a resolved tool
// definition, validated input, and the execution context, produce a
// Result. The registry builds the innermost call from the tool's own
// Operation; middleware wraps it from there.
type call func(ctx context.Context, def *Definition, input map[string]any, ec *ExecutionContext) (*Result, error)

// Middleware wraps a call with a cross-cutting concern.
type Middleware func(next call) call

// chain composes middlewares so the first one listed runs outermost.
func chain(middlewares ...Middleware) Middleware {
	return func(next call) call {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
