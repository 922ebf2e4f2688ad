package skillrunner

// State is the Skill Runner's explicit loop state, surfaced through
// ProgressSink notifications so a front-end can render what the runner
// is currently waiting on.
type State string

const (
	// StateAwaitingModel is set while a Chat call to the model is in flight.
	StateAwaitingModel State = "awaiting_model"
	// StateDispatchingTools is set while the model's requested tool
	// calls are being checked against policy and dispatched.
	StateDispatchingTools State = "dispatching_tools"
	// StateDone is the terminal state: the model returned no further
	// tool calls, or the loop ended on failure/exhaustion.
	StateDone State = "done"
)
