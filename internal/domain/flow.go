package domain

// FlowState is the single active state of a payment flow controller.
type FlowState string

const (
	StateIdle                   FlowState = "idle"
	StateAwaitingInitiation     FlowState = "awaiting_initiation"
	StateWaitingForConfirmation FlowState = "waiting_for_confirmation"
	StateSucceeded              FlowState = "succeeded"
	StateFailed                 FlowState = "failed"
	StateTimedOut               FlowState = "timed_out"
	StateConnectionError        FlowState = "connection_error"
)

// AllowedTransitions lists, for every state, the states a flow may move to next.
// Closing is allowed from everywhere and therefore every entry contains StateIdle.
var AllowedTransitions = map[FlowState][]FlowState{
	StateIdle: {
		StateAwaitingInitiation,
		StateIdle,
	},
	StateAwaitingInitiation: {
		StateWaitingForConfirmation,
		StateFailed,
		StateConnectionError,
		StateIdle,
	},
	StateWaitingForConfirmation: {
		StateWaitingForConfirmation,
		StateSucceeded,
		StateFailed,
		StateTimedOut,
		StateConnectionError,
		StateIdle,
	},
	StateSucceeded:       {StateIdle},
	StateFailed:          {StateAwaitingInitiation, StateIdle},
	StateTimedOut:        {StateAwaitingInitiation, StateIdle},
	StateConnectionError: {StateAwaitingInitiation, StateIdle},
}

// CanTransition checks if a flow may move from one state to another.
func CanTransition(from, to FlowState) bool {
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the state waits for explicit user action.
func (s FlowState) IsTerminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateTimedOut, StateConnectionError:
		return true
	}
	return false
}

// IsRetryable reports whether Retry may start a new attempt from s.
func (s FlowState) IsRetryable() bool {
	return s == StateFailed || s == StateTimedOut || s == StateConnectionError
}

// IsBusy reports whether a request is outstanding; the submit action is disabled meanwhile.
func (s FlowState) IsBusy() bool {
	return s == StateAwaitingInitiation || s == StateWaitingForConfirmation
}
