package session

import (
	"slices"

	"github.com/hansbyte/pairgate/pkg/api"
)

// StateTransitions maps states to their valid successor states
type StateTransitions[T comparable] map[T][]T

// sessionTransitions defines the session status lifecycle. A status never
// regresses: a close after connecting keeps the session at connected until
// a terminal status is reached
var sessionTransitions = StateTransitions[api.SessionStatus]{
	api.SessionPending: {
		api.SessionCodeIssued,
		api.SessionConnected,
		api.SessionUnauthorized,
		api.SessionFailed,
	},
	api.SessionCodeIssued: {
		api.SessionConnected,
		api.SessionUnauthorized,
		api.SessionFailed,
	},
	api.SessionConnected: {
		api.SessionExported,
		api.SessionUnauthorized,
		api.SessionFailed,
	},
	api.SessionExported:     {},
	api.SessionUnauthorized: {},
	api.SessionFailed:       {},
}

// CanTransition checks if a transition from one state to another is valid
func (t StateTransitions[T]) CanTransition(from, to T) bool {
	return slices.Contains(t[from], to)
}

// IsTerminal returns true if the given state has no valid transitions
// out of it
func (t StateTransitions[T]) IsTerminal(state T) bool {
	allowed, ok := t[state]
	return ok && len(allowed) == 0
}
