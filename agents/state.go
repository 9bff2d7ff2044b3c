// Copyright (c) Microsoft. All rights reserved.

package agents

import "fmt"

// State is the lifecycle state of a [Handle].
type State string

const (
	StateIdle          State = "idle"
	StateAgentAcquired State = "agent_acquired"
	StateToolPending   State = "tool_pending"
	StateToolApproved  State = "tool_approved"
	StateToolDenied    State = "tool_denied"
	StateResponseReady State = "response_ready"
	StateFailed        State = "failed"
	StateReleased      State = "released"
)

var transitions = map[State][]State{
	StateIdle:          {StateAgentAcquired, StateFailed},
	StateAgentAcquired: {StateToolPending, StateResponseReady, StateFailed, StateReleased},
	StateToolPending:   {StateToolApproved, StateToolDenied, StateFailed},
	StateToolApproved:  {StateToolPending, StateResponseReady, StateFailed},
	StateToolDenied:    {StateToolPending, StateResponseReady, StateFailed},
	StateResponseReady: {StateReleased},
	StateFailed:        {StateReleased},
	StateReleased:      {},
}

// CanTransition reports whether moving from one state to another is allowed.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves the state.
func (s State) IsTerminal() bool { return len(transitions[s]) == 0 }

// midExchange reports whether the state belongs to an unfinished turn.
func (s State) midExchange() bool {
	switch s {
	case StateToolPending, StateToolApproved, StateToolDenied:
		return true
	}
	return false
}

func transitionError(from, to State) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidState, from, to)
}
