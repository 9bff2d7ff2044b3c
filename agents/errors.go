// Copyright (c) Microsoft. All rights reserved.

package agents

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is.
var (
	// ErrExchange is the base error for exchange failures.
	ErrExchange = errors.New("exchange error")

	// ErrAgentCreationFailed indicates the remote agent or thread could not
	// be set up (service unreachable, invalid credentials, bad definition).
	ErrAgentCreationFailed = fmt.Errorf("%w: agent creation failed", ErrExchange)

	// ErrTransportFailure indicates a network, auth, or timeout failure while
	// talking to the remote service mid-exchange.
	ErrTransportFailure = fmt.Errorf("%w: transport failure", ErrExchange)

	// ErrRunFailed indicates the remote run ended in a non-success status.
	ErrRunFailed = fmt.Errorf("%w: run failed", ErrTransportFailure)

	// ErrToolApprovalTimeout indicates a tool call requiring confirmation was
	// not decided within the approval timeout.
	ErrToolApprovalTimeout = fmt.Errorf("%w: tool approval timeout", ErrExchange)

	// ErrExchangeInProgress is returned when a conversation already has an
	// exchange in flight.
	ErrExchangeInProgress = fmt.Errorf("%w: exchange in progress", ErrExchange)

	// ErrHandleReleased is returned when using a handle after EndExchange.
	ErrHandleReleased = fmt.Errorf("%w: handle released", ErrExchange)

	// ErrInvalidState indicates an operation not allowed in the handle's
	// current state.
	ErrInvalidState = fmt.Errorf("%w: invalid state", ErrExchange)

	// ErrReleaseFailed indicates remote resources could not be deleted.
	// The handle is released regardless.
	ErrReleaseFailed = fmt.Errorf("%w: release failed", ErrExchange)
)

// RunError carries the remote service's description of a failed run.
type RunError struct {
	RunID   string
	Status  RunStatus
	Code    string
	Message string
}

func (e *RunError) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("run %s %s (%s): %s", e.RunID, e.Status, e.Code, e.Message)
	case e.Message != "":
		return fmt.Sprintf("run %s %s: %s", e.RunID, e.Status, e.Message)
	default:
		return fmt.Sprintf("run %s %s", e.RunID, e.Status)
	}
}

func (e *RunError) Unwrap() error { return ErrRunFailed }

// ToolApprovalError identifies the tool call whose approval timed out.
type ToolApprovalError struct {
	CallID      string
	ServerLabel string
	Name        string
	Err         error
}

func (e *ToolApprovalError) Error() string {
	return fmt.Sprintf("tool %s/%s (call %s): %v", e.ServerLabel, e.Name, e.CallID, e.Err)
}

func (e *ToolApprovalError) Unwrap() error { return e.Err }
