// Copyright (c) Microsoft. All rights reserved.

package azureagents

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is.
var (
	// ErrService is the base error for agent service failures.
	ErrService = errors.New("agent service error")

	// ErrAuth indicates an authentication or authorization failure,
	// including failure to acquire a token.
	ErrAuth = fmt.Errorf("%w: authentication", ErrService)

	// ErrNotFound indicates the agent, thread, or run does not exist.
	ErrNotFound = fmt.Errorf("%w: not found", ErrService)

	// ErrInvalidRequest indicates the request was malformed or invalid.
	ErrInvalidRequest = fmt.Errorf("%w: invalid request", ErrService)

	// ErrRateLimited indicates the service throttled the request.
	ErrRateLimited = fmt.Errorf("%w: rate limited", ErrService)

	// ErrInvalidResponse indicates the service returned an unexpected body.
	ErrInvalidResponse = fmt.Errorf("%w: invalid response", ErrService)
)

// ServiceError provides rich context for failed service calls.
// Use errors.As to extract it from a wrapped error chain.
type ServiceError struct {
	StatusCode int
	Message    string
	Code       string
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("agent service error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("agent service error %d: %s", e.StatusCode, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Err }
