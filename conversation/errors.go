// Copyright (c) Microsoft. All rights reserved.

package conversation

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is.
var (
	// ErrStore is the base error for conversation store failures.
	ErrStore = errors.New("conversation store error")

	// ErrNotFound indicates no record exists for the conversation id.
	ErrNotFound = fmt.Errorf("%w: not found", ErrStore)

	// ErrExists is returned by Create when the conversation already exists.
	ErrExists = fmt.Errorf("%w: already exists", ErrStore)

	// ErrInvalidID indicates an empty or unsafe conversation id.
	ErrInvalidID = fmt.Errorf("%w: invalid id", ErrStore)

	// ErrStorageUnavailable indicates the backing medium could not be read
	// or written.
	ErrStorageUnavailable = fmt.Errorf("%w: storage unavailable", ErrStore)
)

// StorageError provides context for a failed storage operation.
// Use errors.As to extract it from a wrapped error chain.
type StorageError struct {
	Op             string
	ConversationID string
	Err            error
}

func (e *StorageError) Error() string {
	if e.ConversationID == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Op, e.ConversationID, e.Err)
}

// Unwrap exposes both the storage sentinel and the underlying cause.
func (e *StorageError) Unwrap() []error { return []error{ErrStorageUnavailable, e.Err} }

func storageErr(op, id string, err error) error {
	return &StorageError{Op: op, ConversationID: id, Err: err}
}
