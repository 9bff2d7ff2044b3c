// Copyright (c) Microsoft. All rights reserved.

package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// ApprovalRequest describes a tool call awaiting confirmation.
type ApprovalRequest struct {
	ConversationID string
	CallID         string
	ServerLabel    string
	ServerURL      string
	Name           string
	Arguments      json.RawMessage
}

// Approver decides whether a tool call may proceed. Approve should return
// promptly once ctx is done.
type Approver interface {
	Approve(ctx context.Context, req ApprovalRequest) (bool, error)
}

// ApproverFunc adapts a function to [Approver].
type ApproverFunc func(ctx context.Context, req ApprovalRequest) (bool, error)

// Approve calls f.
func (f ApproverFunc) Approve(ctx context.Context, req ApprovalRequest) (bool, error) {
	return f(ctx, req)
}

// AutoApprove approves every request.
var AutoApprove Approver = ApproverFunc(func(context.Context, ApprovalRequest) (bool, error) {
	return true, nil
})

type decision struct {
	approved bool
	err      error
}

// awaitApproval asks approver about req, waiting at most timeout. The
// approver runs in its own goroutine so a blocked approver cannot hold the
// exchange past the timeout.
func awaitApproval(ctx context.Context, approver Approver, req ApprovalRequest, timeout time.Duration) (bool, error) {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ch := make(chan decision, 1)
	go func() {
		ok, err := approver.Approve(actx, req)
		ch <- decision{approved: ok, err: err}
	}()

	select {
	case d := <-ch:
		if d.err == nil {
			return d.approved, nil
		}
		if ctx.Err() == nil && actx.Err() != nil {
			return false, approvalTimeout(req, timeout)
		}
		return false, fmt.Errorf("approve %s/%s: %w", req.ServerLabel, req.Name, d.err)
	case <-actx.Done():
		if err := ctx.Err(); err != nil {
			return false, err
		}
		return false, approvalTimeout(req, timeout)
	}
}

func approvalTimeout(req ApprovalRequest, timeout time.Duration) error {
	return &ToolApprovalError{
		CallID:      req.CallID,
		ServerLabel: req.ServerLabel,
		Name:        req.Name,
		Err:         fmt.Errorf("%w after %s", ErrToolApprovalTimeout, timeout),
	}
}
