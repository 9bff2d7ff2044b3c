// Copyright (c) Microsoft. All rights reserved.

package agents

import (
	"context"
	"encoding/json"

	"github.com/convergent-analytics-ai-01/UWEPD/conversation"
)

// Service is the remote agent service the [Manager] drives. Implementations
// must be safe for concurrent use.
type Service interface {
	CreateAgent(ctx context.Context, def AgentDefinition) (agentID string, err error)
	DeleteAgent(ctx context.Context, agentID string) error

	// CreateThread creates a remote thread seeded with prior messages,
	// oldest first.
	CreateThread(ctx context.Context, seed []ThreadMessage) (threadID string, err error)
	DeleteThread(ctx context.Context, threadID string) error

	CreateMessage(ctx context.Context, threadID string, msg ThreadMessage) (messageID string, err error)

	// ListMessages returns thread messages newest first.
	ListMessages(ctx context.Context, threadID string) ([]ThreadMessage, error)

	// CreateRun starts the agent on the thread. tools carries per-run tool
	// settings such as approval policy and headers.
	CreateRun(ctx context.Context, threadID, agentID string, tools []ToolConfig) (*Run, error)
	GetRun(ctx context.Context, threadID, runID string) (*Run, error)
	CancelRun(ctx context.Context, threadID, runID string) error

	// SubmitToolApprovals answers a run paused in [RunRequiresAction].
	SubmitToolApprovals(ctx context.Context, threadID, runID string, approvals []ToolApproval) (*Run, error)

	// ListRunSteps returns the run's steps oldest first.
	ListRunSteps(ctx context.Context, threadID, runID string) ([]RunStep, error)
}

// AgentDefinition describes the ephemeral agent created for one exchange.
type AgentDefinition struct {
	Name         string
	Model        string
	Instructions string
	Tools        []ToolConfig
}

// ThreadMessage is a message on a remote thread.
type ThreadMessage struct {
	ID   string
	Role conversation.Role
	Text string
}

// RunStatus is the lifecycle status of a remote run.
type RunStatus string

const (
	RunQueued         RunStatus = "queued"
	RunInProgress     RunStatus = "in_progress"
	RunRequiresAction RunStatus = "requires_action"
	RunCancelling     RunStatus = "cancelling"
	RunCancelled      RunStatus = "cancelled"
	RunFailed         RunStatus = "failed"
	RunCompleted      RunStatus = "completed"
	RunExpired        RunStatus = "expired"
	RunIncomplete     RunStatus = "incomplete"
)

// Terminal reports whether the run can no longer change status.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunCompleted, RunFailed, RunCancelled, RunExpired, RunIncomplete:
		return true
	}
	return false
}

// Run is a snapshot of a remote run.
type Run struct {
	ID       string
	ThreadID string
	Status   RunStatus

	// PendingApprovals is set when Status is RunRequiresAction.
	PendingApprovals []PendingApproval

	// LastError describes why the run failed, if it did.
	LastError *LastError
}

// LastError is the service's error report for a run.
type LastError struct {
	Code    string
	Message string
}

// PendingApproval is a tool call waiting for a decision.
type PendingApproval struct {
	CallID      string
	ServerLabel string
	Name        string
	Arguments   json.RawMessage
}

// ToolApproval answers one [PendingApproval].
type ToolApproval struct {
	CallID  string
	Approve bool
}

// RunStep is one step of a run, as reported by the service.
type RunStep struct {
	ID        string
	Status    string
	ToolCalls []StepToolCall
}

// Done reports whether the step finished, successfully or not.
func (s RunStep) Done() bool {
	switch s.Status {
	case "completed", "failed", "cancelled", "expired":
		return true
	}
	return false
}

// StepToolCall is a tool call recorded in a run step.
type StepToolCall struct {
	ID          string
	Type        string
	Name        string
	ServerLabel string
	Arguments   json.RawMessage
	Output      json.RawMessage
}
