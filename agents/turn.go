// Copyright (c) Microsoft. All rights reserved.

package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/convergent-analytics-ai-01/UWEPD/conversation"
)

// turn drives one SendTurn call.
type turn struct {
	m       *Manager
	h       *Handle
	res     *TurnResult
	current *Run

	// seen holds call ids already recorded; decisions holds approval
	// outcomes by call id.
	seen      map[string]bool
	decisions map[string]bool
}

func (t *turn) execute(ctx context.Context, text string) (err error) {
	m, h := t.m, t.h
	rctx, cancel := context.WithTimeout(ctx, m.runTimeout)
	defer cancel()

	threadID := h.ThreadID()
	msgID, err := m.svc.CreateMessage(rctx, threadID, ThreadMessage{Role: conversation.RoleUser, Text: text})
	if err != nil {
		return t.failure(ctx, "create message", err)
	}
	t.res.UserMessageID = msgID

	run, err := m.svc.CreateRun(rctx, threadID, h.AgentID(), h.tools)
	if err != nil {
		return t.failure(ctx, "create run", err)
	}
	t.setRun(run)
	t.res.RunID = run.ID
	h.setRun(run.ID)

	defer func() {
		if err != nil && !t.current.Status.Terminal() {
			t.cancelRemote(ctx)
		}
	}()

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		if err := t.collect(rctx); err != nil {
			return t.failure(ctx, "list run steps", err)
		}

		switch t.current.Status {
		case RunCompleted:
			return t.respond(rctx, ctx)
		case RunRequiresAction:
			if err := t.approve(rctx, ctx); err != nil {
				return err
			}
		default:
			if t.current.Status.Terminal() {
				return t.runFailure()
			}
		}

		select {
		case <-rctx.Done():
			return t.failure(ctx, "wait for run", rctx.Err())
		case <-ticker.C:
		}

		run, err := m.svc.GetRun(rctx, threadID, t.current.ID)
		if err != nil {
			return t.failure(ctx, "get run", err)
		}
		t.setRun(run)
	}
}

func (t *turn) setRun(r *Run) {
	if r == nil {
		r = &Run{Status: RunFailed, LastError: &LastError{Message: "service returned no run"}}
	}
	if r.ID == "" && t.current != nil {
		r.ID = t.current.ID
	}
	t.current = r
	t.m.logger.Debug("run status",
		"conversation_id", t.h.conversationID,
		"run_id", r.ID,
		"status", r.Status,
	)
}

// collect records tool calls from finished run steps not seen before.
func (t *turn) collect(ctx context.Context) error {
	steps, err := t.m.svc.ListRunSteps(ctx, t.h.ThreadID(), t.current.ID)
	if err != nil {
		return err
	}
	for _, step := range steps {
		if !step.Done() {
			continue
		}
		for _, call := range step.ToolCalls {
			if call.ID == "" || t.seen[call.ID] {
				continue
			}
			t.seen[call.ID] = true
			approved, decided := t.decisions[call.ID]
			if !decided {
				approved = step.Status == "completed"
			}
			t.res.Invocations = append(t.res.Invocations, ToolInvocation{
				CallID:      call.ID,
				Type:        call.Type,
				ServerLabel: call.ServerLabel,
				Name:        call.Name,
				Arguments:   call.Arguments,
				Output:      call.Output,
				Status:      step.Status,
				Approved:    approved,
			})
			t.m.logger.DebugContext(ctx, "tool call",
				"conversation_id", t.h.conversationID,
				"call_id", call.ID,
				"type", call.Type,
				"name", call.Name,
			)
		}
	}
	return nil
}

// approve answers the pending approvals not decided earlier in this turn
// and submits the decisions. Calls already answered are never asked or
// submitted again.
func (t *turn) approve(ctx, parent context.Context) error {
	m, h := t.m, t.h
	if len(t.current.PendingApprovals) == 0 {
		return &RunError{
			RunID:   t.current.ID,
			Status:  t.current.Status,
			Message: "run requires an action other than tool approval",
		}
	}
	var pending []PendingApproval
	for _, p := range t.current.PendingApprovals {
		if _, done := t.decisions[p.CallID]; !done {
			pending = append(pending, p)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	approvals := make([]ToolApproval, 0, len(pending))
	for _, p := range pending {
		if err := h.transition(StateToolPending); err != nil {
			return err
		}
		ok, err := t.decide(ctx, p)
		if err != nil {
			if ctx.Err() != nil {
				return t.failure(parent, "await approval", err)
			}
			return err
		}
		next := StateToolDenied
		if ok {
			next = StateToolApproved
		}
		if err := h.transition(next); err != nil {
			return err
		}
		t.decisions[p.CallID] = ok
		approvals = append(approvals, ToolApproval{CallID: p.CallID, Approve: ok})
		m.logger.InfoContext(ctx, "tool call decided",
			"conversation_id", h.conversationID,
			"server_label", p.ServerLabel,
			"name", p.Name,
			"approved", ok,
		)
	}

	run, err := m.svc.SubmitToolApprovals(ctx, h.ThreadID(), t.current.ID, approvals)
	if err != nil {
		return t.failure(parent, "submit tool approvals", err)
	}
	t.setRun(run)
	return nil
}

func (t *turn) decide(ctx context.Context, p PendingApproval) (bool, error) {
	m := t.m
	tool, known := findTool(t.h.tools, p.ServerLabel)
	if known && !tool.RequiresConfirmation() {
		return true, nil
	}
	if m.approver == nil {
		m.logger.WarnContext(ctx, "tool call requires approval but no approver is configured",
			"server_label", p.ServerLabel,
			"name", p.Name,
		)
		return false, nil
	}
	return awaitApproval(ctx, m.approver, ApprovalRequest{
		ConversationID: t.h.conversationID,
		CallID:         p.CallID,
		ServerLabel:    p.ServerLabel,
		ServerURL:      tool.ServerURL,
		Name:           p.Name,
		Arguments:      p.Arguments,
	}, m.approvalTimeout)
}

// respond picks the latest assistant message posted after this turn's
// user message as the response.
func (t *turn) respond(ctx, parent context.Context) error {
	msgs, err := t.m.svc.ListMessages(ctx, t.h.ThreadID())
	if err != nil {
		return t.failure(parent, "list messages", err)
	}
	// msgs is newest first; anything at or past this turn's own message
	// belongs to earlier exchanges or the seeded history.
	var resp conversation.Turn
	found := false
	for _, msg := range msgs {
		if msg.ID != "" && msg.ID == t.res.UserMessageID {
			break
		}
		if msg.Role == conversation.RoleAssistant {
			resp = conversation.NewAssistantTurn(msg.Text, msg.ID)
			found = true
			break
		}
	}
	if !found {
		resp = conversation.NewAssistantTurn("", "")
		t.m.logger.WarnContext(ctx, "run completed without an assistant message",
			"conversation_id", t.h.conversationID,
			"run_id", t.current.ID,
		)
	}
	if err := t.h.transition(StateResponseReady); err != nil {
		return err
	}
	t.res.Response = &resp
	return nil
}

func (t *turn) runFailure() error {
	e := &RunError{RunID: t.current.ID, Status: t.current.Status}
	if le := t.current.LastError; le != nil {
		e.Code = le.Code
		e.Message = le.Message
	}
	return e
}

// failure classifies err from a service call. Caller cancellation is
// returned as the context error; anything else, including the run timeout,
// is a transport failure.
func (t *turn) failure(parent context.Context, op string, err error) error {
	if perr := parent.Err(); perr != nil {
		return fmt.Errorf("%s: %w", op, perr)
	}
	return fmt.Errorf("%w: %s: %w", ErrTransportFailure, op, err)
}

// cancelRemote asks the service to stop the run. Failures are logged.
func (t *turn) cancelRemote(ctx context.Context) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.m.releaseTimeout)
	defer cancel()
	if err := t.m.svc.CancelRun(cctx, t.h.ThreadID(), t.current.ID); err != nil {
		t.m.logger.WarnContext(ctx, "cancel run",
			"conversation_id", t.h.conversationID,
			"run_id", t.current.ID,
			"error", err,
		)
	}
}
