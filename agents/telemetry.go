// Copyright (c) Microsoft. All rights reserved.

package agents

import (
	"context"
	"log/slog"
	"time"
)

// LoggingService returns a [Service] that logs every remote call to svc
// using slog.
func LoggingService(svc Service, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &loggingService{next: svc, logger: logger}
}

type loggingService struct {
	next   Service
	logger *slog.Logger
}

func (s *loggingService) log(ctx context.Context, op string, start time.Time, err error, attrs ...any) {
	attrs = append(attrs, "op", op, "duration", time.Since(start))
	if err != nil {
		s.logger.ErrorContext(ctx, "agent service call failed", append(attrs, "error", err)...)
		return
	}
	s.logger.DebugContext(ctx, "agent service call", attrs...)
}

func (s *loggingService) CreateAgent(ctx context.Context, def AgentDefinition) (string, error) {
	start := time.Now()
	id, err := s.next.CreateAgent(ctx, def)
	s.log(ctx, "create_agent", start, err, "agent_id", id, "model", def.Model, "tools", len(def.Tools))
	return id, err
}

func (s *loggingService) DeleteAgent(ctx context.Context, agentID string) error {
	start := time.Now()
	err := s.next.DeleteAgent(ctx, agentID)
	s.log(ctx, "delete_agent", start, err, "agent_id", agentID)
	return err
}

func (s *loggingService) CreateThread(ctx context.Context, seed []ThreadMessage) (string, error) {
	start := time.Now()
	id, err := s.next.CreateThread(ctx, seed)
	s.log(ctx, "create_thread", start, err, "thread_id", id, "seed_messages", len(seed))
	return id, err
}

func (s *loggingService) DeleteThread(ctx context.Context, threadID string) error {
	start := time.Now()
	err := s.next.DeleteThread(ctx, threadID)
	s.log(ctx, "delete_thread", start, err, "thread_id", threadID)
	return err
}

func (s *loggingService) CreateMessage(ctx context.Context, threadID string, msg ThreadMessage) (string, error) {
	start := time.Now()
	id, err := s.next.CreateMessage(ctx, threadID, msg)
	s.log(ctx, "create_message", start, err, "thread_id", threadID, "message_id", id)
	return id, err
}

func (s *loggingService) ListMessages(ctx context.Context, threadID string) ([]ThreadMessage, error) {
	start := time.Now()
	msgs, err := s.next.ListMessages(ctx, threadID)
	s.log(ctx, "list_messages", start, err, "thread_id", threadID, "count", len(msgs))
	return msgs, err
}

func (s *loggingService) CreateRun(ctx context.Context, threadID, agentID string, tools []ToolConfig) (*Run, error) {
	start := time.Now()
	run, err := s.next.CreateRun(ctx, threadID, agentID, tools)
	s.log(ctx, "create_run", start, err, runAttrs(threadID, run)...)
	return run, err
}

func (s *loggingService) GetRun(ctx context.Context, threadID, runID string) (*Run, error) {
	start := time.Now()
	run, err := s.next.GetRun(ctx, threadID, runID)
	s.log(ctx, "get_run", start, err, runAttrs(threadID, run)...)
	return run, err
}

func (s *loggingService) CancelRun(ctx context.Context, threadID, runID string) error {
	start := time.Now()
	err := s.next.CancelRun(ctx, threadID, runID)
	s.log(ctx, "cancel_run", start, err, "thread_id", threadID, "run_id", runID)
	return err
}

func (s *loggingService) SubmitToolApprovals(ctx context.Context, threadID, runID string, approvals []ToolApproval) (*Run, error) {
	start := time.Now()
	run, err := s.next.SubmitToolApprovals(ctx, threadID, runID, approvals)
	s.log(ctx, "submit_tool_approvals", start, err, append(runAttrs(threadID, run), "approvals", len(approvals))...)
	return run, err
}

func (s *loggingService) ListRunSteps(ctx context.Context, threadID, runID string) ([]RunStep, error) {
	start := time.Now()
	steps, err := s.next.ListRunSteps(ctx, threadID, runID)
	s.log(ctx, "list_run_steps", start, err, "thread_id", threadID, "run_id", runID, "count", len(steps))
	return steps, err
}

func runAttrs(threadID string, run *Run) []any {
	attrs := []any{"thread_id", threadID}
	if run != nil {
		attrs = append(attrs, "run_id", run.ID, "status", run.Status)
	}
	return attrs
}
