// Copyright (c) Microsoft. All rights reserved.

// Package chat ties the conversation store to the agent manager: each
// question is recorded, answered by one remote exchange, and the tool calls
// and answer are recorded after it.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/convergent-analytics-ai-01/UWEPD/agents"
	"github.com/convergent-analytics-ai-01/UWEPD/conversation"
)

// ErrEmptyMessage is returned by Ask for blank input.
var ErrEmptyMessage = errors.New("empty message")

// Agents runs exchanges. [*agents.Manager] implements it.
type Agents interface {
	BeginExchange(ctx context.Context, conversationID string, history []conversation.Turn, opts ...agents.ExchangeOption) (*agents.Handle, error)
	SendTurn(ctx context.Context, h *agents.Handle, text string) (*agents.TurnResult, error)
	EndExchange(ctx context.Context, h *agents.Handle) error
}

// Session answers questions within stored conversations.
type Session struct {
	store  conversation.Store
	agents Agents
	logger *slog.Logger
	opts   []agents.ExchangeOption
}

// Option configures a [Session].
type Option func(*Session)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithExchangeOptions applies opts to every exchange.
func WithExchangeOptions(opts ...agents.ExchangeOption) Option {
	return func(s *Session) { s.opts = append(s.opts, opts...) }
}

// New creates a Session.
func New(store conversation.Store, a Agents, opts ...Option) *Session {
	s := &Session{store: store, agents: a}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Start creates a new empty conversation and returns its id.
func (s *Session) Start(ctx context.Context) (string, error) {
	id := conversation.NewID()
	if err := s.store.Create(ctx, id); err != nil {
		return "", fmt.Errorf("start conversation: %w", err)
	}
	s.logger.DebugContext(ctx, "conversation started", "conversation_id", id)
	return id, nil
}

// Ask records text as a user turn, runs one exchange, and records the tool
// invocations and the response in that order. Invocations completed before
// a failed exchange are recorded too. The returned result may be non-nil
// alongside an error.
func (s *Session) Ask(ctx context.Context, id, text string) (*agents.TurnResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	history, err := s.store.Load(ctx, id)
	if err != nil && !errors.Is(err, conversation.ErrNotFound) {
		return nil, fmt.Errorf("load conversation: %w", err)
	}

	h, err := s.agents.BeginExchange(ctx, id, history, s.opts...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := s.agents.EndExchange(ctx, h); err != nil {
			s.logger.WarnContext(ctx, "release exchange",
				"conversation_id", id,
				"error", err,
			)
		}
	}()

	if err := s.store.Append(ctx, id, conversation.NewUserTurn(text)); err != nil {
		return nil, fmt.Errorf("record question: %w", err)
	}

	res, xerr := s.agents.SendTurn(ctx, h, text)
	if turns := res.Turns(); len(turns) > 0 {
		// Detached so a cancelled exchange still records what completed.
		if err := s.store.Append(context.WithoutCancel(ctx), id, turns...); err != nil {
			return res, errors.Join(xerr, fmt.Errorf("record answer: %w", err))
		}
	}
	if xerr != nil {
		return res, xerr
	}
	s.logger.DebugContext(ctx, "question answered",
		"conversation_id", id,
		"tool_calls", len(res.Invocations),
	)
	return res, nil
}

// History returns the conversation's turns in order.
func (s *Session) History(ctx context.Context, id string) ([]conversation.Turn, error) {
	return s.store.Load(ctx, id)
}

// Conversations lists stored conversations newest first.
func (s *Session) Conversations(ctx context.Context) ([]conversation.Summary, error) {
	return conversation.Summarize(ctx, s.store)
}

// Delete removes a stored conversation.
func (s *Session) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}
