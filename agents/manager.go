// Copyright (c) Microsoft. All rights reserved.

package agents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/convergent-analytics-ai-01/UWEPD/conversation"
)

// Defaults applied by [NewManager].
const (
	DefaultAgentName       = "my-mcp-agent"
	DefaultInstructions    = "You are a helpful agent that can use MCP tools to assist users. Use the available MCP tools to answer questions and perform tasks."
	DefaultPollInterval    = 500 * time.Millisecond
	DefaultRunTimeout      = 2 * time.Minute
	DefaultApprovalTimeout = 60 * time.Second
	DefaultReleaseTimeout  = 15 * time.Second
	DefaultHistoryWindow   = 20
)

// Manager creates and releases remote agents for conversation exchanges.
type Manager struct {
	svc             Service
	logger          *slog.Logger
	model           string
	name            string
	instructions    string
	tools           []ToolConfig
	approver        Approver
	pollInterval    time.Duration
	runTimeout      time.Duration
	approvalTimeout time.Duration
	releaseTimeout  time.Duration
	historyWindow   int
	keepThreads     bool

	mu     sync.Mutex
	active map[string]*Handle
}

// ManagerOption configures a [Manager].
type ManagerOption func(*Manager)

// WithModel sets the model deployment the remote agents use.
func WithModel(model string) ManagerOption {
	return func(m *Manager) { m.model = model }
}

// WithAgentName sets the name given to each remote agent.
func WithAgentName(name string) ManagerOption {
	return func(m *Manager) { m.name = name }
}

// WithInstructions sets the agent's system instructions.
func WithInstructions(instructions string) ManagerOption {
	return func(m *Manager) { m.instructions = instructions }
}

// WithTools sets the MCP tools available to every exchange.
func WithTools(tools ...ToolConfig) ManagerOption {
	return func(m *Manager) { m.tools = append(m.tools, tools...) }
}

// WithApprover sets the approver consulted for tools with [ApprovalAlways].
// Without one such calls are denied.
func WithApprover(a Approver) ManagerOption {
	return func(m *Manager) { m.approver = a }
}

// WithPollInterval sets how often run status is polled.
func WithPollInterval(d time.Duration) ManagerOption {
	return func(m *Manager) { m.pollInterval = d }
}

// WithRunTimeout bounds the time from posting a message to a terminal run.
func WithRunTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.runTimeout = d }
}

// WithApprovalTimeout bounds the wait for each approval decision.
func WithApprovalTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.approvalTimeout = d }
}

// WithReleaseTimeout bounds remote cleanup in EndExchange.
func WithReleaseTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.releaseTimeout = d }
}

// WithHistoryWindow sets how many prior user and assistant turns seed the
// remote thread. Zero or less sends no history.
func WithHistoryWindow(n int) ManagerOption {
	return func(m *Manager) { m.historyWindow = n }
}

// WithKeepThreads leaves remote threads in place on release.
func WithKeepThreads(keep bool) ManagerOption {
	return func(m *Manager) { m.keepThreads = keep }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a Manager driving svc.
func NewManager(svc Service, opts ...ManagerOption) *Manager {
	m := &Manager{
		svc:             svc,
		name:            DefaultAgentName,
		instructions:    DefaultInstructions,
		pollInterval:    DefaultPollInterval,
		runTimeout:      DefaultRunTimeout,
		approvalTimeout: DefaultApprovalTimeout,
		releaseTimeout:  DefaultReleaseTimeout,
		historyWindow:   DefaultHistoryWindow,
		active:          make(map[string]*Handle),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.pollInterval <= 0 {
		m.pollInterval = DefaultPollInterval
	}
	m.tools = cloneTools(m.tools)
	return m
}

// Tools returns a copy of the default tool set.
func (m *Manager) Tools() []ToolConfig { return cloneTools(m.tools) }

// Active returns the number of live handles.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// ExchangeOption configures a single exchange.
type ExchangeOption func(*exchangeConfig)

type exchangeConfig struct {
	tools        []ToolConfig
	toolsSet     bool
	instructions string
}

// WithExchangeTools replaces the manager's tool set for one exchange.
func WithExchangeTools(tools ...ToolConfig) ExchangeOption {
	return func(c *exchangeConfig) {
		c.tools = tools
		c.toolsSet = true
	}
}

// WithExchangeInstructions appends instructions for one exchange.
func WithExchangeInstructions(instructions string) ExchangeOption {
	return func(c *exchangeConfig) { c.instructions = instructions }
}

// BeginExchange acquires a remote agent and a thread seeded with the tail
// of history. Only one handle per conversation may be live at a time.
func (m *Manager) BeginExchange(ctx context.Context, conversationID string, history []conversation.Turn, opts ...ExchangeOption) (*Handle, error) {
	if err := conversation.Validate(conversationID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAgentCreationFailed, err)
	}

	var cfg exchangeConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	tools := m.tools
	if cfg.toolsSet {
		tools = cfg.tools
	}
	tools = cloneTools(tools)
	for _, t := range tools {
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAgentCreationFailed, err)
		}
	}

	h := newHandle(uuid.NewString(), conversationID, tools)
	m.mu.Lock()
	if _, busy := m.active[conversationID]; busy {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: conversation %s", ErrExchangeInProgress, conversationID)
	}
	m.active[conversationID] = h
	m.mu.Unlock()

	def := AgentDefinition{
		Name:         m.name,
		Model:        m.model,
		Instructions: joinInstructions(m.instructions, cfg.instructions),
		Tools:        tools,
	}
	agentID, err := m.svc.CreateAgent(ctx, def)
	if err != nil {
		m.abandon(ctx, h, "", "")
		return nil, fmt.Errorf("%w: create agent: %w", ErrAgentCreationFailed, err)
	}

	threadID, err := m.svc.CreateThread(ctx, seedMessages(history, m.historyWindow))
	if err != nil {
		m.abandon(ctx, h, agentID, "")
		return nil, fmt.Errorf("%w: create thread: %w", ErrAgentCreationFailed, err)
	}

	h.setRemote(agentID, threadID)
	if err := h.transition(StateAgentAcquired); err != nil {
		m.abandon(ctx, h, agentID, threadID)
		return nil, fmt.Errorf("%w: %w", ErrAgentCreationFailed, err)
	}
	m.logger.DebugContext(ctx, "exchange started",
		"conversation_id", conversationID,
		"handle_id", h.id,
		"agent_id", agentID,
		"thread_id", threadID,
	)
	return h, nil
}

// abandon cleans up after a failed BeginExchange.
func (m *Manager) abandon(ctx context.Context, h *Handle, agentID, threadID string) {
	h.setRemote(agentID, threadID)
	if err := m.EndExchange(ctx, h); err != nil {
		m.logger.WarnContext(ctx, "cleanup after failed agent creation",
			"conversation_id", h.conversationID,
			"error", err,
		)
	}
}

// SendTurn posts text to the handle's thread and waits for the agent's
// response. On error the returned TurnResult holds everything that
// completed before the failure.
func (m *Manager) SendTurn(ctx context.Context, h *Handle, text string) (*TurnResult, error) {
	if h == nil {
		return nil, fmt.Errorf("%w: nil handle", ErrInvalidState)
	}
	if !h.busy.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("%w: handle %s", ErrExchangeInProgress, h.id)
	}
	defer h.busy.Store(false)

	switch st := h.State(); st {
	case StateAgentAcquired:
	case StateReleased:
		return nil, ErrHandleReleased
	default:
		return nil, fmt.Errorf("%w: cannot send in state %s", ErrInvalidState, st)
	}

	t := &turn{
		m:         m,
		h:         h,
		res:       &TurnResult{},
		seen:      make(map[string]bool),
		decisions: make(map[string]bool),
	}
	if err := t.execute(ctx, text); err != nil {
		// A concurrent EndExchange may already have released the handle.
		_ = h.transition(StateFailed)
		return t.res, err
	}
	return t.res, nil
}

// EndExchange deletes the handle's remote resources and releases it. It is
// safe to call more than once. Cleanup ignores ctx cancellation and is
// bounded by the release timeout instead. Deletion errors are returned but
// the handle is released regardless.
func (m *Manager) EndExchange(ctx context.Context, h *Handle) error {
	if h == nil || !h.release() {
		return nil
	}

	m.mu.Lock()
	if m.active[h.conversationID] == h {
		delete(m.active, h.conversationID)
	}
	m.mu.Unlock()

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.releaseTimeout)
	defer cancel()

	agentID, threadID := h.remote()
	var errs []error
	if threadID != "" && !m.keepThreads {
		if err := m.svc.DeleteThread(rctx, threadID); err != nil {
			errs = append(errs, fmt.Errorf("%w: delete thread %s: %w", ErrReleaseFailed, threadID, err))
		}
	}
	if agentID != "" {
		if err := m.svc.DeleteAgent(rctx, agentID); err != nil {
			errs = append(errs, fmt.Errorf("%w: delete agent %s: %w", ErrReleaseFailed, agentID, err))
		}
	}
	m.logger.DebugContext(ctx, "exchange released",
		"conversation_id", h.conversationID,
		"handle_id", h.id,
		"states", h.History(),
	)
	return errors.Join(errs...)
}

// Exchange runs BeginExchange, SendTurn, and EndExchange. The handle is
// released on every path; a release failure is joined to the result error.
func (m *Manager) Exchange(ctx context.Context, conversationID string, history []conversation.Turn, text string, opts ...ExchangeOption) (res *TurnResult, err error) {
	h, err := m.BeginExchange(ctx, conversationID, history, opts...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr := m.EndExchange(ctx, h); rerr != nil {
			m.logger.WarnContext(ctx, "release failed",
				"conversation_id", conversationID,
				"error", rerr,
			)
			err = errors.Join(err, rerr)
		}
	}()
	return m.SendTurn(ctx, h, text)
}

// seedMessages returns the last window user and assistant turns that carry
// text. Tool records stay local.
func seedMessages(history []conversation.Turn, window int) []ThreadMessage {
	if window <= 0 {
		return nil
	}
	var msgs []ThreadMessage
	for _, t := range history {
		if t.Role != conversation.RoleUser && t.Role != conversation.RoleAssistant {
			continue
		}
		if strings.TrimSpace(t.Text) == "" {
			continue
		}
		msgs = append(msgs, ThreadMessage{Role: t.Role, Text: t.Text})
	}
	if len(msgs) > window {
		msgs = msgs[len(msgs)-window:]
	}
	return msgs
}

func joinInstructions(base, extra string) string {
	switch {
	case extra == "":
		return base
	case base == "":
		return extra
	default:
		return base + "\n\n" + extra
	}
}
