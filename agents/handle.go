// Copyright (c) Microsoft. All rights reserved.

package agents

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Handle is the lease on one remote agent and thread for a single exchange.
// It is owned by the [Manager] that created it and is safe for concurrent
// use.
type Handle struct {
	id             string
	conversationID string
	tools          []ToolConfig
	created        time.Time

	// busy guards against concurrent SendTurn calls.
	busy atomic.Bool

	mu       sync.Mutex
	agentID  string
	threadID string
	runID    string
	state    State
	history  []State
}

func newHandle(id, conversationID string, tools []ToolConfig) *Handle {
	return &Handle{
		id:             id,
		conversationID: conversationID,
		tools:          tools,
		created:        time.Now(),
		state:          StateIdle,
		history:        []State{StateIdle},
	}
}

// ID returns the handle's local identifier.
func (h *Handle) ID() string { return h.id }

// ConversationID returns the conversation the handle serves.
func (h *Handle) ConversationID() string { return h.conversationID }

// AgentID returns the remote agent id, empty until acquired.
func (h *Handle) AgentID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.agentID
}

// ThreadID returns the remote thread id, empty until acquired.
func (h *Handle) ThreadID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.threadID
}

// RunID returns the most recent remote run id.
func (h *Handle) RunID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.runID
}

// Tools returns a copy of the tool configuration fixed for this exchange.
func (h *Handle) Tools() []ToolConfig { return cloneTools(h.tools) }

// State returns the current lifecycle state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// History returns every state the handle has been in, in order.
func (h *Handle) History() []State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.history)
}

func (h *Handle) transition(to State) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.transitionLocked(to)
}

func (h *Handle) transitionLocked(to State) error {
	if !CanTransition(h.state, to) {
		return transitionError(h.state, to)
	}
	h.state = to
	h.history = append(h.history, to)
	return nil
}

// release drives the handle to Released from any state, passing through
// Failed when the exchange was unfinished. It reports false if the handle
// was already released.
func (h *Handle) release() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch {
	case h.state == StateReleased:
		return false
	case h.state == StateIdle || h.state.midExchange():
		_ = h.transitionLocked(StateFailed)
	}
	_ = h.transitionLocked(StateReleased)
	return true
}

func (h *Handle) setRemote(agentID, threadID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.agentID = agentID
	h.threadID = threadID
}

func (h *Handle) setRun(runID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runID = runID
}

// remote returns the ids to delete on release.
func (h *Handle) remote() (agentID, threadID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.agentID, h.threadID
}
