// Copyright (c) Microsoft. All rights reserved.

// Package conversation persists per-conversation turn logs.
//
// A conversation is an append-only sequence of [Turn] values keyed by an
// opaque identifier. Turns are never edited or reordered once written.
// [FileStore] keeps one JSON document per conversation on disk;
// [MemoryStore] keeps everything in process memory.
package conversation

import (
	"encoding/json"
	"time"
)

// Role identifies the author of a [Turn].
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Turn is one immutable entry in a conversation log.
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text,omitempty"`
	Timestamp time.Time `json:"ts"`
	MessageID string    `json:"message_id,omitempty"`

	// Tool is set only for RoleTool turns.
	Tool *ToolCall `json:"tool,omitempty"`
}

// ToolCall is the trace of one remote tool invocation. Arguments and Output
// are opaque payloads recorded as received.
type ToolCall struct {
	CallID      string          `json:"call_id,omitempty"`
	Name        string          `json:"name"`
	ServerLabel string          `json:"server_label,omitempty"`
	Type        string          `json:"type,omitempty"`
	Arguments   json.RawMessage `json:"arguments,omitempty"`
	Output      json.RawMessage `json:"output,omitempty"`
}

// NewUserTurn creates a user turn stamped with the current UTC time.
func NewUserTurn(text string) Turn {
	return Turn{Role: RoleUser, Text: text, Timestamp: now()}
}

// NewAssistantTurn creates an agent response turn.
func NewAssistantTurn(text, messageID string) Turn {
	return Turn{Role: RoleAssistant, Text: text, MessageID: messageID, Timestamp: now()}
}

// NewToolTurn creates a tool invocation record turn.
func NewToolTurn(call ToolCall) Turn {
	c := call.clone()
	return Turn{Role: RoleTool, Text: call.Name, Tool: &c, Timestamp: now()}
}

// IsTool reports whether the turn records a tool invocation.
func (t Turn) IsTool() bool { return t.Role == RoleTool && t.Tool != nil }

func (t Turn) clone() Turn {
	if t.Tool != nil {
		c := t.Tool.clone()
		t.Tool = &c
	}
	return t
}

func (c ToolCall) clone() ToolCall {
	if c.Arguments != nil {
		c.Arguments = append(json.RawMessage(nil), c.Arguments...)
	}
	if c.Output != nil {
		c.Output = append(json.RawMessage(nil), c.Output...)
	}
	return c
}

func cloneTurns(turns []Turn) []Turn {
	out := make([]Turn, len(turns))
	for i, t := range turns {
		out[i] = t.clone()
	}
	return out
}

// now is replaced in tests that need deterministic timestamps.
var now = func() time.Time { return time.Now().UTC() }
