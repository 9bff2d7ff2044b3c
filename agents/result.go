// Copyright (c) Microsoft. All rights reserved.

package agents

import (
	"encoding/json"

	"github.com/convergent-analytics-ai-01/UWEPD/conversation"
)

// ToolInvocation records one tool call the remote agent made during a turn.
type ToolInvocation struct {
	CallID      string
	Type        string
	ServerLabel string
	Name        string
	Arguments   json.RawMessage
	Output      json.RawMessage
	Status      string
	Approved    bool
}

// Turn converts the invocation to a conversation tool turn.
func (ti ToolInvocation) Turn() conversation.Turn {
	return conversation.NewToolTurn(conversation.ToolCall{
		CallID:      ti.CallID,
		Name:        ti.Name,
		ServerLabel: ti.ServerLabel,
		Type:        ti.Type,
		Arguments:   ti.Arguments,
		Output:      ti.Output,
	})
}

// TurnResult is the outcome of [Manager.SendTurn]. On failure it holds
// whatever completed before the error; Response is nil in that case.
type TurnResult struct {
	RunID         string
	UserMessageID string
	Invocations   []ToolInvocation
	Response      *conversation.Turn
}

// Text returns the response text, or "" if there is no response.
func (r *TurnResult) Text() string {
	if r == nil || r.Response == nil {
		return ""
	}
	return r.Response.Text
}

// Turns returns the turns to append to the conversation log: tool
// invocations in order, then the response if present.
func (r *TurnResult) Turns() []conversation.Turn {
	if r == nil {
		return nil
	}
	out := make([]conversation.Turn, 0, len(r.Invocations)+1)
	for _, ti := range r.Invocations {
		out = append(out, ti.Turn())
	}
	if r.Response != nil {
		out = append(out, *r.Response)
	}
	return out
}
