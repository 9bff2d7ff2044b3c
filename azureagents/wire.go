// Copyright (c) Microsoft. All rights reserved.

package azureagents

import (
	"encoding/json"
	"strings"

	"github.com/convergent-analytics-ai-01/UWEPD/agents"
	"github.com/convergent-analytics-ai-01/UWEPD/conversation"
)

// Request and response shapes of the Agents REST API.

type mcpTool struct {
	Type         string   `json:"type"`
	ServerLabel  string   `json:"server_label"`
	ServerURL    string   `json:"server_url"`
	AllowedTools []string `json:"allowed_tools,omitempty"`
}

type createAgentRequest struct {
	Model        string    `json:"model"`
	Name         string    `json:"name,omitempty"`
	Instructions string    `json:"instructions,omitempty"`
	Tools        []mcpTool `json:"tools,omitempty"`
}

type objectResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}

type messageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type createThreadRequest struct {
	Messages []messageRequest `json:"messages,omitempty"`
}

type messageObject struct {
	ID      string        `json:"id"`
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type string `json:"type"`
	Text *struct {
		Value string `json:"value"`
	} `json:"text,omitempty"`
}

type listResponse[T any] struct {
	Data    []T    `json:"data"`
	HasMore bool   `json:"has_more"`
	LastID  string `json:"last_id"`
}

type mcpToolResource struct {
	ServerLabel     string            `json:"server_label"`
	RequireApproval string            `json:"require_approval,omitempty"`
	Headers         map[string]string `json:"headers,omitempty"`
}

type toolResources struct {
	MCP []mcpToolResource `json:"mcp,omitempty"`
}

type createRunRequest struct {
	AssistantID   string         `json:"assistant_id"`
	ToolResources *toolResources `json:"tool_resources,omitempty"`
}

type runObject struct {
	ID             string `json:"id"`
	ThreadID       string `json:"thread_id"`
	Status         string `json:"status"`
	RequiredAction *struct {
		Type               string `json:"type"`
		SubmitToolApproval *struct {
			ToolCalls []toolCallObject `json:"tool_calls"`
		} `json:"submit_tool_approval,omitempty"`
	} `json:"required_action,omitempty"`
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error,omitempty"`
}

type toolCallObject struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	Arguments   string `json:"arguments"`
	Output      string `json:"output"`
	ServerLabel string `json:"server_label"`
}

type submitApprovalsRequest struct {
	ToolApprovals []toolApproval `json:"tool_approvals"`
}

type toolApproval struct {
	ToolCallID string `json:"tool_call_id"`
	Approve    bool   `json:"approve"`
}

type runStepObject struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	StepDetails struct {
		Type      string           `json:"type"`
		ToolCalls []toolCallObject `json:"tool_calls"`
	} `json:"step_details"`
}

func agentRequest(def agents.AgentDefinition) createAgentRequest {
	req := createAgentRequest{
		Model:        def.Model,
		Name:         def.Name,
		Instructions: def.Instructions,
	}
	for _, t := range def.Tools {
		req.Tools = append(req.Tools, mcpTool{
			Type:         "mcp",
			ServerLabel:  t.Label,
			ServerURL:    t.ServerURL,
			AllowedTools: t.AllowedTools,
		})
	}
	return req
}

func runRequest(agentID string, tools []agents.ToolConfig) createRunRequest {
	req := createRunRequest{AssistantID: agentID}
	if len(tools) == 0 {
		return req
	}
	res := &toolResources{}
	for _, t := range tools {
		policy := t.Approval
		if policy == "" {
			policy = agents.ApprovalNever
		}
		res.MCP = append(res.MCP, mcpToolResource{
			ServerLabel:     t.Label,
			RequireApproval: string(policy),
			Headers:         t.Headers,
		})
	}
	req.ToolResources = res
	return req
}

func (r *runObject) toRun() *agents.Run {
	run := &agents.Run{
		ID:       r.ID,
		ThreadID: r.ThreadID,
		Status:   agents.RunStatus(r.Status),
	}
	if ra := r.RequiredAction; ra != nil && ra.SubmitToolApproval != nil {
		for _, tc := range ra.SubmitToolApproval.ToolCalls {
			run.PendingApprovals = append(run.PendingApprovals, agents.PendingApproval{
				CallID:      tc.ID,
				ServerLabel: tc.ServerLabel,
				Name:        tc.Name,
				Arguments:   rawJSON(tc.Arguments),
			})
		}
	}
	if le := r.LastError; le != nil {
		run.LastError = &agents.LastError{Code: le.Code, Message: le.Message}
	}
	return run
}

func (s *runStepObject) toStep() agents.RunStep {
	step := agents.RunStep{ID: s.ID, Status: s.Status}
	for _, tc := range s.StepDetails.ToolCalls {
		step.ToolCalls = append(step.ToolCalls, agents.StepToolCall{
			ID:          tc.ID,
			Type:        tc.Type,
			Name:        tc.Name,
			ServerLabel: tc.ServerLabel,
			Arguments:   rawJSON(tc.Arguments),
			Output:      rawJSON(tc.Output),
		})
	}
	return step
}

func (m *messageObject) toMessage() agents.ThreadMessage {
	var parts []string
	for _, c := range m.Content {
		if c.Type == "text" && c.Text != nil {
			parts = append(parts, c.Text.Value)
		}
	}
	return agents.ThreadMessage{
		ID:   m.ID,
		Role: conversation.Role(m.Role),
		Text: strings.Join(parts, "\n"),
	}
}

// rawJSON keeps s as-is when it is valid JSON and encodes it as a JSON
// string otherwise.
func rawJSON(s string) json.RawMessage {
	if s == "" {
		return nil
	}
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	b, _ := json.Marshal(s)
	return b
}
