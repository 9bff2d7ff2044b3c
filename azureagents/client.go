// Copyright (c) Microsoft. All rights reserved.

package azureagents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"

	"github.com/convergent-analytics-ai-01/UWEPD/agents"
)

const pageSize = 100

// Client implements [agents.Service] against an Azure AI Foundry project.
// Use [New] to create one.
type Client struct {
	tp transport
}

// Verify interface compliance at compile time.
var _ agents.Service = (*Client)(nil)

// New creates a Client for the project endpoint, for example
// https://<resource>.services.ai.azure.com/api/projects/<project>.
func New(endpoint string, cred azcore.TokenCredential, opts ...Option) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid project endpoint %q", endpoint)
	}
	if cred == nil {
		return nil, errors.New("nil credential")
	}
	cfg := &clientConfig{}
	for _, o := range opts {
		o(cfg)
	}
	return &Client{tp: newHTTPTransport(endpoint, cred, cfg)}, nil
}

// call sends one request and decodes the JSON response into out, if non-nil.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, body, out any) error {
	resp, err := c.tp.do(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s %s: %w", ErrInvalidResponse, method, path, err)
	}
	return nil
}

// create posts body and returns the id of the created object.
func (c *Client) create(ctx context.Context, path string, body any) (string, error) {
	var obj objectResponse
	if err := c.call(ctx, http.MethodPost, path, nil, body, &obj); err != nil {
		return "", err
	}
	if obj.ID == "" {
		return "", fmt.Errorf("%w: POST %s returned no id", ErrInvalidResponse, path)
	}
	return obj.ID, nil
}

func (c *Client) remove(ctx context.Context, path string) error {
	var obj objectResponse
	if err := c.call(ctx, http.MethodDelete, path, nil, nil, &obj); err != nil {
		return err
	}
	if obj.Object != "" && !obj.Deleted {
		return fmt.Errorf("%w: DELETE %s not acknowledged", ErrInvalidResponse, path)
	}
	return nil
}

// list follows has_more/last_id pagination.
func list[T any](ctx context.Context, c *Client, path string, order string) ([]T, error) {
	q := url.Values{"order": {order}, "limit": {strconv.Itoa(pageSize)}}
	var out []T
	for {
		var page listResponse[T]
		if err := c.call(ctx, http.MethodGet, path, q, nil, &page); err != nil {
			return nil, err
		}
		out = append(out, page.Data...)
		if !page.HasMore || page.LastID == "" || len(page.Data) == 0 {
			return out, nil
		}
		q.Set("after", page.LastID)
	}
}

func (c *Client) CreateAgent(ctx context.Context, def agents.AgentDefinition) (string, error) {
	return c.create(ctx, "/assistants", agentRequest(def))
}

func (c *Client) DeleteAgent(ctx context.Context, agentID string) error {
	return c.remove(ctx, "/assistants/"+url.PathEscape(agentID))
}

func (c *Client) CreateThread(ctx context.Context, seed []agents.ThreadMessage) (string, error) {
	req := createThreadRequest{}
	for _, m := range seed {
		req.Messages = append(req.Messages, messageRequest{Role: string(m.Role), Content: m.Text})
	}
	return c.create(ctx, "/threads", req)
}

func (c *Client) DeleteThread(ctx context.Context, threadID string) error {
	return c.remove(ctx, threadPath(threadID))
}

func (c *Client) CreateMessage(ctx context.Context, threadID string, msg agents.ThreadMessage) (string, error) {
	return c.create(ctx, threadPath(threadID)+"/messages", messageRequest{Role: string(msg.Role), Content: msg.Text})
}

func (c *Client) ListMessages(ctx context.Context, threadID string) ([]agents.ThreadMessage, error) {
	objs, err := list[messageObject](ctx, c, threadPath(threadID)+"/messages", "desc")
	if err != nil {
		return nil, err
	}
	msgs := make([]agents.ThreadMessage, len(objs))
	for i := range objs {
		msgs[i] = objs[i].toMessage()
	}
	return msgs, nil
}

func (c *Client) CreateRun(ctx context.Context, threadID, agentID string, tools []agents.ToolConfig) (*agents.Run, error) {
	var obj runObject
	if err := c.call(ctx, http.MethodPost, threadPath(threadID)+"/runs", nil, runRequest(agentID, tools), &obj); err != nil {
		return nil, err
	}
	return checkRun(&obj, "create run")
}

func (c *Client) GetRun(ctx context.Context, threadID, runID string) (*agents.Run, error) {
	var obj runObject
	if err := c.call(ctx, http.MethodGet, runPath(threadID, runID), nil, nil, &obj); err != nil {
		return nil, err
	}
	return checkRun(&obj, "get run")
}

func (c *Client) CancelRun(ctx context.Context, threadID, runID string) error {
	return c.call(ctx, http.MethodPost, runPath(threadID, runID)+"/cancel", nil, nil, nil)
}

func (c *Client) SubmitToolApprovals(ctx context.Context, threadID, runID string, approvals []agents.ToolApproval) (*agents.Run, error) {
	req := submitApprovalsRequest{ToolApprovals: make([]toolApproval, len(approvals))}
	for i, a := range approvals {
		req.ToolApprovals[i] = toolApproval{ToolCallID: a.CallID, Approve: a.Approve}
	}
	var obj runObject
	if err := c.call(ctx, http.MethodPost, runPath(threadID, runID)+"/submit_tool_outputs", nil, req, &obj); err != nil {
		return nil, err
	}
	return checkRun(&obj, "submit tool approvals")
}

func (c *Client) ListRunSteps(ctx context.Context, threadID, runID string) ([]agents.RunStep, error) {
	objs, err := list[runStepObject](ctx, c, runPath(threadID, runID)+"/steps", "asc")
	if err != nil {
		return nil, err
	}
	steps := make([]agents.RunStep, 0, len(objs))
	for i := range objs {
		if objs[i].StepDetails.Type != "tool_calls" {
			continue
		}
		steps = append(steps, objs[i].toStep())
	}
	return steps, nil
}

func checkRun(obj *runObject, op string) (*agents.Run, error) {
	if obj.ID == "" || obj.Status == "" {
		return nil, fmt.Errorf("%w: %s: missing run id or status", ErrInvalidResponse, op)
	}
	return obj.toRun(), nil
}

func threadPath(threadID string) string {
	return "/threads/" + url.PathEscape(threadID)
}

func runPath(threadID, runID string) string {
	return threadPath(threadID) + "/runs/" + url.PathEscape(runID)
}
