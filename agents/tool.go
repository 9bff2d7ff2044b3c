// Copyright (c) Microsoft. All rights reserved.

package agents

import (
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"
)

// ApprovalPolicy controls whether calls to a tool need confirmation before
// the remote agent may proceed. Values match the service's require_approval
// field.
type ApprovalPolicy string

const (
	// ApprovalNever auto-approves every call.
	ApprovalNever ApprovalPolicy = "never"
	// ApprovalAlways requires an Approver decision for every call.
	ApprovalAlways ApprovalPolicy = "always"
)

// ParseApprovalPolicy accepts the service names plus the aliases used in
// configuration files.
func ParseApprovalPolicy(s string) (ApprovalPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "never", "auto", "auto-approve":
		return ApprovalNever, nil
	case "always", "required", "requires-confirmation", "confirm":
		return ApprovalAlways, nil
	default:
		return "", fmt.Errorf("unknown approval policy %q", s)
	}
}

// ToolConfig describes one MCP server the remote agent may call. It is fixed
// for the lifetime of an exchange.
type ToolConfig struct {
	Label        string
	ServerURL    string
	AllowedTools []string
	Headers      map[string]string
	Approval     ApprovalPolicy
}

// ToolOption configures a [ToolConfig].
type ToolOption func(*ToolConfig)

// WithApprovalRequired makes every call to the tool wait for confirmation.
func WithApprovalRequired() ToolOption {
	return func(c *ToolConfig) { c.Approval = ApprovalAlways }
}

// WithAllowedTools restricts which tools of the server the agent may call.
func WithAllowedTools(names ...string) ToolOption {
	return func(c *ToolConfig) { c.AllowedTools = append(c.AllowedTools, names...) }
}

// WithToolHeaders sets headers the service forwards to the MCP server.
func WithToolHeaders(h map[string]string) ToolOption {
	return func(c *ToolConfig) {
		if c.Headers == nil {
			c.Headers = make(map[string]string, len(h))
		}
		maps.Copy(c.Headers, h)
	}
}

// NewMCPTool creates a [ToolConfig] for the MCP server at serverURL.
// Calls are auto-approved unless [WithApprovalRequired] is given.
func NewMCPTool(label, serverURL string, opts ...ToolOption) ToolConfig {
	c := ToolConfig{Label: label, ServerURL: serverURL, Approval: ApprovalNever}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Validate checks the label, URL, and policy.
func (c ToolConfig) Validate() error {
	if c.Label == "" {
		return fmt.Errorf("tool config: empty server label")
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("tool config %q: invalid server url %q", c.Label, c.ServerURL)
	}
	switch c.Approval {
	case "", ApprovalNever, ApprovalAlways:
	default:
		return fmt.Errorf("tool config %q: unknown approval policy %q", c.Label, c.Approval)
	}
	return nil
}

// RequiresConfirmation reports whether calls need an Approver decision.
func (c ToolConfig) RequiresConfirmation() bool { return c.Approval == ApprovalAlways }

func (c ToolConfig) clone() ToolConfig {
	c.AllowedTools = slices.Clone(c.AllowedTools)
	c.Headers = maps.Clone(c.Headers)
	if c.Approval == "" {
		c.Approval = ApprovalNever
	}
	return c
}

func cloneTools(tools []ToolConfig) []ToolConfig {
	out := make([]ToolConfig, len(tools))
	for i, t := range tools {
		out[i] = t.clone()
	}
	return out
}

func findTool(tools []ToolConfig, label string) (ToolConfig, bool) {
	for _, t := range tools {
		if t.Label == label {
			return t, true
		}
	}
	return ToolConfig{}, false
}
