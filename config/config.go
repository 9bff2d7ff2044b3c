// Copyright (c) Microsoft. All rights reserved.

// Package config loads settings for the MCP chat client.
//
// Settings come from, in increasing precedence: built-in defaults, an
// optional YAML (.yaml, .yml) or JSONC (.json, .jsonc) file, and environment
// variables. A .env file may populate the environment first.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/convergent-analytics-ai-01/UWEPD/agents"
	"github.com/convergent-analytics-ai-01/UWEPD/conversation"
)

// Environment variables read by [Config.ApplyEnv].
const (
	EnvProjectEndpoint = "PROJECT_ENDPOINT"
	EnvModel           = "MODEL_DEPLOYMENT_NAME"
	EnvMemoryDir       = "MEMORY_DIR"
	EnvMCPServerURL    = "MCP_SERVER_URL"
	EnvMCPServerLabel  = "MCP_SERVER_LABEL"
)

// ErrMissingSettings is returned by Validate when the endpoint or model is
// unset.
var ErrMissingSettings = errors.New("PROJECT_ENDPOINT and MODEL_DEPLOYMENT_NAME must be set in your .env file")

// Config is the full client configuration.
type Config struct {
	// ProjectEndpoint is the Azure AI Foundry project endpoint.
	ProjectEndpoint string `yaml:"project_endpoint" json:"project_endpoint"`

	// Model is the model deployment name used by the agents.
	Model string `yaml:"model" json:"model"`

	// Credential selects the Azure credential: default, cli, or developer.
	Credential string `yaml:"credential" json:"credential"`

	// APIVersion overrides the Agents API version.
	APIVersion string `yaml:"api_version,omitempty" json:"api_version,omitempty"`

	Agent    AgentConfig         `yaml:"agent" json:"agent"`
	Tools    []ToolConfig        `yaml:"tools" json:"tools"`
	Memory   conversation.Config `yaml:"memory" json:"memory"`
	Timeouts TimeoutsConfig      `yaml:"timeouts" json:"timeouts"`
}

// AgentConfig configures the ephemeral agents.
type AgentConfig struct {
	Name         string `yaml:"name" json:"name"`
	Instructions string `yaml:"instructions" json:"instructions"`

	// HistoryWindow is how many prior turns seed each exchange.
	HistoryWindow int `yaml:"history_window" json:"history_window"`

	// KeepThreads leaves remote threads in place after each exchange.
	KeepThreads bool `yaml:"keep_threads" json:"keep_threads"`
}

// ToolConfig describes one MCP server.
type ToolConfig struct {
	Label        string            `yaml:"label" json:"label"`
	URL          string            `yaml:"url" json:"url"`
	Approval     string            `yaml:"approval" json:"approval"`
	AllowedTools []string          `yaml:"allowed_tools,omitempty" json:"allowed_tools,omitempty"`
	Headers      map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
}

// TimeoutsConfig holds durations in time.ParseDuration syntax.
type TimeoutsConfig struct {
	Poll     string `yaml:"poll" json:"poll"`
	Run      string `yaml:"run" json:"run"`
	Approval string `yaml:"approval" json:"approval"`
	Release  string `yaml:"release" json:"release"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Credential: "default",
		Agent: AgentConfig{
			Name:          agents.DefaultAgentName,
			Instructions:  agents.DefaultInstructions,
			HistoryWindow: agents.DefaultHistoryWindow,
		},
		Tools: []ToolConfig{{
			Label:    "mslearn",
			URL:      "https://learn.microsoft.com/api/mcp",
			Approval: string(agents.ApprovalNever),
		}},
		Memory: conversation.Config{Dir: "memory"},
		Timeouts: TimeoutsConfig{
			Poll:     agents.DefaultPollInterval.String(),
			Run:      agents.DefaultRunTimeout.String(),
			Approval: agents.DefaultApprovalTimeout.String(),
			Release:  agents.DefaultReleaseTimeout.String(),
		},
	}
}

// Load returns the defaults overlaid with the file at path, if path is
// non-empty, and then with the process environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.merge(path); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, nil
}

// LoadDotEnv loads variables from a .env file into the environment without
// overriding variables already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Parse decodes data into cfg according to the file extension of name.
func (c *Config) Parse(name string, data []byte) error {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parsing %s: %w", name, err)
		}
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), c); err != nil {
			return fmt.Errorf("parsing %s: %w", name, err)
		}
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(name))
	}
	return nil
}

func (c *Config) merge(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	return c.Parse(path, data)
}

// ApplyEnv overrides settings from environment variables found by lookup.
// MCP_SERVER_URL and MCP_SERVER_LABEL apply to the first tool, creating it
// if the tool list is empty.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(EnvProjectEndpoint, &c.ProjectEndpoint)
	set(EnvModel, &c.Model)
	set(EnvMemoryDir, &c.Memory.Dir)

	_, hasURL := lookup(EnvMCPServerURL)
	_, hasLabel := lookup(EnvMCPServerLabel)
	if !hasURL && !hasLabel {
		return
	}
	if len(c.Tools) == 0 {
		c.Tools = []ToolConfig{{Label: "mcp", Approval: string(agents.ApprovalNever)}}
	}
	set(EnvMCPServerURL, &c.Tools[0].URL)
	set(EnvMCPServerLabel, &c.Tools[0].Label)
}

// Validate reports missing or malformed settings.
func (c *Config) Validate() error {
	if c.ProjectEndpoint == "" || c.Model == "" {
		return ErrMissingSettings
	}
	var errs []error
	if _, err := c.AgentTools(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.durations(); err != nil {
		errs = append(errs, err)
	}
	switch c.Credential {
	case "", "default", "cli", "developer":
	default:
		errs = append(errs, fmt.Errorf("unknown credential %q (want default, cli or developer)", c.Credential))
	}
	if c.Agent.HistoryWindow < 0 {
		errs = append(errs, fmt.Errorf("agent.history_window must not be negative"))
	}
	return errors.Join(errs...)
}

// AgentTools converts the tool list to agent tool configurations.
func (c *Config) AgentTools() ([]agents.ToolConfig, error) {
	tools := make([]agents.ToolConfig, 0, len(c.Tools))
	seen := make(map[string]bool, len(c.Tools))
	for i, t := range c.Tools {
		policy, err := agents.ParseApprovalPolicy(t.Approval)
		if err != nil {
			return nil, fmt.Errorf("tools[%d]: %w", i, err)
		}
		tc := agents.ToolConfig{
			Label:        t.Label,
			ServerURL:    t.URL,
			AllowedTools: t.AllowedTools,
			Headers:      t.Headers,
			Approval:     policy,
		}
		if err := tc.Validate(); err != nil {
			return nil, fmt.Errorf("tools[%d]: %w", i, err)
		}
		if seen[t.Label] {
			return nil, fmt.Errorf("tools[%d]: duplicate label %q", i, t.Label)
		}
		seen[t.Label] = true
		tools = append(tools, tc)
	}
	return tools, nil
}

type durations struct {
	poll, run, approval, release time.Duration
}

func (c *Config) durations() (durations, error) {
	var d durations
	fields := []struct {
		name string
		val  string
		dst  *time.Duration
		def  time.Duration
	}{
		{"timeouts.poll", c.Timeouts.Poll, &d.poll, agents.DefaultPollInterval},
		{"timeouts.run", c.Timeouts.Run, &d.run, agents.DefaultRunTimeout},
		{"timeouts.approval", c.Timeouts.Approval, &d.approval, agents.DefaultApprovalTimeout},
		{"timeouts.release", c.Timeouts.Release, &d.release, agents.DefaultReleaseTimeout},
	}
	for _, f := range fields {
		if f.val == "" {
			*f.dst = f.def
			continue
		}
		v, err := time.ParseDuration(f.val)
		if err != nil {
			return d, fmt.Errorf("%s: %w", f.name, err)
		}
		if v <= 0 {
			return d, fmt.Errorf("%s: must be positive", f.name)
		}
		*f.dst = v
	}
	return d, nil
}

// ManagerOptions converts the configuration to agent manager options.
func (c *Config) ManagerOptions() ([]agents.ManagerOption, error) {
	tools, err := c.AgentTools()
	if err != nil {
		return nil, err
	}
	d, err := c.durations()
	if err != nil {
		return nil, err
	}
	opts := []agents.ManagerOption{
		agents.WithModel(c.Model),
		agents.WithTools(tools...),
		agents.WithPollInterval(d.poll),
		agents.WithRunTimeout(d.run),
		agents.WithApprovalTimeout(d.approval),
		agents.WithReleaseTimeout(d.release),
		agents.WithHistoryWindow(c.Agent.HistoryWindow),
		agents.WithKeepThreads(c.Agent.KeepThreads),
	}
	if c.Agent.Name != "" {
		opts = append(opts, agents.WithAgentName(c.Agent.Name))
	}
	if c.Agent.Instructions != "" {
		opts = append(opts, agents.WithInstructions(c.Agent.Instructions))
	}
	return opts, nil
}
