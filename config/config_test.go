// Copyright (c) Microsoft. All rights reserved.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convergent-analytics-ai-01/UWEPD/agents"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "my-mcp-agent", cfg.Agent.Name)
	assert.Equal(t, "memory", cfg.Memory.Dir)
	assert.Equal(t, 20, cfg.Agent.HistoryWindow)
	require.Len(t, cfg.Tools, 1)
	assert.Equal(t, "mslearn", cfg.Tools[0].Label)
	assert.Equal(t, "https://learn.microsoft.com/api/mcp", cfg.Tools[0].URL)

	assert.ErrorIs(t, cfg.Validate(), ErrMissingSettings, "endpoint and model have no defaults")
	assert.False(t, strings.HasSuffix(ErrMissingSettings.Error(), "."), "error strings do not end with punctuation")
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	cfg.ApplyEnv(env(map[string]string{
		EnvProjectEndpoint: " https://res.services.ai.azure.com/api/projects/p ",
		EnvModel:           "gpt-4o",
		EnvMemoryDir:       "/var/lib/chat",
		EnvMCPServerURL:    "https://mcp.example.com",
		EnvMCPServerLabel:  "example",
	}))

	assert.Equal(t, "https://res.services.ai.azure.com/api/projects/p", cfg.ProjectEndpoint)
	assert.Equal(t, "gpt-4o", cfg.Model)
	assert.Equal(t, "/var/lib/chat", cfg.Memory.Dir)
	assert.Equal(t, "example", cfg.Tools[0].Label)
	assert.Equal(t, "https://mcp.example.com", cfg.Tools[0].URL)
	require.NoError(t, cfg.Validate())
}

func TestApplyEnv_CreatesToolWhenNoneConfigured(t *testing.T) {
	cfg := Default()
	cfg.Tools = nil
	cfg.ApplyEnv(env(map[string]string{EnvMCPServerURL: "https://mcp.example.com"}))

	require.Len(t, cfg.Tools, 1)
	assert.Equal(t, "mcp", cfg.Tools[0].Label)
	assert.Equal(t, "https://mcp.example.com", cfg.Tools[0].URL)
}

func TestParse_YAML(t *testing.T) {
	data := []byte(`
project_endpoint: https://res.services.ai.azure.com/api/projects/p
model: gpt-4o
credential: cli
agent:
  name: docs-agent
  history_window: 6
  keep_threads: true
tools:
  - label: mslearn
    url: https://learn.microsoft.com/api/mcp
    approval: always
    allowed_tools: [microsoft_docs_search]
    headers:
      X-Key: secret
timeouts:
  run: 90s
  approval: 10s
`)
	cfg := Default()
	require.NoError(t, cfg.Parse("chat.yaml", data))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "cli", cfg.Credential)
	assert.Equal(t, "docs-agent", cfg.Agent.Name)
	assert.Equal(t, 6, cfg.Agent.HistoryWindow)
	assert.True(t, cfg.Agent.KeepThreads)
	assert.Equal(t, agents.DefaultInstructions, cfg.Agent.Instructions, "unset fields keep defaults")

	tools, err := cfg.AgentTools()
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, agents.ApprovalAlways, tools[0].Approval)
	assert.Equal(t, []string{"microsoft_docs_search"}, tools[0].AllowedTools)
	assert.Equal(t, "secret", tools[0].Headers["X-Key"])

	d, err := cfg.durations()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d.run)
	assert.Equal(t, 10*time.Second, d.approval)
	assert.Equal(t, agents.DefaultPollInterval, d.poll)
}

func TestParse_JSONC(t *testing.T) {
	data := []byte(`{
  // endpoint of the Foundry project
  "project_endpoint": "https://res.services.ai.azure.com/api/projects/p",
  "model": "gpt-4o-mini",
  /* tools */
  "tools": [
    {"label": "docs", "url": "https://docs.example.com/mcp", "approval": "never"},
  ],
}`)
	cfg := Default()
	require.NoError(t, cfg.Parse("chat.jsonc", data))
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
	require.Len(t, cfg.Tools, 1)
	assert.Equal(t, "docs", cfg.Tools[0].Label)
}

func TestParse_UnsupportedFormat(t *testing.T) {
	assert.Error(t, Default().Parse("chat.toml", []byte("x = 1")))
}

func TestValidate_Errors(t *testing.T) {
	base := func() *Config {
		cfg := Default()
		cfg.ProjectEndpoint = "https://res.services.ai.azure.com/api/projects/p"
		cfg.Model = "gpt-4o"
		return cfg
	}
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad approval", func(c *Config) { c.Tools[0].Approval = "sometimes" }},
		{"bad url", func(c *Config) { c.Tools[0].URL = "mcp" }},
		{"duplicate label", func(c *Config) { c.Tools = append(c.Tools, c.Tools[0]) }},
		{"bad duration", func(c *Config) { c.Timeouts.Run = "soon" }},
		{"zero duration", func(c *Config) { c.Timeouts.Poll = "0s" }},
		{"bad credential", func(c *Config) { c.Credential = "keyvault" }},
		{"negative window", func(c *Config) { c.Agent.HistoryWindow = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, base().Validate())
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.yml")
	require.NoError(t, os.WriteFile(path, []byte("model: from-file\nmemory:\n  dir: file-dir\n"), 0o644))
	t.Setenv(EnvModel, "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Model)
	assert.Equal(t, "file-dir", cfg.Memory.Dir)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("UWEPD_TEST_DOTENV=loaded\n"), 0o644))
	t.Setenv("UWEPD_TEST_DOTENV", "")
	os.Unsetenv("UWEPD_TEST_DOTENV")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "loaded", os.Getenv("UWEPD_TEST_DOTENV"))

	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "absent.env")), "missing file is ignored")
}

func TestManagerOptions(t *testing.T) {
	cfg := Default()
	cfg.Model = "gpt-4o"
	opts, err := cfg.ManagerOptions()
	require.NoError(t, err)

	mgr := agents.NewManager(nil, opts...)
	tools := mgr.Tools()
	require.Len(t, tools, 1)
	assert.Equal(t, "mslearn", tools[0].Label)

	cfg.Timeouts.Approval = "never"
	_, err = cfg.ManagerOptions()
	assert.Error(t, err)
}
