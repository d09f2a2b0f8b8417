package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_API_KEY", "sk-test-123")

	raw := []byte(`
llm:
  provider: openai
  model: gpt-4o-mini
  api_key: ${TEST_API_KEY}
prompt:
  system: You are a helpful assistant.
max_chat_round: 5
`)

	cfg, err := Parse(raw)

	require.NoError(t, err)
	assert.Equal(t, "sk-test-123", cfg.LLM.APIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 5, cfg.MaxChatRound)
}

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`prompt: {system: hi}`))

	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, DefaultMaxChatRound, cfg.MaxChatRound)
}

func TestCloneIsDeep(t *testing.T) {
	cfg := New()
	cfg.Prompt.System = "parent"
	cfg.Tools.SplitTask = &SplitTaskConfig{RetryLimit: 3}
	cfg.Tools.MCPServers = map[string]MCPServerConfig{
		"filesystem": {Command: "mcp-fs", Args: []string{"--root", "/tmp"}},
	}

	cp := cfg.Clone()
	cp.Prompt.System = "child"
	cp.Tools.SplitTask = nil
	cp.Tools.MCPServers["filesystem"] = MCPServerConfig{Command: "other"}

	assert.Equal(t, "parent", cfg.Prompt.System)
	require.NotNil(t, cfg.Tools.SplitTask)
	assert.Equal(t, 3, cfg.Tools.SplitTask.RetryLimit)
	assert.Equal(t, "mcp-fs", cfg.Tools.MCPServers["filesystem"].Command)
}
