// Package config holds the declarative agent configuration: model provider
// settings, prompts, generation parameters, tool wiring and run limits.
// Configs are loaded from YAML with environment expansion and deep copied
// whenever an agent hands state to a successor or a spawned sub agent, so no
// two runs ever share mutable config.
package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// DefaultMaxChatRound bounds the agent step loop when the config does not set
// an explicit limit.
const DefaultMaxChatRound = 20

// LLMConfig selects and parameterizes the model provider.
type LLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key,omitempty"`
	BaseURL  string `yaml:"base_url,omitempty"`
}

// PromptConfig carries the default system prompt and optional default query.
type PromptConfig struct {
	System string `yaml:"system,omitempty"`
	Query  string `yaml:"query,omitempty"`
}

// GenerationConfig tunes a single model call.
type GenerationConfig struct {
	Stream      bool     `yaml:"stream,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty"`
	TopP        *float64 `yaml:"top_p,omitempty"`
	MaxTokens   int64    `yaml:"max_tokens,omitempty"`
}

// SplitTaskConfig enables the task splitting tool on an agent.
type SplitTaskConfig struct {
	TagPrefix  string `yaml:"tag_prefix,omitempty"`
	RetryLimit int    `yaml:"retry_limit,omitempty"`
}

// MCPServerConfig describes one stdio MCP server to connect tools from.
type MCPServerConfig struct {
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
}

// ToolsConfig wires tool sources into an agent.
type ToolsConfig struct {
	SplitTask  *SplitTaskConfig           `yaml:"split_task,omitempty"`
	MCPServers map[string]MCPServerConfig `yaml:"mcp_servers,omitempty"`
}

// MemoryConfig selects a conversation refiner applied before each model call.
type MemoryConfig struct {
	Name string         `yaml:"name"`
	Args map[string]any `yaml:"args,omitempty"`
}

// Config is the full declarative description of one agent.
type Config struct {
	LLM          LLMConfig        `yaml:"llm"`
	Prompt       PromptConfig     `yaml:"prompt,omitempty"`
	Generation   GenerationConfig `yaml:"generation_config,omitempty"`
	Tools        ToolsConfig      `yaml:"tools,omitempty"`
	Memory       []MemoryConfig   `yaml:"memory,omitempty"`
	Callbacks    []string         `yaml:"callbacks,omitempty"`
	MaxChatRound int              `yaml:"max_chat_round,omitempty"`
	MaxModelCall int              `yaml:"max_model_call,omitempty"`
	Help         string           `yaml:"help,omitempty"`
}

// New returns a config with defaults applied.
func New() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.MaxChatRound <= 0 {
		c.MaxChatRound = DefaultMaxChatRound
	}
}

// Clone returns a deep copy via a YAML round trip, so spawned sub agents and
// workflow successors can mutate their copy freely.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	raw, err := yaml.Marshal(c)
	if err != nil {
		// Config only holds plain data; marshal cannot fail on a valid value.
		panic(fmt.Sprintf("config clone: %v", err))
	}
	var cp Config
	if err := yaml.Unmarshal(raw, &cp); err != nil {
		panic(fmt.Sprintf("config clone: %v", err))
	}
	return &cp
}
