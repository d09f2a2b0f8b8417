package agent

import (
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/agentrun/config"
	"github.com/hupe1980/agentrun/llm"
	"github.com/hupe1980/agentrun/llm/anthropic"
	"github.com/hupe1980/agentrun/llm/openai"
)

// NewModelFromConfig builds the provider adapter named in the config.
func NewModelFromConfig(cfg config.LLMConfig) (llm.Model, error) {
	switch cfg.Provider {
	case "", "openai":
		return openai.NewModel(func(o *openai.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
		}), nil
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Model != "" {
				o.Model = anthropicsdk.Model(cfg.Model)
			}
			o.APIKey = cfg.APIKey
		}), nil
	case "mock":
		return llm.NewMockModel(cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
