package llm

import (
	"context"
)

// GenerateOptions tune a single generation request. Nil pointer fields fall
// back to the provider adapter defaults.
type GenerateOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	MaxTokens   int64    `json:"max_tokens,omitempty"`
}

// Request captures the normalized model input produced by agents.
type Request struct {
	Messages []Message        `json:"messages"`
	Tools    []Tool           `json:"tools,omitempty"`
	Options  *GenerateOptions `json:"options,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by agents to drive generation.
// Generate blocks until the full assistant reply is available.
// GenerateStream emits partial fragments (Partial=true) that callers fold
// with Fold; the error channel carries at most one error and both channels
// are closed when the stream ends.
type Model interface {
	Generate(ctx context.Context, req *Request) (*Message, error)
	GenerateStream(ctx context.Context, req *Request) (<-chan Message, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}
