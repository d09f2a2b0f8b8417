// Package tool implements the function / tool calling subsystem that lets
// agents invoke structured capabilities (APIs, computations, side effects)
// with schema validated arguments and consistent error handling. A Tool is a
// source that may expose several callable tools (an MCP server, a bundle of
// local functions, the task splitter); the Manager flattens all sources into
// one index and dispatches model issued tool calls against it.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/agentrun/internal/util"
	"github.com/hupe1980/agentrun/llm"
)

// Tool is a source of callable tools with a connection lifecycle.
//
// Implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define proper JSON schema for parameters
//   - Handle errors gracefully
//   - Be thread-safe; the Manager dispatches calls concurrently
type Tool interface {
	// Connect prepares the source (spawns subprocesses, opens connections).
	// It is called once before any Tools or Call.
	Connect(ctx context.Context) error

	// Cleanup releases resources held by the source.
	Cleanup(ctx context.Context) error

	// Tools returns the declarations this source exposes. ServerName on the
	// declarations controls namespacing in the flat index.
	Tools(ctx context.Context) ([]llm.Tool, error)

	// Call executes one tool by its bare (unqualified) name.
	Call(ctx context.Context, name string, args map[string]any) (string, error)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

// DecodeArguments parses a tool call argument payload into a map. Providers
// occasionally double encode the JSON string, so decoding repeats while the
// result is still a string.
func DecodeArguments(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}
	var v any = raw
	for range 3 {
		s, ok := v.(string)
		if !ok {
			break
		}
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			return nil, fmt.Errorf("decode arguments: %w", err)
		}
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("arguments must decode to an object, got %T", v)
	}
	return m, nil
}
