package tool

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/agentrun/internal/util"
	"github.com/hupe1980/agentrun/llm"
)

// Function exposes a plain Go function as a single callable tool.
//
// Responsibilities:
//   - Holds a JSON Schema describing the accepted parameters
//   - Validates model supplied arguments against that schema before execution
//   - Normalizes error handling so callers receive *ToolError with consistent
//     codes: VALIDATION_ERROR for schema mismatches, EXECUTION_ERROR for an
//     error returned by the wrapped function (custom codes preserved if the
//     function returns *ToolError directly)
//
// A Function has no mutable state after construction and is safe for
// concurrent use by multiple goroutines.
type Function struct {
	decl llm.Tool
	fn   func(ctx context.Context, args map[string]any) (string, error)
}

// NewFunction constructs a Function from an explicit schema.
func NewFunction(
	name, description string,
	parameters map[string]any,
	fn func(ctx context.Context, args map[string]any) (string, error),
) *Function {
	return &Function{
		decl: llm.Tool{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
		fn: fn,
	}
}

// NewFunctionFor constructs a Function whose parameter schema is reflected
// from a Go struct type. The argsPrototype value is only inspected, never
// kept.
func NewFunctionFor(
	name, description string,
	argsPrototype any,
	fn func(ctx context.Context, args map[string]any) (string, error),
) (*Function, error) {
	schema, err := util.SchemaFor(argsPrototype)
	if err != nil {
		return nil, fmt.Errorf("reflect schema for %s: %w", name, err)
	}
	return NewFunction(name, description, schema, fn), nil
}

// Connect is a no-op; local functions need no setup.
func (f *Function) Connect(ctx context.Context) error { return nil }

// Cleanup is a no-op.
func (f *Function) Cleanup(ctx context.Context) error { return nil }

// Tools returns the single declaration.
func (f *Function) Tools(ctx context.Context) ([]llm.Tool, error) {
	return []llm.Tool{f.decl}, nil
}

// Call validates the arguments and invokes the wrapped function.
func (f *Function) Call(ctx context.Context, name string, args map[string]any) (string, error) {
	if name != f.decl.Name {
		return "", NewToolError(name, "not provided by this source", "VALIDATION_ERROR")
	}
	if f.decl.Parameters != nil {
		if err := util.ValidateParameters(args, f.decl.Parameters); err != nil {
			return "", &ToolError{
				Tool:    name,
				Message: err.Error(),
				Code:    "VALIDATION_ERROR",
				Details: err,
			}
		}
	}
	out, err := f.fn(ctx, args)
	if err != nil {
		var te *ToolError
		if errors.As(err, &te) {
			return "", te
		}
		return "", &ToolError{
			Tool:    name,
			Message: err.Error(),
			Code:    "EXECUTION_ERROR",
		}
	}
	return out, nil
}
