package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFunctionValidatesArguments(t *testing.T) {
	fn := NewFunction("greet", "greets someone", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{"type": "string"},
		},
		"required": []string{"name"},
	}, func(ctx context.Context, args map[string]any) (string, error) {
		return "hello " + args["name"].(string), nil
	})

	out, err := fn.Call(context.Background(), "greet", map[string]any{"name": "ada"})
	require.NoError(t, err)
	assert.Equal(t, "hello ada", out)

	_, err = fn.Call(context.Background(), "greet", map[string]any{})
	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "VALIDATION_ERROR", te.Code)

	_, err = fn.Call(context.Background(), "greet", map[string]any{"name": 42})
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "VALIDATION_ERROR", te.Code)
}

func TestFunctionWrapsExecutionErrors(t *testing.T) {
	fn := NewFunction("boom", "fails", nil, func(ctx context.Context, args map[string]any) (string, error) {
		return "", errors.New("kaput")
	})

	_, err := fn.Call(context.Background(), "boom", map[string]any{})

	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "EXECUTION_ERROR", te.Code)
	assert.Contains(t, te.Message, "kaput")
}

func TestNewFunctionForReflectsSchema(t *testing.T) {
	type weatherArgs struct {
		City string `json:"city" jsonschema:"description=City to look up"`
		Days int    `json:"days,omitempty"`
	}

	fn, err := NewFunctionFor("weather", "looks up weather", weatherArgs{},
		func(ctx context.Context, args map[string]any) (string, error) {
			return "sunny", nil
		})
	require.NoError(t, err)

	decls, err := fn.Tools(context.Background())
	require.NoError(t, err)
	require.Len(t, decls, 1)

	params := decls[0].Parameters
	assert.Equal(t, "object", params["type"])
	props, ok := params["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "city")
	assert.Contains(t, props, "days")

	_, err = fn.Call(context.Background(), "weather", map[string]any{"city": "berlin"})
	assert.NoError(t, err)
}
