package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrun/internal/testutil"
	"github.com/hupe1980/agentrun/llm"
)

func echoFunction(name string) *Function {
	return NewFunction(name, "echoes its input", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text": map[string]any{"type": "string"},
		},
		"required": []string{"text"},
	}, func(ctx context.Context, args map[string]any) (string, error) {
		return args["text"].(string), nil
	})
}

func TestManagerConnectBuildsIndex(t *testing.T) {
	mgr := NewManager([]Tool{echoFunction("echo"), echoFunction("shout")})

	require.NoError(t, mgr.Connect(context.Background()))

	tools := mgr.Tools()
	require.Len(t, tools, 2)
	assert.Equal(t, "echo", tools[0].Name)
	assert.Equal(t, "shout", tools[1].Name)
}

func TestManagerRejectsDuplicateNames(t *testing.T) {
	mgr := NewManager([]Tool{echoFunction("echo"), echoFunction("echo")})

	err := mgr.Connect(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate tool name "echo"`)
}

func TestManagerNamespacesServerTools(t *testing.T) {
	split := NewSplitTask(func(ctx context.Context, tag string, task SubTask) SubTaskResult {
		return SubTaskResult{Content: task.Query}
	})
	mgr := NewManager([]Tool{split})
	require.NoError(t, mgr.Connect(context.Background()))

	tools := mgr.Tools()
	require.Len(t, tools, 1)
	assert.Equal(t, "split_task---split_to_sub_task", tools[0].Name)
}

func TestCallAllIsPositional(t *testing.T) {
	// The slow tool finishes last; its result must still land in slot 0.
	slow := NewFunction("slow", "slow echo", nil, func(ctx context.Context, args map[string]any) (string, error) {
		time.Sleep(50 * time.Millisecond)
		return "slow-result", nil
	})
	fast := NewFunction("fast", "fast echo", nil, func(ctx context.Context, args map[string]any) (string, error) {
		return "fast-result", nil
	})
	mgr := NewManager([]Tool{slow, fast})
	require.NoError(t, mgr.Connect(context.Background()))

	calls := []llm.ToolCall{
		testutil.ToolCallOf(0, "slow", "{}"),
		testutil.ToolCallOf(1, "fast", "{}"),
	}
	results := mgr.CallAll(context.Background(), calls)

	require.Len(t, results, 2)
	assert.Equal(t, "slow-result", results[0].Content)
	assert.Equal(t, "call-0", results[0].ToolCallID)
	assert.Equal(t, "fast-result", results[1].Content)
	assert.Equal(t, "call-1", results[1].ToolCallID)
}

func TestCallAllIsolatesFailures(t *testing.T) {
	failing := NewFunction("boom", "always fails", nil, func(ctx context.Context, args map[string]any) (string, error) {
		return "", errors.New("kaput")
	})
	panicking := NewFunction("panic", "always panics", nil, func(ctx context.Context, args map[string]any) (string, error) {
		panic("oh no")
	})
	mgr := NewManager([]Tool{echoFunction("echo"), failing, panicking})
	require.NoError(t, mgr.Connect(context.Background()))

	calls := []llm.ToolCall{
		testutil.ToolCallOf(0, "boom", "{}"),
		testutil.ToolCallOf(1, "echo", `{"text":"still here"}`),
		testutil.ToolCallOf(2, "panic", "{}"),
	}
	results := mgr.CallAll(context.Background(), calls)

	require.Len(t, results, 3)
	assert.True(t, strings.HasPrefix(results[0].Content, "Tool calling failed: "))
	assert.Contains(t, results[0].Content, "kaput")
	assert.Equal(t, "still here", results[1].Content)
	assert.Contains(t, results[2].Content, "panicked")
	for i, res := range results {
		assert.Equal(t, llm.RoleTool, res.Role)
		assert.Equal(t, fmt.Sprintf("call-%d", i), res.ToolCallID)
	}
}

func TestCallToolUnknownName(t *testing.T) {
	mgr := NewManager(nil)
	require.NoError(t, mgr.Connect(context.Background()))

	result := mgr.CallTool(context.Background(), testutil.ToolCallOf(0, "nope", "{}"))

	assert.Contains(t, result.Content, `unknown tool "nope"`)
	assert.Equal(t, llm.RoleTool, result.Role)
}

func TestDecodeArguments(t *testing.T) {
	args, err := DecodeArguments(`{"a":1}`)
	require.NoError(t, err)
	assert.Equal(t, float64(1), args["a"])

	// Providers sometimes double encode the payload.
	args, err = DecodeArguments(`"{\"a\":1}"`)
	require.NoError(t, err)
	assert.Equal(t, float64(1), args["a"])

	args, err = DecodeArguments("")
	require.NoError(t, err)
	assert.Empty(t, args)

	_, err = DecodeArguments("[1,2]")
	assert.Error(t, err)
}
