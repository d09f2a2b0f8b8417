package tool

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func splitArgs() map[string]any {
	return map[string]any{
		"tasks": []any{
			map[string]any{"system": "researcher", "query": "alpha"},
			map[string]any{"system": "researcher", "query": "beta"},
			map[string]any{"system": "researcher", "query": "gamma"},
		},
	}
}

func TestSplitTaskJoinsInInputOrder(t *testing.T) {
	split := NewSplitTask(func(ctx context.Context, tag string, task SubTask) SubTaskResult {
		return SubTaskResult{Content: "result-" + task.Query}
	})

	out, err := split.Call(context.Background(), SplitTaskToolName, splitArgs())

	require.NoError(t, err)
	parts := SplitAggregate(out)
	require.Len(t, parts, 3)
	assert.Equal(t, "result-alpha", parts[0])
	assert.Equal(t, "result-beta", parts[1])
	assert.Equal(t, "result-gamma", parts[2])
	assert.Equal(t, 1, split.SpawnRounds())
}

func TestSplitTaskRetriesOnlyFailedSubset(t *testing.T) {
	var mu sync.Mutex
	attempts := map[string]int{}

	split := NewSplitTask(func(ctx context.Context, tag string, task SubTask) SubTaskResult {
		mu.Lock()
		attempts[task.Query]++
		n := attempts[task.Query]
		mu.Unlock()
		if task.Query == "beta" && n == 1 {
			return SubTaskResult{Content: "sub task failed: transient", Failed: true}
		}
		return SubTaskResult{Content: "result-" + task.Query}
	})

	out, err := split.Call(context.Background(), SplitTaskToolName, splitArgs())

	require.NoError(t, err)
	parts := SplitAggregate(out)
	require.Len(t, parts, 3)
	assert.Equal(t, "result-alpha", parts[0])
	assert.Equal(t, "result-beta", parts[1])
	assert.Equal(t, "result-gamma", parts[2])

	assert.Equal(t, 2, split.SpawnRounds())
	assert.Equal(t, 1, attempts["alpha"])
	assert.Equal(t, 2, attempts["beta"])
	assert.Equal(t, 1, attempts["gamma"])
}

func TestSplitTaskKeepsFailureAfterCeiling(t *testing.T) {
	split := NewSplitTask(func(ctx context.Context, tag string, task SubTask) SubTaskResult {
		if task.Query == "beta" {
			return SubTaskResult{Content: "sub task failed: permanent", Failed: true}
		}
		return SubTaskResult{Content: "result-" + task.Query}
	}, func(o *SplitTaskOptions) {
		o.RetryLimit = 2
	})

	out, err := split.Call(context.Background(), SplitTaskToolName, splitArgs())

	require.NoError(t, err)
	parts := SplitAggregate(out)
	require.Len(t, parts, 3)
	assert.Equal(t, "sub task failed: permanent", parts[1])
	// initial round plus two retry rounds
	assert.Equal(t, 3, split.SpawnRounds())
}

func TestSplitTaskTagsCarryRoundAndIndex(t *testing.T) {
	var mu sync.Mutex
	var tags []string

	split := NewSplitTask(func(ctx context.Context, tag string, task SubTask) SubTaskResult {
		mu.Lock()
		tags = append(tags, tag)
		mu.Unlock()
		return SubTaskResult{Content: task.Query}
	})

	_, err := split.Call(context.Background(), SplitTaskToolName, splitArgs())
	require.NoError(t, err)

	require.Len(t, tags, 3)
	for _, tag := range tags {
		assert.True(t, strings.HasPrefix(tag, "r1-worker-"), "tag %q", tag)
	}
}

func TestSplitTaskRejectsBadArguments(t *testing.T) {
	split := NewSplitTask(func(ctx context.Context, tag string, task SubTask) SubTaskResult {
		return SubTaskResult{}
	})

	_, err := split.Call(context.Background(), SplitTaskToolName, map[string]any{})
	assert.Error(t, err)

	_, err = split.Call(context.Background(), SplitTaskToolName, map[string]any{"tasks": []any{}})
	assert.Error(t, err)

	_, err = split.Call(context.Background(), SplitTaskToolName, map[string]any{
		"tasks": []any{map[string]any{"system": "x"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty query")
}

func TestSplitAggregateRoundTrip(t *testing.T) {
	parts := []string{"first output", "second\noutput", "third"}
	aggregate := strings.Join(parts, SubTaskSeparator)

	assert.Equal(t, parts, SplitAggregate(aggregate))
}
