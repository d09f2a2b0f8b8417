package runner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrun/config"
	"github.com/hupe1980/agentrun/workflow"
)

type gateEngine struct {
	node    string
	release <-chan struct{}
}

func (e *gateEngine) Run(_ context.Context, input any) (any, error) {
	if e.release != nil {
		<-e.release
	}
	return e.node + ":done", nil
}

func (e *gateEngine) ConfigForNext() *config.Config { return nil }

func gateRegistry(t *testing.T, release <-chan struct{}) *workflow.EngineRegistry {
	t.Helper()
	registry := workflow.NewEngineRegistry()
	err := registry.Register("llm", func(node string, _ *config.Config, _ map[string]any) (workflow.Engine, error) {
		return &gateEngine{node: node, release: release}, nil
	})
	require.NoError(t, err)
	return registry
}

func singleNodeDAG(t *testing.T, release <-chan struct{}) *workflow.DAG {
	t.Helper()
	dag, err := workflow.NewDAG(workflow.Definition{
		"work": {},
	}, gateRegistry(t, release))
	require.NoError(t, err)
	return dag
}

func TestCoordinatorRunCompletes(t *testing.T) {
	coord := NewCoordinator()
	dag := singleNodeDAG(t, nil)

	res := coord.Run(context.Background(), "alice", dag, "hi")

	assert.Equal(t, StatusCompleted, res.Status)
	assert.NotEmpty(t, res.TaskID)
	assert.Equal(t, "work:done", res.Outputs["work"])
	assert.Equal(t, 0, coord.ActiveCount())
	assert.False(t, coord.IsRunning("alice"))
}

func TestCoordinatorOneTaskPerUser(t *testing.T) {
	coord := NewCoordinator()

	taskID, _, err := coord.Admit("alice")
	require.NoError(t, err)

	_, _, err = coord.Admit("alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already has a running task")

	// A rejected admission must not leak a slot.
	_, _, err = coord.Admit("bob")
	require.NoError(t, err)
	assert.Equal(t, 2, coord.ActiveCount())

	coord.Finish("alice", taskID)
	assert.False(t, coord.IsRunning("alice"))
	assert.True(t, coord.IsRunning("bob"))
}

func TestCoordinatorGlobalCap(t *testing.T) {
	coord := NewCoordinator(func(o *Options) {
		o.MaxConcurrentTasks = 2
	})

	_, _, err := coord.Admit("u1")
	require.NoError(t, err)
	id2, _, err := coord.Admit("u2")
	require.NoError(t, err)

	_, _, err = coord.Admit("u3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "task slots are busy")

	coord.Finish("u2", id2)
	_, _, err = coord.Admit("u3")
	require.NoError(t, err)
}

func TestCoordinatorRejectedRunReturnsImmediately(t *testing.T) {
	coord := NewCoordinator(func(o *Options) {
		o.MaxConcurrentTasks = 1
	})
	_, _, err := coord.Admit("busy")
	require.NoError(t, err)

	dag := singleNodeDAG(t, nil)
	res := coord.Run(context.Background(), "other", dag, nil)

	assert.Equal(t, StatusRejected, res.Status)
	assert.Empty(t, res.TaskID)
	assert.Contains(t, res.Detail, "task slots are busy")
}

func TestCoordinatorCancelRunningTask(t *testing.T) {
	coord := NewCoordinator()
	release := make(chan struct{})

	dag, err := workflow.NewDAG(workflow.Definition{
		"first":  {},
		"second": {Parents: []string{"first"}},
	}, gateRegistry(t, release))
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	var res Result
	go func() {
		defer wg.Done()
		res = coord.Run(context.Background(), "alice", dag, nil)
	}()

	require.Eventually(t, func() bool {
		return coord.IsRunning("alice")
	}, time.Second, 5*time.Millisecond)

	taskID, ok := coord.ActiveTask("alice")
	require.True(t, ok)
	assert.True(t, coord.Cancel("alice", taskID))

	// Let the first node finish; the flag stops the run before the second.
	release <- struct{}{}
	wg.Wait()

	assert.Equal(t, StatusCancelled, res.Status)
	assert.Equal(t, map[string]any{"first": "first:done"}, res.Outputs)
	assert.False(t, coord.IsRunning("alice"))
}

func TestCoordinatorCancelUser(t *testing.T) {
	coord := NewCoordinator()
	_, flag, err := coord.Admit("alice")
	require.NoError(t, err)

	assert.False(t, flag.Cancelled())
	assert.True(t, coord.CancelUser("alice"))
	assert.True(t, flag.Cancelled())

	assert.False(t, coord.CancelUser("nobody"))
}

func TestCoordinatorCancelUnknownTask(t *testing.T) {
	coord := NewCoordinator()
	taskID, _, err := coord.Admit("alice")
	require.NoError(t, err)

	assert.False(t, coord.Cancel("alice", "stale-id"))
	assert.False(t, coord.Cancel("bob", taskID))

	// Finishing with a stale id leaves the real task untouched.
	coord.Finish("alice", "stale-id")
	assert.True(t, coord.IsRunning("alice"))
	coord.Finish("alice", taskID)
	assert.False(t, coord.IsRunning("alice"))
}

func TestCoordinatorConcurrentAdmissions(t *testing.T) {
	coord := NewCoordinator(func(o *Options) {
		o.MaxConcurrentTasks = 3
	})

	users := []string{"u1", "u2", "u3", "u4", "u5", "u6"}
	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for _, user := range users {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			if _, _, err := coord.Admit(user); err == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}(user)
	}
	wg.Wait()

	assert.Equal(t, 3, admitted)
	assert.Equal(t, 3, coord.ActiveCount())
}
