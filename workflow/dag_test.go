package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrun/config"
)

// collectEngine records the input it ran with and emits its node name.
type collectEngine struct {
	name   string
	inputs *sync.Map
	fail   bool
}

func (e *collectEngine) Run(ctx context.Context, input any) (any, error) {
	e.inputs.Store(e.name, input)
	if e.fail {
		return nil, errors.New("node broke")
	}
	return "out-" + e.name, nil
}

func (e *collectEngine) ConfigForNext() *config.Config { return nil }

func collectRegistry(t *testing.T, inputs *sync.Map, failing ...string) *EngineRegistry {
	t.Helper()
	failSet := map[string]bool{}
	for _, name := range failing {
		failSet[name] = true
	}
	registry := NewEngineRegistry()
	require.NoError(t, registry.Register("stub", func(node string, cfg *config.Config, kwargs map[string]any) (Engine, error) {
		return &collectEngine{name: node, inputs: inputs, fail: failSet[node]}, nil
	}))
	return registry
}

// diamond: fetch -> (analyze, summarize) -> report
func diamondDef() Definition {
	return Definition{
		"fetch":     {Agent: AgentSpec{Name: "stub"}},
		"analyze":   {Agent: AgentSpec{Name: "stub"}, Parents: []string{"fetch"}},
		"summarize": {Agent: AgentSpec{Name: "stub"}, Parents: []string{"fetch"}},
		"report":    {Agent: AgentSpec{Name: "stub"}, Parents: []string{"analyze", "summarize"}},
	}
}

func TestNewDAGSchedulesTopologically(t *testing.T) {
	dag, err := NewDAG(diamondDef(), collectRegistry(t, &sync.Map{}))

	require.NoError(t, err)
	assert.Equal(t, []string{"fetch", "analyze", "summarize", "report"}, dag.Order())
	assert.Equal(t, []string{"report"}, dag.Terminals())
}

func TestDAGRunRoutesInputsAndOutputs(t *testing.T) {
	var inputs sync.Map
	dag, err := NewDAG(diamondDef(), collectRegistry(t, &inputs))
	require.NoError(t, err)

	res, err := dag.Run(context.Background(), "the question")
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, res.Status)
	// Only the terminal node shows up in the outputs.
	assert.Equal(t, map[string]any{"report": "out-report"}, res.Outputs)

	// Root gets the workflow input.
	rootIn, _ := inputs.Load("fetch")
	assert.Equal(t, "the question", rootIn)

	// Single parent is unwrapped.
	analyzeIn, _ := inputs.Load("analyze")
	assert.Equal(t, "out-fetch", analyzeIn)

	// Fan-in arrives as a list in declaration order.
	reportIn, _ := inputs.Load("report")
	assert.Equal(t, []any{"out-analyze", "out-summarize"}, reportIn)
}

func TestDAGRejectsCycle(t *testing.T) {
	def := Definition{
		"a": {Parents: []string{"b"}},
		"b": {Parents: []string{"a"}},
	}

	_, err := NewDAG(def, collectRegistry(t, &sync.Map{}))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestDAGRejectsUnknownParent(t *testing.T) {
	def := Definition{
		"a": {Parents: []string{"ghost"}},
	}

	_, err := NewDAG(def, collectRegistry(t, &sync.Map{}))

	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown parent "ghost"`)
}

func TestDAGNodeErrorWrapsPosition(t *testing.T) {
	dag, err := NewDAG(diamondDef(), collectRegistry(t, &sync.Map{}, "analyze"))
	require.NoError(t, err)

	_, err = dag.Run(context.Background(), "q")

	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "analyze", execErr.Node)
	assert.Equal(t, "run", execErr.Op)
}

func TestDAGCancellationStopsBetweenNodes(t *testing.T) {
	flag := NewCancelFlag()
	completed := 0

	dag, err := NewDAG(diamondDef(), collectRegistry(t, &sync.Map{}), func(o *DAGOptions) {
		o.Status = func(node string, phase Phase, preview string) {
			if phase != PhaseEnd {
				return
			}
			completed++
			if completed == 2 {
				flag.Cancel()
			}
		}
	})
	require.NoError(t, err)

	res, err := dag.RunWithCancel(context.Background(), "q", flag)
	require.NoError(t, err)

	// Cancellation is an outcome, not an error, and exactly the finished
	// nodes report outputs.
	assert.Equal(t, StatusCancelled, res.Status)
	assert.Len(t, res.Outputs, 2)
	assert.Contains(t, res.Outputs, "fetch")
	assert.Contains(t, res.Outputs, "analyze")
}

func TestDAGPreCancelledRunsNothing(t *testing.T) {
	flag := NewCancelFlag()
	flag.Cancel()

	var inputs sync.Map
	dag, err := NewDAG(diamondDef(), collectRegistry(t, &inputs))
	require.NoError(t, err)

	res, err := dag.RunWithCancel(context.Background(), "q", flag)
	require.NoError(t, err)

	assert.Equal(t, StatusCancelled, res.Status)
	assert.Empty(t, res.Outputs)
	_, ran := inputs.Load("fetch")
	assert.False(t, ran)
}

func TestCancelFlag(t *testing.T) {
	var flag *CancelFlag
	assert.False(t, flag.Cancelled())

	flag = NewCancelFlag()
	assert.False(t, flag.Cancelled())
	flag.Cancel()
	flag.Cancel()
	assert.True(t, flag.Cancelled())
}
