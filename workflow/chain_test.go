package workflow

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrun/config"
)

// stubEngine records what it ran with and appends its name to the data.
type stubEngine struct {
	name    string
	cfg     *config.Config
	nextCfg *config.Config
}

func (e *stubEngine) Run(ctx context.Context, input any) (any, error) {
	s, _ := input.(string)
	return s + "->" + e.name, nil
}

func (e *stubEngine) ConfigForNext() *config.Config { return e.nextCfg }

// stubRegistry registers a "stub" engine that records per-node configs and
// hands refined config to the next node.
func stubRegistry(t *testing.T, seenConfigs map[string]*config.Config) *EngineRegistry {
	t.Helper()
	registry := NewEngineRegistry()
	require.NoError(t, registry.Register("stub", func(node string, cfg *config.Config, kwargs map[string]any) (Engine, error) {
		if seenConfigs != nil {
			seenConfigs[node] = cfg
		}
		next := config.New()
		next.Prompt.System = "refined by " + node
		return &stubEngine{name: node, cfg: cfg, nextCfg: next}, nil
	}))
	return registry
}

func chainDef() Definition {
	return Definition{
		"plan":    {Agent: AgentSpec{Name: "stub"}, Next: NextRef{"write"}},
		"write":   {Agent: AgentSpec{Name: "stub"}, Next: NextRef{"publish"}},
		"publish": {Agent: AgentSpec{Name: "stub"}},
	}
}

func TestNewChainResolvesOrder(t *testing.T) {
	chain, err := NewChain(chainDef(), stubRegistry(t, nil))

	require.NoError(t, err)
	assert.Equal(t, []string{"plan", "write", "publish"}, chain.Order())
}

func TestChainRunThreadsData(t *testing.T) {
	chain, err := NewChain(chainDef(), stubRegistry(t, nil))
	require.NoError(t, err)

	out, err := chain.Run(context.Background(), "input")

	require.NoError(t, err)
	assert.Equal(t, "input->plan->write->publish", out)
}

func TestChainCarriesRefinedConfig(t *testing.T) {
	seen := map[string]*config.Config{}
	chain, err := NewChain(chainDef(), stubRegistry(t, seen))
	require.NoError(t, err)

	_, err = chain.Run(context.Background(), "input")
	require.NoError(t, err)

	assert.Nil(t, seen["plan"])
	require.NotNil(t, seen["write"])
	assert.Equal(t, "refined by plan", seen["write"].Prompt.System)
	require.NotNil(t, seen["publish"])
	assert.Equal(t, "refined by write", seen["publish"].Prompt.System)
}

func TestChainNodeConfigPinsOverCarried(t *testing.T) {
	def := chainDef()
	pinned := config.New()
	pinned.Prompt.System = "pinned"
	node := def["publish"]
	node.Config = pinned
	def["publish"] = node

	seen := map[string]*config.Config{}
	chain, err := NewChain(def, stubRegistry(t, seen))
	require.NoError(t, err)

	_, err = chain.Run(context.Background(), "input")
	require.NoError(t, err)

	assert.Equal(t, "pinned", seen["publish"].Prompt.System)
}

func TestNewChainRejectsMultipleStarts(t *testing.T) {
	def := Definition{
		"a": {Next: NextRef{"c"}},
		"b": {Next: NextRef{"c"}},
		"c": {},
	}

	_, err := NewChain(def, stubRegistry(t, nil))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple start nodes")
}

func TestNewChainRejectsCycle(t *testing.T) {
	def := Definition{
		"a": {Next: NextRef{"b"}},
		"b": {Next: NextRef{"a"}},
	}

	_, err := NewChain(def, stubRegistry(t, nil))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no start node")
}

func TestNewChainRejectsMultipleSuccessors(t *testing.T) {
	def := Definition{
		"a": {Next: NextRef{"b", "c"}},
		"b": {},
		"c": {},
	}

	_, err := NewChain(def, stubRegistry(t, nil))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "chains allow one")
}

func TestNewChainRejectsDanglingNext(t *testing.T) {
	def := Definition{
		"a": {Next: NextRef{"ghost"}},
	}

	_, err := NewChain(def, stubRegistry(t, nil))

	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown successor "ghost"`)
}

func TestParseDefinitionAcceptsScalarNext(t *testing.T) {
	raw := []byte(`
plan:
  agent: {name: stub}
  next: write
write:
  agent: {name: stub}
`)
	def, err := ParseDefinition(raw)

	require.NoError(t, err)
	assert.Equal(t, NextRef{"write"}, def["plan"].Next)
	assert.Equal(t, "stub", def["plan"].Agent.Name)
	assert.Equal(t, DefaultEngineName, Node{}.EngineName())
}

func TestChainStatusCallback(t *testing.T) {
	var events []string
	chain, err := NewChain(chainDef(), stubRegistry(t, nil), func(o *ChainOptions) {
		o.Status = func(node string, phase Phase, preview string) {
			events = append(events, fmt.Sprintf("%s:%s", node, phase))
			if phase == PhaseEnd {
				panic("observer bug")
			}
		}
	})
	require.NoError(t, err)

	out, err := chain.Run(context.Background(), "input")

	// The panicking observer never disturbs the run.
	require.NoError(t, err)
	assert.Equal(t, "input->plan->write->publish", out)
	assert.Equal(t, []string{
		"plan:start", "plan:end",
		"write:start", "write:end",
		"publish:start", "publish:end",
	}, events)
}
