package workflow

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"

	"github.com/hupe1980/agentrun/agent"
	"github.com/hupe1980/agentrun/config"
	"github.com/hupe1980/agentrun/llm"
)

// Engine runs one workflow node. Input is whatever the predecessor produced
// (or the workflow input for root nodes); output feeds the successors.
type Engine interface {
	Run(ctx context.Context, input any) (any, error)

	// ConfigForNext returns the config a chained successor starts from, or
	// nil when the engine has nothing to hand over.
	ConfigForNext() *config.Config
}

// EngineFactory builds an engine for a node. cfg is the node's effective
// config (may be nil), kwargs the engine arguments from the definition.
type EngineFactory func(node string, cfg *config.Config, kwargs map[string]any) (Engine, error)

// EngineRegistry resolves engine names from workflow definitions to
// factories.
type EngineRegistry struct {
	mu        sync.RWMutex
	factories map[string]EngineFactory
}

// NewEngineRegistry creates an empty registry.
func NewEngineRegistry() *EngineRegistry {
	return &EngineRegistry{factories: make(map[string]EngineFactory)}
}

// Register adds a factory under a name. Registering the same name twice is
// an error.
func (r *EngineRegistry) Register(name string, factory EngineFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("engine %q already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Create instantiates the engine registered under name for a node.
func (r *EngineRegistry) Create(name, node string, cfg *config.Config, kwargs map[string]any) (Engine, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown engine %q (registered: %v)", name, r.Names())
	}
	return factory(node, cfg, kwargs)
}

// Names returns the registered engine names in sorted order.
func (r *EngineRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// llmEngineArgs are the kwargs the llm engine understands.
type llmEngineArgs struct {
	Tag          string `mapstructure:"tag"`
	MaxChatRound int    `mapstructure:"max_chat_round"`
}

// LLMEngineFactory returns the factory for the default "llm" engine, which
// runs a node as one LLMAgent. The given option functions apply to every
// agent the factory builds, so callers can inject a model, logger or
// callbacks for the whole workflow.
func LLMEngineFactory(optFns ...func(o *agent.Options)) EngineFactory {
	return func(node string, cfg *config.Config, kwargs map[string]any) (Engine, error) {
		var args llmEngineArgs
		if len(kwargs) > 0 {
			if err := mapstructure.Decode(kwargs, &args); err != nil {
				return nil, fmt.Errorf("engine kwargs of node %q: %w", node, err)
			}
		}

		if cfg == nil {
			cfg = config.New()
		} else {
			cfg = cfg.Clone()
		}
		if args.MaxChatRound > 0 {
			cfg.MaxChatRound = args.MaxChatRound
		}
		tag := args.Tag
		if tag == "" {
			tag = node
		}

		a, err := agent.New(cfg, append(optFns, func(o *agent.Options) {
			o.Tag = tag
		})...)
		if err != nil {
			return nil, err
		}
		return &agentEngine{agent: a}, nil
	}
}

// NewDefaultEngineRegistry returns a registry with the llm engine bound.
func NewDefaultEngineRegistry(optFns ...func(o *agent.Options)) *EngineRegistry {
	registry := NewEngineRegistry()
	// Fresh registry, the name cannot collide.
	_ = registry.Register(DefaultEngineName, LLMEngineFactory(optFns...))
	return registry
}

// agentEngine adapts an Agent to the Engine contract, converting whatever
// the predecessors produced into agent input.
type agentEngine struct {
	agent agent.Agent
}

func (e *agentEngine) Run(ctx context.Context, input any) (any, error) {
	switch v := input.(type) {
	case nil:
		return e.agent.Run(ctx, "")
	case string:
		return e.agent.Run(ctx, v)
	case []llm.Message:
		return e.agent.RunMessages(ctx, v)
	case []any:
		// Multi-parent fan-in: flatten every parent output to text, keep
		// declaration order.
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, textOf(item))
		}
		return e.agent.Run(ctx, strings.Join(parts, "\n\n"))
	default:
		return nil, fmt.Errorf("unsupported input type %T for agent %q", input, e.agent.Tag())
	}
}

func (e *agentEngine) ConfigForNext() *config.Config {
	return e.agent.ConfigForNext()
}

func textOf(item any) string {
	switch v := item.(type) {
	case string:
		return v
	case []llm.Message:
		return llm.FinalContent(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
