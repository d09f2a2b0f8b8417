package workflow

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentrun/config"
	"github.com/hupe1980/agentrun/logging"
)

// ChainOptions configure a Chain.
type ChainOptions struct {
	Logger logging.Logger
	Status StatusFunc
	// SharedConfig seeds the first node when it declares no config of its
	// own.
	SharedConfig *config.Config
}

// Chain executes nodes strictly one after another. The build resolves the
// single start node (a node nobody references as next) and fails on zero or
// several starts, on a node with more than one successor, on dangling next
// references and on nodes unreachable from the start. During the run, config
// refined by one node is carried into the next unless that node pins its
// own.
type Chain struct {
	def      Definition
	order    []string
	registry *EngineRegistry
	opts     ChainOptions
}

// NewChain validates the definition and materializes the execution order.
func NewChain(def Definition, registry *EngineRegistry, optFns ...func(o *ChainOptions)) (*Chain, error) {
	opts := ChainOptions{
		Logger: logging.NewNoOpLogger(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	referenced := make(map[string]bool)
	for name, node := range def {
		if len(node.Next) > 1 {
			return nil, fmt.Errorf("node %q declares %d successors, chains allow one", name, len(node.Next))
		}
		if len(node.Next) == 1 {
			next := node.Next[0]
			if _, ok := def[next]; !ok {
				return nil, fmt.Errorf("node %q references unknown successor %q", name, next)
			}
			referenced[next] = true
		}
	}

	var start string
	for name := range def {
		if !referenced[name] {
			if start != "" {
				return nil, fmt.Errorf("chain has multiple start nodes: %q and %q", start, name)
			}
			start = name
		}
	}
	if start == "" {
		return nil, fmt.Errorf("chain has no start node, the definition is cyclic")
	}

	var order []string
	for name := start; name != ""; {
		order = append(order, name)
		if len(order) > len(def) {
			return nil, fmt.Errorf("chain is cyclic at node %q", name)
		}
		node := def[name]
		if len(node.Next) == 0 {
			break
		}
		name = node.Next[0]
	}
	if len(order) != len(def) {
		return nil, fmt.Errorf("chain has %d nodes but only %d are reachable from %q", len(def), len(order), start)
	}

	return &Chain{def: def, order: order, registry: registry, opts: opts}, nil
}

// Order returns the execution order.
func (c *Chain) Order() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Run threads the input through every node in order and returns the output
// of the last one.
func (c *Chain) Run(ctx context.Context, input any) (any, error) {
	carried := c.opts.SharedConfig
	data := input

	for _, name := range c.order {
		node := c.def[name]
		cfg := node.Config
		if cfg == nil {
			cfg = carried
		}

		engine, err := c.registry.Create(node.EngineName(), name, cfg, node.Agent.Kwargs)
		if err != nil {
			return nil, &ExecutionError{Node: name, Op: "create", Err: err}
		}

		logging.ForNode(c.opts.Logger, name).Info("chain node starting")
		notify(c.opts.Logger, c.opts.Status, name, PhaseStart, "")

		data, err = engine.Run(ctx, data)
		if err != nil {
			return nil, &ExecutionError{Node: name, Op: "run", Err: err}
		}

		notify(c.opts.Logger, c.opts.Status, name, PhaseEnd, preview(data))
		carried = engine.ConfigForNext()
	}
	return data, nil
}
