package workflow

import (
	"context"
	"fmt"
	"sort"

	"github.com/hupe1980/agentrun/config"
	"github.com/hupe1980/agentrun/logging"
)

// DAGOptions configure a DAG.
type DAGOptions struct {
	Logger logging.Logger
	Status StatusFunc
	// SharedConfig seeds nodes that declare no config of their own.
	SharedConfig *config.Config
}

// Result is the outcome of a DAG run. On completion Outputs holds the
// terminal node outputs; on cancellation it holds whatever nodes finished
// before the flag was honored.
type Result struct {
	Status  Status
	Outputs map[string]any
}

// DAG executes nodes in topological order over their declared parents. Root
// nodes receive the workflow input; a single-parent node receives its
// parent's output unwrapped, a fan-in node receives a list of parent outputs
// in declaration order. Terminal outputs are those of every node that is
// nobody's parent. A cooperative cancellation flag is checked before and
// after every node.
type DAG struct {
	def       Definition
	order     []string
	terminals []string
	registry  *EngineRegistry
	opts      DAGOptions
}

// NewDAG validates the definition and computes the schedule.
func NewDAG(def Definition, registry *EngineRegistry, optFns ...func(o *DAGOptions)) (*DAG, error) {
	opts := DAGOptions{
		Logger: logging.NewNoOpLogger(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	isParent := make(map[string]bool)
	indegree := make(map[string]int, len(def))
	children := make(map[string][]string)
	for name, node := range def {
		indegree[name] = len(node.Parents)
		for _, parent := range node.Parents {
			if _, ok := def[parent]; !ok {
				return nil, fmt.Errorf("node %q references unknown parent %q", name, parent)
			}
			isParent[parent] = true
			children[parent] = append(children[parent], name)
		}
	}

	// Kahn's algorithm; the ready set is kept sorted so the schedule is
	// deterministic.
	var ready []string
	for name, deg := range indegree {
		if deg == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	var order []string
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)

		next := children[name]
		sort.Strings(next)
		for _, child := range next {
			indegree[child]--
			if indegree[child] == 0 {
				ready = append(ready, child)
			}
		}
		sort.Strings(ready)
	}
	if len(order) != len(def) {
		return nil, fmt.Errorf("workflow has a cycle, only %d of %d nodes are schedulable", len(order), len(def))
	}

	var terminals []string
	for name := range def {
		if !isParent[name] {
			terminals = append(terminals, name)
		}
	}
	sort.Strings(terminals)

	return &DAG{
		def:       def,
		order:     order,
		terminals: terminals,
		registry:  registry,
		opts:      opts,
	}, nil
}

// Order returns the schedule.
func (d *DAG) Order() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// Terminals returns the nodes whose outputs form the workflow output.
func (d *DAG) Terminals() []string {
	out := make([]string, len(d.terminals))
	copy(out, d.terminals)
	return out
}

// Run executes the DAG without a cancellation flag.
func (d *DAG) Run(ctx context.Context, input any) (*Result, error) {
	return d.RunWithCancel(ctx, input, nil)
}

// RunWithCancel executes the DAG, honoring the flag between nodes. A set
// flag ends the run with StatusCancelled and the outputs produced so far; it
// is not an error.
func (d *DAG) RunWithCancel(ctx context.Context, input any, flag *CancelFlag) (*Result, error) {
	outputs := make(map[string]any)

	for _, name := range d.order {
		if flag.Cancelled() {
			d.opts.Logger.Info("workflow cancelled", "before_node", name)
			return &Result{Status: StatusCancelled, Outputs: outputs}, nil
		}

		node := d.def[name]
		cfg := node.Config
		if cfg == nil {
			cfg = d.opts.SharedConfig
		}

		engine, err := d.registry.Create(node.EngineName(), name, cfg, node.Agent.Kwargs)
		if err != nil {
			return nil, &ExecutionError{Node: name, Op: "create", Err: err}
		}

		notify(d.opts.Logger, d.opts.Status, name, PhaseStart, "")
		logging.ForNode(d.opts.Logger, name).Info("dag node starting", "parents", node.Parents)

		out, err := engine.Run(ctx, d.inputFor(node, input, outputs))
		if err != nil {
			return nil, &ExecutionError{Node: name, Op: "run", Err: err}
		}
		outputs[name] = out

		notify(d.opts.Logger, d.opts.Status, name, PhaseEnd, preview(out))

		if flag.Cancelled() {
			d.opts.Logger.Info("workflow cancelled", "after_node", name)
			return &Result{Status: StatusCancelled, Outputs: outputs}, nil
		}
	}

	final := make(map[string]any, len(d.terminals))
	for _, name := range d.terminals {
		final[name] = outputs[name]
	}
	return &Result{Status: StatusCompleted, Outputs: final}, nil
}

// inputFor assembles a node's input from the workflow input and its parents'
// outputs.
func (d *DAG) inputFor(node Node, input any, outputs map[string]any) any {
	switch len(node.Parents) {
	case 0:
		return input
	case 1:
		return outputs[node.Parents[0]]
	default:
		fanIn := make([]any, 0, len(node.Parents))
		for _, parent := range node.Parents {
			fanIn = append(fanIn, outputs[parent])
		}
		return fanIn
	}
}
