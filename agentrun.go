// Package agentrun provides a high-level façade over the agent step loop,
// the workflow executors and the multi-tenant run coordinator. Most
// applications interact with this package by:
//  1. Creating an AgentRun via New() (optionally overriding logger, model
//     factory or the admission cap)
//  2. Running a single configured agent (RunAgent) or a workflow definition
//     as a chain (RunChain) or DAG (RunDAG)
//  3. Submitting DAG runs on behalf of users through Submit, which enforces
//     one running task per user and the global concurrency cap
//
// The façade delegates the step loop to agent.LLMAgent and scheduling to the
// workflow package while keeping setup concise. Defaults are safe for local
// development; production deployments typically supply a structured logger
// and tuned admission limits.
package agentrun

import (
	"context"

	"github.com/hupe1980/agentrun/agent"
	"github.com/hupe1980/agentrun/callback"
	"github.com/hupe1980/agentrun/config"
	"github.com/hupe1980/agentrun/llm"
	"github.com/hupe1980/agentrun/logging"
	"github.com/hupe1980/agentrun/runner"
	"github.com/hupe1980/agentrun/workflow"
)

// Options configures the AgentRun instance.
type Options struct {
	// Logger (defaults to a NoOp logger if nil).
	Logger logging.Logger

	// Model overrides the config-derived model for every agent the façade
	// creates. Useful for tests and local development.
	Model llm.Model

	// CallbackRegistry resolves callback names from configs.
	CallbackRegistry *callback.Registry

	// MaxConcurrentTasks bounds simultaneous Submit runs across all users.
	MaxConcurrentTasks int64
}

// AgentRun aggregates the engine registry and run coordinator behind a small
// surface.
type AgentRun struct {
	opts     Options
	registry *workflow.EngineRegistry
	coord    *runner.Coordinator
}

// New creates an AgentRun instance with optional overrides.
func New(optFns ...func(o *Options)) *AgentRun {
	opts := Options{
		Logger:             logging.NewNoOpLogger(),
		MaxConcurrentTasks: runner.DefaultMaxConcurrentTasks,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	registry := workflow.NewDefaultEngineRegistry(func(o *agent.Options) {
		o.Logger = opts.Logger
		if opts.Model != nil {
			o.Model = opts.Model
		}
		if opts.CallbackRegistry != nil {
			o.CallbackRegistry = opts.CallbackRegistry
		}
	})

	coord := runner.NewCoordinator(func(o *runner.Options) {
		o.Logger = opts.Logger
		o.MaxConcurrentTasks = opts.MaxConcurrentTasks
	})

	return &AgentRun{opts: opts, registry: registry, coord: coord}
}

// Engines exposes the engine registry so applications can register custom
// node engines next to the built-in llm engine.
func (r *AgentRun) Engines() *workflow.EngineRegistry { return r.registry }

// Coordinator exposes the underlying run coordinator for cancellation and
// introspection.
func (r *AgentRun) Coordinator() *runner.Coordinator { return r.coord }

// RunAgent builds an agent from cfg and runs a single query to completion,
// returning the final assistant reply.
func (r *AgentRun) RunAgent(ctx context.Context, cfg *config.Config, query string) (string, error) {
	a, err := agent.New(cfg, func(o *agent.Options) {
		o.Logger = r.opts.Logger
		if r.opts.Model != nil {
			o.Model = r.opts.Model
		}
		if r.opts.CallbackRegistry != nil {
			o.CallbackRegistry = r.opts.CallbackRegistry
		}
	})
	if err != nil {
		return "", err
	}

	messages, err := a.Run(ctx, query)
	if err != nil {
		return "", err
	}
	return llm.FinalContent(messages), nil
}

// RunChain executes a workflow definition as a linear chain.
func (r *AgentRun) RunChain(ctx context.Context, def workflow.Definition, input any, optFns ...func(o *workflow.ChainOptions)) (any, error) {
	chain, err := workflow.NewChain(def, r.registry, append([]func(o *workflow.ChainOptions){func(o *workflow.ChainOptions) {
		o.Logger = r.opts.Logger
	}}, optFns...)...)
	if err != nil {
		return nil, err
	}
	return chain.Run(ctx, input)
}

// RunDAG executes a workflow definition as a DAG without admission control.
func (r *AgentRun) RunDAG(ctx context.Context, def workflow.Definition, input any, optFns ...func(o *workflow.DAGOptions)) (*workflow.Result, error) {
	dag, err := workflow.NewDAG(def, r.registry, append([]func(o *workflow.DAGOptions){func(o *workflow.DAGOptions) {
		o.Logger = r.opts.Logger
	}}, optFns...)...)
	if err != nil {
		return nil, err
	}
	return dag.Run(ctx, input)
}

// Submit runs a DAG workflow on behalf of a user under admission control:
// one running task per user, MaxConcurrentTasks across all users, and an
// immediate rejection when either limit is hit.
func (r *AgentRun) Submit(ctx context.Context, userID string, def workflow.Definition, input any, optFns ...func(o *workflow.DAGOptions)) runner.Result {
	dag, err := workflow.NewDAG(def, r.registry, append([]func(o *workflow.DAGOptions){func(o *workflow.DAGOptions) {
		o.Logger = r.opts.Logger
	}}, optFns...)...)
	if err != nil {
		return runner.Result{Status: runner.StatusRejected, Detail: err.Error(), Err: err}
	}
	return r.coord.Run(ctx, userID, dag, input)
}
