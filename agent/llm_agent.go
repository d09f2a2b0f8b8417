package agent

import (
	"context"
	"fmt"
	"sort"

	"github.com/hupe1980/agentrun/callback"
	"github.com/hupe1980/agentrun/config"
	"github.com/hupe1980/agentrun/internal/util"
	"github.com/hupe1980/agentrun/llm"
	"github.com/hupe1980/agentrun/logging"
	"github.com/hupe1980/agentrun/tool"
)

// DefaultSystemPrompt is used when the config does not set one.
const DefaultSystemPrompt = "You are a helpful assistant."

// DefaultTag names runs of agents that were not given an explicit tag.
const DefaultTag = "agent"

// Agent is the contract workflow executors drive: run a task from a fresh
// query or from a carried conversation, and hand refined config to the next
// node.
type Agent interface {
	// Tag identifies the agent's runs in logs and history.
	Tag() string

	// Run starts a fresh task from a query.
	Run(ctx context.Context, query string) ([]llm.Message, error)

	// RunMessages starts a task over a prepared conversation, e.g. the
	// output of a predecessor node.
	RunMessages(ctx context.Context, messages []llm.Message) ([]llm.Message, error)

	// ConfigForNext returns the config a successor should start from.
	ConfigForNext() *config.Config
}

// Options configure an LLMAgent beyond its declarative config.
type Options struct {
	// Model overrides the provider built from the config.
	Model llm.Model
	// Logger receives run progress; defaults to a no-op logger.
	Logger logging.Logger
	// Tag identifies the run; spawned sub agents extend it.
	Tag string
	// Callbacks are fired in order at the six hook points.
	Callbacks []callback.Callback
	// CallbackRegistry resolves callback names from the config.
	CallbackRegistry *callback.Registry
	// Planner maintains a plan inside the conversation; nil disables planning.
	Planner Planner
	// Memory refiners run before every model call, in order.
	Memory []Memory
	// Tools are extra sources registered alongside the config wired ones.
	Tools []tool.Tool
	// Limiter bounds model calls; shared with spawned sub agents.
	Limiter *llm.CallLimiter
	// History receives a conversation snapshot after every round.
	History *HistoryStore
}

// LLMAgent drives one conversation with a model to completion. The loop per
// round: refine memory, update plan, fire generate hooks, call the model,
// dispatch any tool calls concurrently, fire the after hooks. The run stops
// when a round produces no tool calls, a callback stops it or the round
// ceiling forces termination.
type LLMAgent struct {
	cfg       *config.Config
	opts      Options
	model     llm.Model
	tools     *tool.Manager
	callbacks []callback.Callback
	memory    []Memory
	limiter   *llm.CallLimiter
	logger    logging.Logger
	tag       string
}

// New builds an agent from its config.
func New(cfg *config.Config, optFns ...func(o *Options)) (*LLMAgent, error) {
	if cfg == nil {
		cfg = config.New()
	}
	opts := Options{
		Logger: logging.NewNoOpLogger(),
		Tag:    DefaultTag,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	model := opts.Model
	if model == nil {
		var err error
		model, err = NewModelFromConfig(cfg.LLM)
		if err != nil {
			return nil, err
		}
	}

	callbacks := append([]callback.Callback{}, opts.Callbacks...)
	for _, name := range cfg.Callbacks {
		if opts.CallbackRegistry == nil {
			return nil, fmt.Errorf("config names callback %q but no registry is set", name)
		}
		cb, err := opts.CallbackRegistry.Create(name, nil)
		if err != nil {
			return nil, err
		}
		callbacks = append(callbacks, cb)
	}

	memory := append([]Memory{}, opts.Memory...)
	configured, err := buildMemory(cfg.Memory)
	if err != nil {
		return nil, err
	}
	memory = append(memory, configured...)

	limiter := opts.Limiter
	if limiter == nil {
		limiter = llm.NewCallLimiter(cfg.MaxModelCall)
	}

	a := &LLMAgent{
		cfg:       cfg,
		opts:      opts,
		model:     model,
		callbacks: callbacks,
		memory:    memory,
		limiter:   limiter,
		logger:    logging.ForTag(opts.Logger, opts.Tag),
		tag:       opts.Tag,
	}
	a.tools = tool.NewManager(a.buildToolSources(), func(o *tool.ManagerOptions) {
		o.Logger = a.logger
	})
	return a, nil
}

// buildToolSources wires the sources the config declares plus any extras.
func (a *LLMAgent) buildToolSources() []tool.Tool {
	var sources []tool.Tool

	if len(a.cfg.Tools.MCPServers) > 0 {
		names := make([]string, 0, len(a.cfg.Tools.MCPServers))
		for name := range a.cfg.Tools.MCPServers {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			sources = append(sources, tool.NewMCPToolset(name, a.cfg.Tools.MCPServers[name]))
		}
	}

	if sc := a.cfg.Tools.SplitTask; sc != nil {
		sources = append(sources, tool.NewSplitTask(a.runSubTask, func(o *tool.SplitTaskOptions) {
			if sc.TagPrefix != "" {
				o.TagPrefix = sc.TagPrefix
			}
			if sc.RetryLimit > 0 {
				o.RetryLimit = sc.RetryLimit
			}
			o.Logger = a.logger
		}))
	}

	return append(sources, a.opts.Tools...)
}

// Tag implements Agent.
func (a *LLMAgent) Tag() string { return a.tag }

// ConfigForNext implements Agent; successors start from a deep copy so they
// can mutate freely.
func (a *LLMAgent) ConfigForNext() *config.Config {
	return a.cfg.Clone()
}

// Run implements Agent.
func (a *LLMAgent) Run(ctx context.Context, query string) ([]llm.Message, error) {
	return a.RunMessages(ctx, a.prepareMessages(query))
}

// prepareMessages builds the fresh [system, user] conversation.
func (a *LLMAgent) prepareMessages(query string) []llm.Message {
	system := a.cfg.Prompt.System
	if system == "" {
		system = DefaultSystemPrompt
	}
	if rendered, err := util.RenderTemplate(system, map[string]any{"tag": a.tag}); err == nil {
		system = rendered
	}
	if query == "" {
		query = a.cfg.Prompt.Query
	}
	return []llm.Message{
		llm.NewSystemMessage(system),
		llm.NewUserMessage(query),
	}
}

// RunMessages implements Agent.
func (a *LLMAgent) RunMessages(ctx context.Context, messages []llm.Message) ([]llm.Message, error) {
	rt := &callback.Runtime{Tag: a.tag, LLM: a.model}

	if err := a.tools.Connect(ctx); err != nil {
		return nil, err
	}
	defer func() {
		if err := a.tools.Cleanup(context.WithoutCancel(ctx)); err != nil {
			a.logger.Warn("tool cleanup failed", "tag", a.tag, "error", err)
		}
	}()

	if err := a.fire(ctx, rt, &messages, callback.Callback.OnTaskBegin); err != nil {
		return messages, err
	}

	for !rt.ShouldStop {
		if err := ctx.Err(); err != nil {
			return messages, err
		}

		var err error
		messages, err = a.step(ctx, rt, messages)
		if err != nil {
			return messages, err
		}
		rt.Round++

		if rt.Round >= a.maxChatRound()+1 && !rt.ShouldStop {
			messages = append(messages, a.maxRoundFailure(messages))
			rt.ShouldStop = true
		}
		if a.opts.History != nil {
			a.opts.History.Save(a.tag, rt.Round, messages)
		}
	}

	if err := a.fire(ctx, rt, &messages, callback.Callback.OnTaskEnd); err != nil {
		return messages, err
	}
	return messages, nil
}

// step runs one round and returns the grown conversation.
func (a *LLMAgent) step(ctx context.Context, rt *callback.Runtime, messages []llm.Message) ([]llm.Message, error) {
	var err error
	for _, mem := range a.memory {
		if messages, err = mem.Refine(rt, messages); err != nil {
			return messages, err
		}
	}

	if a.opts.Planner != nil {
		if rt.Round == 0 {
			messages, err = a.opts.Planner.MakePlan(ctx, rt, messages)
		} else {
			messages, err = a.opts.Planner.UpdatePlan(ctx, rt, messages)
		}
		if err != nil {
			return messages, err
		}
	}

	if err := a.fire(ctx, rt, &messages, callback.Callback.OnGenerateResponse); err != nil {
		return messages, err
	}

	if err := a.limiter.Increment(); err != nil {
		return messages, err
	}
	req := &llm.Request{
		Messages: messages,
		Tools:    a.tools.Tools(),
		Options:  a.generateOptions(),
	}
	reply, err := a.generate(ctx, req)
	if err != nil {
		return messages, err
	}
	messages = append(messages, *reply)

	if err := a.fire(ctx, rt, &messages, callback.Callback.AfterGenerateResponse); err != nil {
		return messages, err
	}
	if err := a.fire(ctx, rt, &messages, callback.Callback.OnToolCall); err != nil {
		return messages, err
	}

	// Callbacks may have rewritten the reply, so re-read it.
	last := messages[len(messages)-1]
	if last.Role == llm.RoleAssistant && len(last.ToolCalls) > 0 {
		results := a.tools.CallAll(ctx, last.ToolCalls)
		messages = append(messages, results...)
	} else {
		rt.ShouldStop = true
	}

	if err := a.fire(ctx, rt, &messages, callback.Callback.AfterToolCall); err != nil {
		return messages, err
	}
	return messages, nil
}

// generate performs the model call, streaming when configured. Transient
// failures get a bounded retry; a final failure is fatal for the run.
func (a *LLMAgent) generate(ctx context.Context, req *llm.Request) (*llm.Message, error) {
	if !a.cfg.Generation.Stream {
		return llm.GenerateWithRetry(ctx, a.model, req, llm.DefaultGenerateAttempts, a.logger)
	}

	var lastErr error
	for attempt := 1; attempt <= llm.DefaultGenerateAttempts; attempt++ {
		fragments, errCh := a.model.GenerateStream(ctx, req)
		reply, err := llm.Collect(fragments, errCh)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		a.logger.Warn("streamed model call failed", "attempt", attempt, "error", err)
	}
	return nil, fmt.Errorf("model call failed after %d attempts: %w", llm.DefaultGenerateAttempts, lastErr)
}

func (a *LLMAgent) generateOptions() *llm.GenerateOptions {
	gc := a.cfg.Generation
	if gc.Temperature == nil && gc.TopP == nil && gc.MaxTokens == 0 {
		return nil
	}
	return &llm.GenerateOptions{
		Temperature: gc.Temperature,
		TopP:        gc.TopP,
		MaxTokens:   gc.MaxTokens,
	}
}

// fire runs one hook across all callbacks in registration order.
func (a *LLMAgent) fire(
	ctx context.Context,
	rt *callback.Runtime,
	messages *[]llm.Message,
	hook func(callback.Callback, context.Context, *callback.Runtime, *[]llm.Message) error,
) error {
	for _, cb := range a.callbacks {
		if err := hook(cb, ctx, rt, messages); err != nil {
			return fmt.Errorf("callback failed: %w", err)
		}
	}
	return nil
}

func (a *LLMAgent) maxChatRound() int {
	if a.cfg.MaxChatRound > 0 {
		return a.cfg.MaxChatRound
	}
	return config.DefaultMaxChatRound
}

// maxRoundFailure builds the message appended on forced termination.
func (a *LLMAgent) maxRoundFailure(messages []llm.Message) llm.Message {
	task := ""
	if len(messages) > 1 {
		task = messages[1].Content
	}
	return llm.NewAssistantMessage(
		fmt.Sprintf("Task %s failed, max round(%d) exceeded.", task, a.maxChatRound()),
	)
}

// runSubTask is the SubTaskRunner injected into the split tool. Each child
// gets a deep copied config with its own system prompt and the splitter
// removed, so recursion stays bounded; model, limiter and callbacks are
// shared with the parent.
func (a *LLMAgent) runSubTask(ctx context.Context, tag string, task tool.SubTask) tool.SubTaskResult {
	childCfg := a.cfg.Clone()
	childCfg.Prompt.System = task.System
	childCfg.Prompt.Query = ""
	childCfg.Tools.SplitTask = nil

	child, err := New(childCfg, func(o *Options) {
		o.Model = a.model
		o.Logger = a.logger
		o.Tag = a.tag + "-" + tag
		o.Callbacks = a.opts.Callbacks
		o.CallbackRegistry = a.opts.CallbackRegistry
		o.Limiter = a.limiter
	})
	if err != nil {
		return tool.SubTaskResult{Content: "sub task failed: " + err.Error(), Failed: true}
	}

	a.logger.Info("spawning sub task", "tag", child.Tag())
	msgs, err := child.Run(ctx, task.Query)
	if err != nil {
		return tool.SubTaskResult{Content: "sub task failed: " + err.Error(), Failed: true}
	}
	return tool.SubTaskResult{Content: llm.FinalContent(msgs)}
}
