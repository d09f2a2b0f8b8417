package tool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/agentrun/llm"
	"github.com/hupe1980/agentrun/logging"
)

// toolCallFailedPrefix leads every error text surfaced to the model so it can
// react to a failed call instead of the run aborting.
const toolCallFailedPrefix = "Tool calling failed: "

type indexEntry struct {
	source Tool
	decl   llm.Tool
}

// ManagerOptions configure a Manager.
type ManagerOptions struct {
	Logger logging.Logger
}

// Manager owns the tool sources of one agent. Connect builds a flat index
// from every source's declarations keyed by qualified name; duplicate names
// fail the whole registration. Dispatch is concurrent and strictly
// positional: the result slice lines up index for index with the call slice,
// and one failed call never aborts the batch.
type Manager struct {
	opts    ManagerOptions
	sources []Tool

	mu        sync.RWMutex
	index     map[string]indexEntry
	order     []string
	connected bool
}

// NewManager creates a Manager over the given sources.
func NewManager(sources []Tool, optFns ...func(o *ManagerOptions)) *Manager {
	opts := ManagerOptions{
		Logger: logging.NewNoOpLogger(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Manager{opts: opts, sources: sources}
}

// Register adds a source. Must be called before Connect.
func (m *Manager) Register(sources ...Tool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources = append(m.sources, sources...)
}

// Connect connects every source and builds the flat name index. A duplicate
// qualified name anywhere across sources fails the registration.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connected {
		return nil
	}

	index := make(map[string]indexEntry)
	var order []string
	for _, src := range m.sources {
		if err := src.Connect(ctx); err != nil {
			return fmt.Errorf("connect tool source: %w", err)
		}
		decls, err := src.Tools(ctx)
		if err != nil {
			return fmt.Errorf("list tools: %w", err)
		}
		for _, decl := range decls {
			qn := decl.QualifiedName()
			if _, exists := index[qn]; exists {
				return fmt.Errorf("duplicate tool name %q", qn)
			}
			index[qn] = indexEntry{source: src, decl: decl}
			order = append(order, qn)
		}
	}

	m.index = index
	m.order = order
	m.connected = true
	return nil
}

// Cleanup releases every source. All sources are attempted; errors are joined.
func (m *Manager) Cleanup(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for _, src := range m.sources {
		if err := src.Cleanup(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	m.connected = false
	m.index = nil
	m.order = nil
	return errors.Join(errs...)
}

// Tools returns every known declaration under its qualified name, in
// registration order. The returned declarations are what gets surfaced to
// the model, so Name carries the qualified form.
func (m *Manager) Tools() []llm.Tool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]llm.Tool, 0, len(m.order))
	for _, qn := range m.order {
		decl := m.index[qn].decl
		decl.Name = qn
		decl.ServerName = ""
		out = append(out, decl)
	}
	return out
}

// CallTool dispatches a single call and always produces a tool message bound
// to the call id. Failures of any kind (unknown tool, bad arguments,
// execution error, panic) become error text in the message content.
func (m *Manager) CallTool(ctx context.Context, call llm.ToolCall) llm.Message {
	content, err := m.dispatch(ctx, call)
	if err != nil {
		m.opts.Logger.Warn("tool call failed", "tool", call.Name, "error", err)
		content = toolCallFailedPrefix + err.Error()
	}
	return llm.NewToolMessage(call.ID, call.Name, content)
}

func (m *Manager) dispatch(ctx context.Context, call llm.ToolCall) (content string, err error) {
	m.mu.RLock()
	entry, ok := m.index[call.Name]
	m.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("unknown tool %q", call.Name)
	}

	args, err := DecodeArguments(call.Arguments)
	if err != nil {
		return "", err
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool %q panicked: %v", call.Name, r)
		}
	}()
	return entry.source.Call(ctx, entry.decl.Name, args)
}

// CallAll dispatches a batch concurrently. Results are strictly positional:
// result i always answers calls[i] regardless of completion order.
func (m *Manager) CallAll(ctx context.Context, calls []llm.ToolCall) []llm.Message {
	results := make([]llm.Message, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call llm.ToolCall) {
			defer wg.Done()
			results[i] = m.CallTool(ctx, call)
		}(i, call)
	}
	wg.Wait()
	return results
}
