// Package workflow composes agents into multi-step executions. Two forms are
// supported: a linear chain where every node names at most one successor and
// config refined by one node carries over to the next, and a DAG scheduled by
// topological order over declared parents. Both forms run nodes through
// pluggable engines resolved from a registry, report progress through a
// best-effort status callback and, for the DAG form, honor a cooperative
// cancellation flag.
package workflow

import (
	"fmt"
	"os"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentrun/config"
	"github.com/hupe1980/agentrun/llm"
	"github.com/hupe1980/agentrun/logging"
)

// DefaultEngineName is used when a node does not name an engine.
const DefaultEngineName = "llm"

// AgentSpec selects and parameterizes the engine running a node.
type AgentSpec struct {
	Name   string         `yaml:"name,omitempty"`
	Kwargs map[string]any `yaml:"kwargs,omitempty"`
}

// NextRef is the successor reference of a chain node. It accepts a plain
// scalar or a sequence in YAML; the chain builder rejects more than one
// entry.
type NextRef []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (n *NextRef) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		if s != "" {
			*n = NextRef{s}
		}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		*n = NextRef(list)
		return nil
	default:
		return fmt.Errorf("next must be a string or a list of strings")
	}
}

// Node is one unit of a workflow definition.
type Node struct {
	Agent   AgentSpec      `yaml:"agent,omitempty"`
	Next    NextRef        `yaml:"next,omitempty"`
	Parents []string       `yaml:"parents,omitempty"`
	Config  *config.Config `yaml:"config,omitempty"`
}

// EngineName returns the engine the node runs on.
func (n Node) EngineName() string {
	if n.Agent.Name != "" {
		return n.Agent.Name
	}
	return DefaultEngineName
}

// Definition maps node names to their declarations.
type Definition map[string]Node

// LoadDefinition reads a workflow definition from a YAML file with
// environment expansion.
func LoadDefinition(path string) (Definition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow %s: %w", path, err)
	}
	return ParseDefinition(raw)
}

// ParseDefinition decodes a workflow definition from raw YAML.
func ParseDefinition(raw []byte) (Definition, error) {
	expanded := os.Expand(string(raw), os.Getenv)
	var def Definition
	if err := yaml.Unmarshal([]byte(expanded), &def); err != nil {
		return nil, fmt.Errorf("parse workflow: %w", err)
	}
	if len(def) == 0 {
		return nil, fmt.Errorf("workflow has no nodes")
	}
	return def, nil
}

// Status of a finished workflow run.
type Status string

const (
	// StatusCompleted means every node ran.
	StatusCompleted Status = "completed"
	// StatusCancelled means the cancellation flag stopped the run early.
	StatusCancelled Status = "cancelled"
)

// Phase of a node reported through the status callback.
type Phase string

const (
	// PhaseStart fires before a node runs.
	PhaseStart Phase = "start"
	// PhaseEnd fires after a node finished.
	PhaseEnd Phase = "end"
)

// StatusFunc observes node progress. It is strictly best-effort: panics are
// swallowed and a slow or failing callback never affects the run.
type StatusFunc func(node string, phase Phase, preview string)

// notify invokes the status callback isolated from the run.
func notify(logger logging.Logger, fn StatusFunc, node string, phase Phase, preview string) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("status callback panicked", "node", node, "panic", r)
		}
	}()
	fn(node, phase, preview)
}

const previewLimit = 120

// preview renders a short glimpse of a node output for status reporting.
func preview(out any) string {
	var s string
	switch v := out.(type) {
	case nil:
		return ""
	case string:
		s = v
	case []llm.Message:
		s = llm.FinalContent(v)
	default:
		s = fmt.Sprintf("%v", v)
	}
	if len(s) > previewLimit {
		s = s[:previewLimit] + "..."
	}
	return s
}

// CancelFlag is a cooperative cancellation signal shared between a workflow
// run and its controller. Cancelling is one-way and idempotent.
type CancelFlag struct {
	cancelled atomic.Bool
}

// NewCancelFlag creates an unset flag.
func NewCancelFlag() *CancelFlag {
	return &CancelFlag{}
}

// Cancel sets the flag.
func (f *CancelFlag) Cancel() {
	f.cancelled.Store(true)
}

// Cancelled reports whether the flag is set. A nil flag is never cancelled.
func (f *CancelFlag) Cancelled() bool {
	if f == nil {
		return false
	}
	return f.cancelled.Load()
}

// ExecutionError wraps a node failure with its position in the workflow.
type ExecutionError struct {
	Node string
	Op   string
	Err  error
}

// Error implements error.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("workflow node %q failed during %s: %v", e.Node, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}
