// Package callback defines the hook interface agents fire at fixed points of
// the step loop, plus the shared Runtime state those hooks may inspect and
// mutate. Callbacks observe and steer a run: they can rewrite the
// conversation in place, stop the loop early or veto a stop decision.
package callback

import (
	"context"

	"github.com/hupe1980/agentrun/llm"
)

// Runtime is the mutable per-run state shared between the agent loop and its
// callbacks. ShouldStop ends the loop after the current round; callbacks may
// set it, and AfterToolCall hooks may veto a stop by folding their own done
// signal into it. Runtime is not safe for concurrent use; each run owns one.
type Runtime struct {
	ShouldStop bool
	Round      int
	Tag        string
	LLM        llm.Model
}

// Callback receives the live conversation at six fixed points of a run.
// Hooks may append to or mutate the message slice through the pointer; the
// agent continues with whatever they leave behind. A hook error aborts the
// run.
type Callback interface {
	// OnTaskBegin fires once before the first round.
	OnTaskBegin(ctx context.Context, rt *Runtime, messages *[]llm.Message) error
	// OnGenerateResponse fires before every model call.
	OnGenerateResponse(ctx context.Context, rt *Runtime, messages *[]llm.Message) error
	// AfterGenerateResponse fires after the assistant reply is appended.
	AfterGenerateResponse(ctx context.Context, rt *Runtime, messages *[]llm.Message) error
	// OnToolCall fires before tool calls are dispatched.
	OnToolCall(ctx context.Context, rt *Runtime, messages *[]llm.Message) error
	// AfterToolCall fires at the end of every round and is the veto point
	// for stop decisions.
	AfterToolCall(ctx context.Context, rt *Runtime, messages *[]llm.Message) error
	// OnTaskEnd fires once after the loop has stopped.
	OnTaskEnd(ctx context.Context, rt *Runtime, messages *[]llm.Message) error
}

// Base is a no-op Callback meant for embedding, so concrete callbacks only
// implement the hooks they care about.
type Base struct{}

// OnTaskBegin does nothing.
func (Base) OnTaskBegin(ctx context.Context, rt *Runtime, messages *[]llm.Message) error {
	return nil
}

// OnGenerateResponse does nothing.
func (Base) OnGenerateResponse(ctx context.Context, rt *Runtime, messages *[]llm.Message) error {
	return nil
}

// AfterGenerateResponse does nothing.
func (Base) AfterGenerateResponse(ctx context.Context, rt *Runtime, messages *[]llm.Message) error {
	return nil
}

// OnToolCall does nothing.
func (Base) OnToolCall(ctx context.Context, rt *Runtime, messages *[]llm.Message) error {
	return nil
}

// AfterToolCall does nothing.
func (Base) AfterToolCall(ctx context.Context, rt *Runtime, messages *[]llm.Message) error {
	return nil
}

// OnTaskEnd does nothing.
func (Base) OnTaskEnd(ctx context.Context, rt *Runtime, messages *[]llm.Message) error {
	return nil
}
