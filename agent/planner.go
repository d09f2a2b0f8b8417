package agent

import (
	"context"

	"github.com/hupe1980/agentrun/callback"
	"github.com/hupe1980/agentrun/llm"
)

// Planner maintains a task plan inside the conversation. MakePlan runs once
// before the first round, UpdatePlan before every later one. Like memory
// refiners, planners return the conversation to continue with.
type Planner interface {
	MakePlan(ctx context.Context, rt *callback.Runtime, messages []llm.Message) ([]llm.Message, error)
	UpdatePlan(ctx context.Context, rt *callback.Runtime, messages []llm.Message) ([]llm.Message, error)
}

const outlinePrompt = "Write a short numbered plan for solving the following task. " +
	"Only output the plan, nothing else.\n\n"

// OutlinePlanner asks the model for a numbered plan up front and inserts it
// into the conversation as extra user guidance. Later rounds leave the plan
// untouched.
type OutlinePlanner struct{}

// NewOutlinePlanner creates an OutlinePlanner.
func NewOutlinePlanner() *OutlinePlanner {
	return &OutlinePlanner{}
}

// MakePlan generates the plan and splices it in after the task message.
func (p *OutlinePlanner) MakePlan(ctx context.Context, rt *callback.Runtime, messages []llm.Message) ([]llm.Message, error) {
	if len(messages) == 0 {
		return messages, nil
	}
	task := messages[len(messages)-1].Content
	reply, err := rt.LLM.Generate(ctx, &llm.Request{
		Messages: []llm.Message{llm.NewUserMessage(outlinePrompt + task)},
	})
	if err != nil {
		return messages, err
	}
	plan := llm.NewUserMessage("Follow this plan:\n" + reply.Content)
	return append(llm.CloneMessages(messages), plan), nil
}

// UpdatePlan keeps the original plan.
func (p *OutlinePlanner) UpdatePlan(ctx context.Context, rt *callback.Runtime, messages []llm.Message) ([]llm.Message, error) {
	return messages, nil
}
