package agent

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/hupe1980/agentrun/callback"
	"github.com/hupe1980/agentrun/config"
	"github.com/hupe1980/agentrun/llm"
)

// Memory refines the conversation before each model call, e.g. by dropping
// intermediate rounds that no longer matter. Refiners must not mutate the
// input slice; they return the conversation to continue with.
type Memory interface {
	Refine(rt *callback.Runtime, messages []llm.Message) ([]llm.Message, error)
}

// TruncateMemory collapses a long conversation down to its head (system and
// user message by default) plus the most recent message once AfterRound is
// reached. Tool call references on the kept tail are cleared so no dangling
// call ids survive the cut.
type TruncateMemory struct {
	// AfterRound is the first round the truncation applies to.
	AfterRound int `mapstructure:"after_round"`
	// KeepHead is how many leading messages survive.
	KeepHead int `mapstructure:"keep_head"`
}

// NewTruncateMemory returns a truncating refiner with defaults applied.
func NewTruncateMemory() *TruncateMemory {
	return &TruncateMemory{AfterRound: 1, KeepHead: 2}
}

// Refine implements Memory.
func (t *TruncateMemory) Refine(rt *callback.Runtime, messages []llm.Message) ([]llm.Message, error) {
	if rt.Round < t.AfterRound || len(messages) <= t.KeepHead+1 {
		return messages, nil
	}
	kept := llm.CloneMessages(messages[:t.KeepHead])
	last := messages[len(messages)-1].Clone()
	last.ToolCalls = nil
	last.ToolCallID = ""
	return append(kept, last), nil
}

// buildMemory instantiates the refiners named in the config.
func buildMemory(cfgs []config.MemoryConfig) ([]Memory, error) {
	var out []Memory
	for _, mc := range cfgs {
		switch mc.Name {
		case "truncate":
			mem := NewTruncateMemory()
			if len(mc.Args) > 0 {
				if err := mapstructure.Decode(mc.Args, mem); err != nil {
					return nil, fmt.Errorf("memory %q args: %w", mc.Name, err)
				}
			}
			out = append(out, mem)
		default:
			return nil, fmt.Errorf("unknown memory %q", mc.Name)
		}
	}
	return out, nil
}
