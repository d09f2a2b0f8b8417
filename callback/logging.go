package callback

import (
	"context"

	"github.com/hupe1980/agentrun/llm"
	"github.com/hupe1980/agentrun/logging"
)

// LoggingCallback traces the step loop through a structured logger. It never
// mutates the conversation.
type LoggingCallback struct {
	Base
	logger logging.Logger
}

// NewLoggingCallback creates a callback that logs round progress.
func NewLoggingCallback(logger logging.Logger) *LoggingCallback {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &LoggingCallback{logger: logger}
}

// OnTaskBegin logs the start of a run.
func (c *LoggingCallback) OnTaskBegin(ctx context.Context, rt *Runtime, messages *[]llm.Message) error {
	c.logger.Info("task begin", "tag", rt.Tag, "messages", len(*messages))
	return nil
}

// AfterGenerateResponse logs the assistant reply shape.
func (c *LoggingCallback) AfterGenerateResponse(ctx context.Context, rt *Runtime, messages *[]llm.Message) error {
	msgs := *messages
	if len(msgs) == 0 {
		return nil
	}
	last := msgs[len(msgs)-1]
	c.logger.Debug("assistant reply", "tag", rt.Tag, "round", rt.Round, "tool_calls", len(last.ToolCalls))
	return nil
}

// OnTaskEnd logs run completion.
func (c *LoggingCallback) OnTaskEnd(ctx context.Context, rt *Runtime, messages *[]llm.Message) error {
	c.logger.Info("task end", "tag", rt.Tag, "rounds", rt.Round, "messages", len(*messages))
	return nil
}
