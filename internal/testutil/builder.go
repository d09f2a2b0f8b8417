// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing conversations and tool calls. They are not
// intended for production usage.
package testutil

import (
	"fmt"

	"github.com/hupe1980/agentrun/llm"
)

// ToolCallOf builds a complete tool call with a deterministic id.
func ToolCallOf(index int, name, arguments string) llm.ToolCall {
	return llm.ToolCall{
		ID:        fmt.Sprintf("call-%d", index),
		Index:     index,
		Type:      "function",
		Name:      name,
		Arguments: arguments,
	}
}

// AssistantWithCalls builds an assistant message carrying tool calls.
func AssistantWithCalls(content string, calls ...llm.ToolCall) llm.Message {
	return llm.Message{Role: llm.RoleAssistant, Content: content, ToolCalls: calls}
}

// Conversation builds a fresh [system, user] conversation.
func Conversation(system, query string) []llm.Message {
	return []llm.Message{
		llm.NewSystemMessage(system),
		llm.NewUserMessage(query),
	}
}
