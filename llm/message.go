// Package llm defines the normalized conversation data model (messages, tool
// calls, tool declarations) and the Model interface all provider adapters
// implement. Agents and workflow executors only ever see these types; the
// provider specific wire formats live in the llm/openai and llm/anthropic
// subpackages.
package llm

import (
	"strings"

	"github.com/google/uuid"
)

// Conversation roles. Every Message carries exactly one of these.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ServerToolSeparator joins a server name and a tool name into the qualified
// name exposed to the model, e.g. "filesystem---read_file".
const ServerToolSeparator = "---"

// ToolCall represents a function call request surfaced by a model provider.
// Unified across vendors so downstream logic does not need per-provider
// branching. Index orders calls within a single assistant turn and keys
// fragment merging during streaming.
type ToolCall struct {
	ID        string `json:"id"`
	Index     int    `json:"index"`
	Type      string `json:"type"` // "function"
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON string of arguments
}

// Tool declaratively exposes a callable function to the model. Parameters is
// a JSON Schema object (draft agnostic, minimal subset expected). ServerName
// is empty for built-in tools and set for tools proxied from an external
// server.
type Tool struct {
	ServerName  string         `json:"server_name,omitempty"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// QualifiedName returns the name under which the tool is registered and
// surfaced to the model. Tools without a server keep their bare name.
func (t Tool) QualifiedName() string {
	if t.ServerName == "" {
		return t.Name
	}
	return t.ServerName + ServerToolSeparator + t.Name
}

// SplitQualifiedName splits a qualified tool name back into server and tool
// parts. Bare names yield an empty server.
func SplitQualifiedName(name string) (server, tool string) {
	if idx := strings.Index(name, ServerToolSeparator); idx >= 0 {
		return name[:idx], name[idx+len(ServerToolSeparator):]
	}
	return "", name
}

// Message is one turn of a conversation. Assistant messages may carry tool
// calls; tool messages carry the result of one call and reference it via
// ToolCallID. Partial marks streaming fragments that still need folding.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Reasoning  string     `json:"reasoning_content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
	ID         string     `json:"id,omitempty"`
	Partial    bool       `json:"partial,omitempty"`
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content, ID: uuid.NewString()}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content, ID: uuid.NewString()}
}

// NewAssistantMessage creates a plain assistant message.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content, ID: uuid.NewString()}
}

// NewToolMessage creates a tool result message bound to the originating call.
func NewToolMessage(callID, name, content string) Message {
	return Message{
		Role:       RoleTool,
		Content:    content,
		ToolCallID: callID,
		Name:       name,
		ID:         uuid.NewString(),
	}
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	cp := m
	if len(m.ToolCalls) > 0 {
		cp.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		copy(cp.ToolCalls, m.ToolCalls)
	}
	return cp
}

// CloneMessages returns a deep copy of a conversation.
func CloneMessages(messages []Message) []Message {
	out := make([]Message, len(messages))
	for i, m := range messages {
		out[i] = m.Clone()
	}
	return out
}

// FinalContent returns the content of the last assistant message, falling
// back to the last message of any role. Used by workflow executors to turn a
// finished conversation into input for downstream nodes.
func FinalContent(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleAssistant {
			return messages[i].Content
		}
	}
	if len(messages) > 0 {
		return messages[len(messages)-1].Content
	}
	return ""
}
