// Package agent runs personas: it drives a text-generation backend, executes
// the tool calls it requests and streams the produced text to a sink.
package agent

import "encoding/json"

// Role of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one turn of a conversation. Assistant messages may carry tool
// calls; tool messages carry exactly one ToolResult.
type Message struct {
	Role       Role
	Text       string
	ToolCalls  []ToolCall
	ToolResult *ToolResult
}

// ToolCall is a tool invocation requested by the backend. Arguments is the
// raw JSON object produced by the backend.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// ToolResult answers one ToolCall.
type ToolResult struct {
	CallID  string
	Name    string
	Content string
	IsError bool
	// Structured is the typed value behind Content, never sent to the backend.
	Structured any
}

// UserText returns a user message.
func UserText(text string) Message {
	return Message{Role: RoleUser, Text: text}
}

// lastUser returns the index of the newest user message, or -1.
func lastUser(msgs []Message) int {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleUser {
			return i
		}
	}
	return -1
}

// dropLeadingNonUser trims msgs to start at the first user message.
// Conversations must open with a user turn.
func dropLeadingNonUser(msgs []Message) []Message {
	for i, m := range msgs {
		if m.Role == RoleUser {
			return msgs[i:]
		}
	}
	return nil
}
