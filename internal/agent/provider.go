package agent

import (
	"context"
	"encoding/json"
)

// Role identifies a conversation message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation turn in provider-neutral form.
type Message struct {
	Role    Role
	Content string

	// ToolUse carries the assistant's tool calls when replaying history.
	ToolUse []ToolUseBlock

	// ToolResult carries tool outputs being returned to the model.
	ToolResult []ToolResultBlock
}

// ToolUseBlock is a single tool invocation requested by the model.
type ToolUseBlock struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// ToolResultBlock is the outcome of one tool invocation.
type ToolResultBlock struct {
	ToolUseID string
	Content   string
	IsError   bool
}

// ToolDefinition describes a callable tool to the model.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema map[string]interface{}
}

// Response is the model's reply to one call.
type Response struct {
	Content    string
	ToolCalls  []ToolUseBlock
	StopReason StopReason
	Usage      Usage
}

// StopReason indicates why the model stopped generating.
type StopReason string

const (
	StopReasonEndTurn   StopReason = "end_turn"
	StopReasonToolUse   StopReason = "tool_use"
	StopReasonMaxTokens StopReason = "max_tokens"
)

// Usage reports token consumption for one model call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Provider abstracts the chat model behind the agent loop.
type Provider interface {
	Chat(ctx context.Context, systemPrompt string, messages []Message, tools []ToolDefinition) (*Response, error)
}
