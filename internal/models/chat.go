package models

// ChatRequest represents a chat turn scoped to one investigation
type ChatRequest struct {
	InvestigationID string        `json:"investigationId"`
	Message         string        `json:"message"`
	History         []ChatMessage `json:"history,omitempty"`
}

// ChatMessage represents one prior turn in a chat conversation
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatToolCall represents one tool invocation made while answering
type ChatToolCall struct {
	Tool  string `json:"tool"`
	Input string `json:"input"`
}

// ChatResponse represents the agent's answer for a chat turn
type ChatResponse struct {
	Reply     string         `json:"reply"`
	ToolCalls []ChatToolCall `json:"tool_calls"`
}
