package agent

import (
	"context"
	"encoding/json"
	"fmt"
)

// maxToolResultBytes caps tool output fed back to the model so a large
// graph page cannot blow the context window.
const maxToolResultBytes = 50 * 1024

// Tool is one read-only operation the model may call during a chat turn.
type Tool interface {
	Name() string
	Description() string
	InputSchema() map[string]interface{}
	Execute(ctx context.Context, input json.RawMessage) (interface{}, error)
}

// Registry holds the toolset for one chat request, preserving
// registration order for the model's tool list.
type Registry struct {
	order []Tool
	index map[string]Tool
}

// NewRegistry creates a registry from the given tools.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{index: make(map[string]Tool, len(tools))}
	for _, tool := range tools {
		r.order = append(r.order, tool)
		r.index[tool.Name()] = tool
	}
	return r
}

// Definitions returns provider tool definitions in registration order.
func (r *Registry) Definitions() []ToolDefinition {
	defs := make([]ToolDefinition, 0, len(r.order))
	for _, tool := range r.order {
		defs = append(defs, ToolDefinition{
			Name:        tool.Name(),
			Description: tool.Description(),
			InputSchema: tool.InputSchema(),
		})
	}
	return defs
}

// Execute runs the named tool and renders its output for a tool_result
// block. Tool failures come back as error results rather than aborting
// the turn, so the model can recover or rephrase.
func (r *Registry) Execute(ctx context.Context, call ToolUseBlock) ToolResultBlock {
	tool, ok := r.index[call.Name]
	if !ok {
		return ToolResultBlock{
			ToolUseID: call.ID,
			Content:   fmt.Sprintf("unknown tool %q", call.Name),
			IsError:   true,
		}
	}

	data, err := tool.Execute(ctx, call.Input)
	if err != nil {
		return ToolResultBlock{ToolUseID: call.ID, Content: err.Error(), IsError: true}
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return ToolResultBlock{
			ToolUseID: call.ID,
			Content:   fmt.Sprintf("encoding tool result: %v", err),
			IsError:   true,
		}
	}
	content := string(raw)
	if len(content) > maxToolResultBytes {
		content = content[:maxToolResultBytes] + "... [truncated]"
	}
	return ToolResultBlock{ToolUseID: call.ID, Content: content}
}

// decodeInput unmarshals tool arguments, tolerating an absent body.
func decodeInput(input json.RawMessage, v interface{}) error {
	if len(input) == 0 {
		return nil
	}
	if err := json.Unmarshal(input, v); err != nil {
		return fmt.Errorf("invalid tool input: %v", err)
	}
	return nil
}
