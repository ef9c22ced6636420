package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultChatModel     = "claude-sonnet-4-5-20250929"
	defaultChatMaxTokens = 4096
)

// AnthropicProvider implements Provider on the Anthropic Messages API.
type AnthropicProvider struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropicProvider builds the production chat provider. An empty API
// key defers to the ANTHROPIC_API_KEY environment variable.
func NewAnthropicProvider(apiKey, model string, maxTokens int) *AnthropicProvider {
	if model == "" {
		model = defaultChatModel
	}
	if maxTokens <= 0 {
		maxTokens = defaultChatMaxTokens
	}
	client := anthropic.NewClient()
	if apiKey != "" {
		client = anthropic.NewClient(option.WithAPIKey(apiKey))
	}
	return &AnthropicProvider{
		client:    client,
		model:     anthropic.Model(model),
		maxTokens: int64(maxTokens),
	}
}

// Chat sends one request to the Messages API and converts the reply into
// the provider-neutral Response.
func (p *AnthropicProvider) Chat(ctx context.Context, systemPrompt string, messages []Message, tools []ToolDefinition) (*Response, error) {
	params := anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: p.maxTokens,
		Messages:  convertMessages(messages),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}
	if len(tools) > 0 {
		converted := make([]anthropic.ToolUnionParam, 0, len(tools))
		for _, tool := range tools {
			converted = append(converted, convertToolDefinition(tool))
		}
		params.Tools = converted
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic message call: %w", err)
	}
	return convertResponse(resp), nil
}

func convertMessages(messages []Message) []anthropic.MessageParam {
	converted := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		var blocks []anthropic.ContentBlockParamUnion

		for _, result := range msg.ToolResult {
			blocks = append(blocks, anthropic.NewToolResultBlock(result.ToolUseID, result.Content, result.IsError))
		}
		if msg.Content != "" && len(msg.ToolResult) == 0 {
			blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
		}
		for _, use := range msg.ToolUse {
			blocks = append(blocks, anthropic.NewToolUseBlock(use.ID, use.Input, use.Name))
		}

		if msg.Role == RoleAssistant {
			converted = append(converted, anthropic.NewAssistantMessage(blocks...))
		} else {
			converted = append(converted, anthropic.NewUserMessage(blocks...))
		}
	}
	return converted
}

func convertToolDefinition(tool ToolDefinition) anthropic.ToolUnionParam {
	properties := tool.InputSchema["properties"]
	required, _ := tool.InputSchema["required"].([]string)

	return anthropic.ToolUnionParam{
		OfTool: &anthropic.ToolParam{
			Name:        tool.Name,
			Description: anthropic.String(tool.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: properties,
				Required:   required,
			},
		},
	}
}

func convertResponse(resp *anthropic.Message) *Response {
	out := &Response{
		Usage: Usage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		},
	}

	switch resp.StopReason {
	case anthropic.StopReasonToolUse:
		out.StopReason = StopReasonToolUse
	case anthropic.StopReasonMaxTokens:
		out.StopReason = StopReasonMaxTokens
	default:
		out.StopReason = StopReasonEndTurn
	}

	var textParts []string
	for i := range resp.Content {
		block := &resp.Content[i]
		switch block.Type {
		case "text":
			textParts = append(textParts, block.Text)
		case "tool_use":
			out.ToolCalls = append(out.ToolCalls, ToolUseBlock{
				ID:    block.ID,
				Name:  block.Name,
				Input: block.Input,
			})
		}
	}
	out.Content = strings.Join(textParts, "")
	return out
}
