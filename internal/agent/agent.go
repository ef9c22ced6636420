// Package agent implements the investigation chat assistant: a bounded
// tool-use loop over a chat model with read-only graph tools.
package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/osinto/casefile/internal/logging"
	"github.com/osinto/casefile/internal/models"
)

// ErrLLMUnavailable marks failures reaching the chat model. Handlers map
// it to 503.
var ErrLLMUnavailable = errors.New("chat model unavailable")

// maxToolIterations bounds the tool-use loop for one chat turn.
const maxToolIterations = 8

const systemPrompt = `You are an OSINT investigation assistant.

Rules:
- You are read-only. Never claim to have executed writes.
- Never create, update, merge, delete, or ingest data.
- Use tools to answer factual questions about the active investigation.
- If a user asks for write operations, explain that the assistant is read-only and suggest the manual steps instead.
- Keep answers concise and grounded in returned tool results.
- When users ask for summaries, use the available tools and summarize what they return.`

// Agent answers chat turns scoped to a single investigation.
type Agent struct {
	provider Provider
	entities EntityReader
	graphs   GraphReader
	logger   *logging.Logger
}

// New creates a chat agent on the given provider and read services.
func New(provider Provider, entities EntityReader, graphs GraphReader) *Agent {
	return &Agent{
		provider: provider,
		entities: entities,
		graphs:   graphs,
		logger:   logging.GetLogger("agent"),
	}
}

// Chat runs one conversation turn. Tool calls requested by the model are
// executed and fed back until the model answers in plain text or the
// iteration cap is reached.
func (a *Agent) Chat(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	registry := NewRegistry(investigationTools(req.InvestigationID, a.entities, a.graphs)...)
	defs := registry.Definitions()

	messages := historyMessages(req.History)
	messages = append(messages, Message{Role: RoleUser, Content: req.Message})

	toolCalls := []models.ChatToolCall{}
	var lastText string

	for iteration := 0; iteration < maxToolIterations; iteration++ {
		resp, err := a.provider.Chat(ctx, systemPrompt, messages, defs)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLLMUnavailable, err)
		}
		if resp.Content != "" {
			lastText = resp.Content
		}

		if len(resp.ToolCalls) == 0 {
			return &models.ChatResponse{Reply: resp.Content, ToolCalls: toolCalls}, nil
		}

		messages = append(messages, Message{
			Role:    RoleAssistant,
			Content: resp.Content,
			ToolUse: resp.ToolCalls,
		})

		results := make([]ToolResultBlock, 0, len(resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			a.logger.InfoWithFields("executing chat tool",
				logging.Field("tool", call.Name),
				logging.Field("investigation_id", req.InvestigationID),
			)
			toolCalls = append(toolCalls, models.ChatToolCall{Tool: call.Name, Input: string(call.Input)})
			results = append(results, registry.Execute(ctx, call))
		}
		messages = append(messages, Message{Role: RoleUser, ToolResult: results})
	}

	a.logger.Warn("chat for investigation %s hit the tool iteration cap", req.InvestigationID)
	if lastText == "" {
		lastText = "I could not finish answering within the allotted tool calls. Try a narrower question."
	}
	return &models.ChatResponse{Reply: lastText, ToolCalls: toolCalls}, nil
}

func historyMessages(history []models.ChatMessage) []Message {
	messages := make([]Message, 0, len(history)+1)
	for _, turn := range history {
		role := RoleUser
		if turn.Role == string(RoleAssistant) {
			role = RoleAssistant
		}
		messages = append(messages, Message{Role: role, Content: turn.Content})
	}
	return messages
}
