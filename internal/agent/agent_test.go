package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osinto/casefile/internal/ftm"
	"github.com/osinto/casefile/internal/models"
)

// fakeProvider replays scripted responses and records every call. When the
// script runs out the last response repeats.
type fakeProvider struct {
	responses []*Response
	err       error

	systems []string
	calls   [][]Message
	tools   [][]ToolDefinition
}

func (f *fakeProvider) Chat(_ context.Context, system string, messages []Message, tools []ToolDefinition) (*Response, error) {
	f.systems = append(f.systems, system)
	f.calls = append(f.calls, append([]Message(nil), messages...))
	f.tools = append(f.tools, tools)
	if f.err != nil {
		return nil, f.err
	}
	idx := len(f.calls) - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return f.responses[idx], nil
}

var errUnexpectedCall = errors.New("unexpected call")

type stubEntities struct {
	listFn       func(ctx context.Context, investigationID, search string) ([]models.Entity, error)
	getFn        func(ctx context.Context, investigationID, entityID string) (*models.Entity, error)
	expandFn     func(ctx context.Context, investigationID, entityID string) (*models.EntityExpand, error)
	duplicatesFn func(ctx context.Context, investigationID, schema string, threshold float64, limit int) ([]models.DuplicateCandidate, error)
}

func (s *stubEntities) List(ctx context.Context, investigationID, search string) ([]models.Entity, error) {
	if s.listFn == nil {
		return nil, errUnexpectedCall
	}
	return s.listFn(ctx, investigationID, search)
}

func (s *stubEntities) Get(ctx context.Context, investigationID, entityID string) (*models.Entity, error) {
	if s.getFn == nil {
		return nil, errUnexpectedCall
	}
	return s.getFn(ctx, investigationID, entityID)
}

func (s *stubEntities) Expand(ctx context.Context, investigationID, entityID string) (*models.EntityExpand, error) {
	if s.expandFn == nil {
		return nil, errUnexpectedCall
	}
	return s.expandFn(ctx, investigationID, entityID)
}

func (s *stubEntities) FindDuplicates(ctx context.Context, investigationID, schema string, threshold float64, limit int) ([]models.DuplicateCandidate, error) {
	if s.duplicatesFn == nil {
		return nil, errUnexpectedCall
	}
	return s.duplicatesFn(ctx, investigationID, schema, threshold, limit)
}

type stubGraphs struct {
	pageFn func(ctx context.Context, investigationID string, skip, limit int) (*models.GraphPage, error)
}

func (s *stubGraphs) GetGraphPage(ctx context.Context, investigationID string, skip, limit int) (*models.GraphPage, error) {
	if s.pageFn == nil {
		return nil, errUnexpectedCall
	}
	return s.pageFn(ctx, investigationID, skip, limit)
}

func TestChatAnswersWithoutTools(t *testing.T) {
	provider := &fakeProvider{responses: []*Response{
		{Content: "Acme Corp imports steel.", StopReason: StopReasonEndTurn},
	}}
	agent := New(provider, &stubEntities{}, &stubGraphs{})

	resp, err := agent.Chat(context.Background(), models.ChatRequest{
		InvestigationID: "inv-1",
		Message:         "What does Acme do?",
	})
	require.NoError(t, err)

	assert.Equal(t, "Acme Corp imports steel.", resp.Reply)
	assert.NotNil(t, resp.ToolCalls)
	assert.Empty(t, resp.ToolCalls)

	require.Len(t, provider.calls, 1)
	messages := provider.calls[0]
	require.Len(t, messages, 1)
	assert.Equal(t, RoleUser, messages[0].Role)
	assert.Equal(t, "What does Acme do?", messages[0].Content)

	assert.Contains(t, provider.systems[0], "read-only")

	names := make([]string, 0, len(provider.tools[0]))
	for _, def := range provider.tools[0] {
		names = append(names, def.Name)
	}
	assert.Equal(t, []string{"list_entities", "get_entity", "expand_entity", "find_duplicates", "graph_overview"}, names)
}

func TestChatExecutesRequestedTool(t *testing.T) {
	provider := &fakeProvider{responses: []*Response{
		{
			Content:    "Looking that up.",
			ToolCalls:  []ToolUseBlock{{ID: "tu-1", Name: "list_entities", Input: json.RawMessage(`{"search":"acme"}`)}},
			StopReason: StopReasonToolUse,
		},
		{Content: "Acme Corp is the only match.", StopReason: StopReasonEndTurn},
	}}

	var gotInvestigation, gotSearch string
	entities := &stubEntities{
		listFn: func(_ context.Context, investigationID, search string) ([]models.Entity, error) {
			gotInvestigation = investigationID
			gotSearch = search
			return []models.Entity{
				{ID: "ent-1", Schema: "Company", Properties: ftm.Properties{"name": {"Acme Corp"}}},
			}, nil
		},
	}
	agent := New(provider, entities, &stubGraphs{})

	resp, err := agent.Chat(context.Background(), models.ChatRequest{
		InvestigationID: "inv-1",
		Message:         "Find Acme",
	})
	require.NoError(t, err)

	assert.Equal(t, "inv-1", gotInvestigation)
	assert.Equal(t, "acme", gotSearch)

	assert.Equal(t, "Acme Corp is the only match.", resp.Reply)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "list_entities", resp.ToolCalls[0].Tool)
	assert.JSONEq(t, `{"search":"acme"}`, resp.ToolCalls[0].Input)

	require.Len(t, provider.calls, 2)
	second := provider.calls[1]
	require.Len(t, second, 3)

	assert.Equal(t, RoleAssistant, second[1].Role)
	require.Len(t, second[1].ToolUse, 1)
	assert.Equal(t, "tu-1", second[1].ToolUse[0].ID)

	assert.Equal(t, RoleUser, second[2].Role)
	require.Len(t, second[2].ToolResult, 1)
	result := second[2].ToolResult[0]
	assert.Equal(t, "tu-1", result.ToolUseID)
	assert.False(t, result.IsError)
	assert.Contains(t, result.Content, "Acme Corp")
}

func TestChatFeedsToolFailureBackToModel(t *testing.T) {
	provider := &fakeProvider{responses: []*Response{
		{
			ToolCalls:  []ToolUseBlock{{ID: "tu-9", Name: "get_entity", Input: json.RawMessage(`{}`)}},
			StopReason: StopReasonToolUse,
		},
		{Content: "I need an entity id to do that.", StopReason: StopReasonEndTurn},
	}}
	agent := New(provider, &stubEntities{}, &stubGraphs{})

	resp, err := agent.Chat(context.Background(), models.ChatRequest{
		InvestigationID: "inv-1",
		Message:         "Show me the entity",
	})
	require.NoError(t, err)
	assert.Equal(t, "I need an entity id to do that.", resp.Reply)
	require.Len(t, resp.ToolCalls, 1)

	require.Len(t, provider.calls, 2)
	last := provider.calls[1][len(provider.calls[1])-1]
	require.Len(t, last.ToolResult, 1)
	assert.True(t, last.ToolResult[0].IsError)
	assert.Contains(t, last.ToolResult[0].Content, "entity_id is required")
}

func TestChatStopsAtIterationCap(t *testing.T) {
	provider := &fakeProvider{responses: []*Response{
		{
			Content:    "Still digging.",
			ToolCalls:  []ToolUseBlock{{ID: "tu-1", Name: "graph_overview", Input: json.RawMessage(`{}`)}},
			StopReason: StopReasonToolUse,
		},
	}}
	graphs := &stubGraphs{
		pageFn: func(_ context.Context, _ string, _, _ int) (*models.GraphPage, error) {
			return &models.GraphPage{Nodes: []models.GraphNode{}, Edges: []models.GraphEdge{}}, nil
		},
	}
	agent := New(provider, &stubEntities{}, graphs)

	resp, err := agent.Chat(context.Background(), models.ChatRequest{
		InvestigationID: "inv-1",
		Message:         "Summarize everything",
	})
	require.NoError(t, err)

	assert.Len(t, provider.calls, 8)
	assert.Len(t, resp.ToolCalls, 8)
	assert.Equal(t, "Still digging.", resp.Reply)
}

func TestChatWrapsProviderOutage(t *testing.T) {
	provider := &fakeProvider{err: fmt.Errorf("api error 529")}
	agent := New(provider, &stubEntities{}, &stubGraphs{})

	_, err := agent.Chat(context.Background(), models.ChatRequest{
		InvestigationID: "inv-1",
		Message:         "hello",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLLMUnavailable)
	assert.Contains(t, err.Error(), "529")
}

func TestChatReplaysHistoryRoles(t *testing.T) {
	provider := &fakeProvider{responses: []*Response{
		{Content: "Bob is a director at Acme.", StopReason: StopReasonEndTurn},
	}}
	agent := New(provider, &stubEntities{}, &stubGraphs{})

	_, err := agent.Chat(context.Background(), models.ChatRequest{
		InvestigationID: "inv-1",
		Message:         "And who is Bob?",
		History: []models.ChatMessage{
			{Role: "user", Content: "Who owns Acme?"},
			{Role: "assistant", Content: "Bob owns Acme."},
		},
	})
	require.NoError(t, err)

	require.Len(t, provider.calls, 1)
	messages := provider.calls[0]
	require.Len(t, messages, 3)
	assert.Equal(t, RoleUser, messages[0].Role)
	assert.Equal(t, "Who owns Acme?", messages[0].Content)
	assert.Equal(t, RoleAssistant, messages[1].Role)
	assert.Equal(t, "Bob owns Acme.", messages[1].Content)
	assert.Equal(t, RoleUser, messages[2].Role)
	assert.Equal(t, "And who is Bob?", messages[2].Content)
}
