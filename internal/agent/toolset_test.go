package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osinto/casefile/internal/models"
)

func TestListEntitiesTruncatesToLimit(t *testing.T) {
	many := make([]models.Entity, 250)
	for i := range many {
		many[i] = models.Entity{ID: fmt.Sprintf("ent-%d", i), Schema: "Person"}
	}
	entities := &stubEntities{
		listFn: func(_ context.Context, _, _ string) ([]models.Entity, error) {
			return many, nil
		},
	}
	tool := &listEntitiesTool{investigationID: "inv-1", entities: entities}

	out, err := tool.Execute(context.Background(), json.RawMessage(`{"limit":1000}`))
	require.NoError(t, err)
	assert.Len(t, out.([]models.Entity), 200)

	out, err = tool.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, out.([]models.Entity), 50)
}

func TestListEntitiesForwardsSearch(t *testing.T) {
	var gotSearch string
	entities := &stubEntities{
		listFn: func(_ context.Context, _, search string) ([]models.Entity, error) {
			gotSearch = search
			return []models.Entity{}, nil
		},
	}
	tool := &listEntitiesTool{investigationID: "inv-1", entities: entities}

	_, err := tool.Execute(context.Background(), json.RawMessage(`{"search":"acme"}`))
	require.NoError(t, err)
	assert.Equal(t, "acme", gotSearch)
}

func TestGetEntityRequiresID(t *testing.T) {
	tool := &getEntityTool{investigationID: "inv-1", entities: &stubEntities{}}

	_, err := tool.Execute(context.Background(), json.RawMessage(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entity_id is required")

	_, err = tool.Execute(context.Background(), nil)
	require.Error(t, err)
}

func TestExpandEntityForwardsID(t *testing.T) {
	var gotID string
	entities := &stubEntities{
		expandFn: func(_ context.Context, _, entityID string) (*models.EntityExpand, error) {
			gotID = entityID
			return &models.EntityExpand{Entity: models.Entity{ID: entityID, Schema: "Company"}}, nil
		},
	}
	tool := &expandEntityTool{investigationID: "inv-1", entities: entities}

	out, err := tool.Execute(context.Background(), json.RawMessage(`{"entity_id":"ent-7"}`))
	require.NoError(t, err)
	assert.Equal(t, "ent-7", gotID)
	assert.Equal(t, "ent-7", out.(*models.EntityExpand).Entity.ID)
}

func TestFindDuplicatesDefaults(t *testing.T) {
	var gotSchema string
	var gotThreshold float64
	var gotLimit int
	entities := &stubEntities{
		duplicatesFn: func(_ context.Context, _, schema string, threshold float64, limit int) ([]models.DuplicateCandidate, error) {
			gotSchema = schema
			gotThreshold = threshold
			gotLimit = limit
			return []models.DuplicateCandidate{}, nil
		},
	}
	tool := &findDuplicatesTool{investigationID: "inv-1", entities: entities}

	_, err := tool.Execute(context.Background(), json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Empty(t, gotSchema)
	assert.Equal(t, 0.7, gotThreshold)
	assert.Equal(t, 50, gotLimit)
}

func TestFindDuplicatesClampsArguments(t *testing.T) {
	var gotThreshold float64
	var gotLimit int
	entities := &stubEntities{
		duplicatesFn: func(_ context.Context, _, _ string, threshold float64, limit int) ([]models.DuplicateCandidate, error) {
			gotThreshold = threshold
			gotLimit = limit
			return []models.DuplicateCandidate{}, nil
		},
	}
	tool := &findDuplicatesTool{investigationID: "inv-1", entities: entities}

	_, err := tool.Execute(context.Background(), json.RawMessage(`{"threshold":1.8,"limit":999}`))
	require.NoError(t, err)
	assert.Equal(t, 1.0, gotThreshold)
	assert.Equal(t, 200, gotLimit)

	// An explicit zero threshold is honored, not replaced by the default.
	_, err = tool.Execute(context.Background(), json.RawMessage(`{"threshold":0}`))
	require.NoError(t, err)
	assert.Equal(t, 0.0, gotThreshold)
}

func TestGraphOverviewSummarizesPage(t *testing.T) {
	nodes := make([]models.GraphNode, 0, 12)
	for i := 0; i < 5; i++ {
		nodes = append(nodes, models.GraphNode{ID: fmt.Sprintf("p-%d", i), Schema: "Person", Label: fmt.Sprintf("Person %d", i)})
	}
	for i := 0; i < 4; i++ {
		nodes = append(nodes, models.GraphNode{ID: fmt.Sprintf("c-%d", i), Schema: "Company", Label: fmt.Sprintf("Company %d", i)})
	}
	for i := 0; i < 3; i++ {
		nodes = append(nodes, models.GraphNode{ID: fmt.Sprintf("d-%d", i), Schema: "Document", Label: fmt.Sprintf("Document %d", i)})
	}

	var gotSkip, gotLimit int
	graphs := &stubGraphs{
		pageFn: func(_ context.Context, _ string, skip, limit int) (*models.GraphPage, error) {
			gotSkip, gotLimit = skip, limit
			return &models.GraphPage{
				Nodes:      nodes,
				Edges:      []models.GraphEdge{{ID: "e-1", Source: "p-0", Target: "c-0", Schema: "Directorship"}},
				TotalNodes: 42,
				TotalEdges: 17,
			}, nil
		},
	}
	tool := &graphOverviewTool{investigationID: "inv-1", graphs: graphs}

	out, err := tool.Execute(context.Background(), json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Equal(t, 0, gotSkip)
	assert.Equal(t, 200, gotLimit)

	overview := out.(graphOverview)
	assert.Equal(t, "inv-1", overview.InvestigationID)
	assert.Equal(t, 42, overview.TotalNodes)
	assert.Equal(t, 17, overview.TotalEdges)
	assert.Equal(t, 12, overview.SampledNodes)
	assert.Equal(t, 1, overview.SampledEdges)
	assert.Equal(t, map[string]int{"Person": 5, "Company": 4, "Document": 3}, overview.SchemaCounts)
	assert.Len(t, overview.SampleNodes, 10)
	require.Len(t, overview.SampleEdges, 1)
	assert.Equal(t, "Directorship", overview.SampleEdges[0].Schema)
}

func TestGraphOverviewClampsSampleLimit(t *testing.T) {
	var gotLimit int
	graphs := &stubGraphs{
		pageFn: func(_ context.Context, _ string, _, limit int) (*models.GraphPage, error) {
			gotLimit = limit
			return &models.GraphPage{}, nil
		},
	}
	tool := &graphOverviewTool{investigationID: "inv-1", graphs: graphs}

	_, err := tool.Execute(context.Background(), json.RawMessage(`{"sample_limit":9999}`))
	require.NoError(t, err)
	assert.Equal(t, 500, gotLimit)

	_, err = tool.Execute(context.Background(), json.RawMessage(`{"sample_limit":5}`))
	require.NoError(t, err)
	assert.Equal(t, 20, gotLimit)
}

func TestToolInputSchemasDeclareRequiredFields(t *testing.T) {
	for _, tool := range investigationTools("inv-1", &stubEntities{}, &stubGraphs{}) {
		schema := tool.InputSchema()
		assert.Equal(t, "object", schema["type"], tool.Name())
		if required, ok := schema["required"]; ok {
			assert.IsType(t, []string{}, required, tool.Name())
		}
	}
}

type fixedTool struct {
	name string
	out  interface{}
	err  error
}

func (f *fixedTool) Name() string                        { return f.name }
func (f *fixedTool) Description() string                 { return "fixed output" }
func (f *fixedTool) InputSchema() map[string]interface{} { return map[string]interface{}{"type": "object"} }

func (f *fixedTool) Execute(context.Context, json.RawMessage) (interface{}, error) {
	return f.out, f.err
}

func TestRegistryRejectsUnknownTool(t *testing.T) {
	registry := NewRegistry(&fixedTool{name: "noop"})

	result := registry.Execute(context.Background(), ToolUseBlock{ID: "tu-1", Name: "drop_tables"})
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "drop_tables")
	assert.Equal(t, "tu-1", result.ToolUseID)
}

func TestRegistryTruncatesOversizedResults(t *testing.T) {
	registry := NewRegistry(&fixedTool{name: "huge", out: strings.Repeat("x", 60*1024)})

	result := registry.Execute(context.Background(), ToolUseBlock{ID: "tu-2", Name: "huge"})
	assert.False(t, result.IsError)
	assert.True(t, strings.HasSuffix(result.Content, "... [truncated]"))
	assert.LessOrEqual(t, len(result.Content), maxToolResultBytes+len("... [truncated]"))
}
