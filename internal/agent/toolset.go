package agent

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"github.com/osinto/casefile/internal/models"
)

// EntityReader is the entity read surface exposed to the chat tools.
type EntityReader interface {
	List(ctx context.Context, investigationID, search string) ([]models.Entity, error)
	Get(ctx context.Context, investigationID, entityID string) (*models.Entity, error)
	Expand(ctx context.Context, investigationID, entityID string) (*models.EntityExpand, error)
	FindDuplicates(ctx context.Context, investigationID, schema string, threshold float64, limit int) ([]models.DuplicateCandidate, error)
}

// GraphReader is the graph read surface exposed to the chat tools.
type GraphReader interface {
	GetGraphPage(ctx context.Context, investigationID string, skip, limit int) (*models.GraphPage, error)
}

const (
	defaultListLimit   = 50
	maxListLimit       = 200
	defaultOverview    = 200
	minOverviewSample  = 20
	maxOverviewSample  = 500
	defaultDupeCutoff  = 0.7
	overviewSampleSize = 10
)

// investigationTools builds the read-only toolset scoped to one
// investigation.
func investigationTools(investigationID string, entities EntityReader, graphs GraphReader) []Tool {
	return []Tool{
		&listEntitiesTool{investigationID: investigationID, entities: entities},
		&getEntityTool{investigationID: investigationID, entities: entities},
		&expandEntityTool{investigationID: investigationID, entities: entities},
		&findDuplicatesTool{investigationID: investigationID, entities: entities},
		&graphOverviewTool{investigationID: investigationID, graphs: graphs},
	}
}

type listEntitiesTool struct {
	investigationID string
	entities        EntityReader
}

func (t *listEntitiesTool) Name() string { return "list_entities" }

func (t *listEntitiesTool) Description() string {
	return "List entities in the investigation, optionally filtered by a case-insensitive name search."
}

func (t *listEntitiesTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"search": map[string]interface{}{
				"type":        "string",
				"description": "Substring to match against entity names.",
			},
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum entities to return (default 50, max 200).",
			},
		},
	}
}

func (t *listEntitiesTool) Execute(ctx context.Context, input json.RawMessage) (interface{}, error) {
	var args struct {
		Search string `json:"search"`
		Limit  int    `json:"limit"`
	}
	if err := decodeInput(input, &args); err != nil {
		return nil, err
	}
	limit := clampLimit(args.Limit, defaultListLimit, maxListLimit)

	entities, err := t.entities.List(ctx, t.investigationID, args.Search)
	if err != nil {
		return nil, err
	}
	if len(entities) > limit {
		entities = entities[:limit]
	}
	return entities, nil
}

type getEntityTool struct {
	investigationID string
	entities        EntityReader
}

func (t *getEntityTool) Name() string { return "get_entity" }

func (t *getEntityTool) Description() string {
	return "Fetch one entity by id, including all of its properties."
}

func (t *getEntityTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"entity_id": map[string]interface{}{
				"type":        "string",
				"description": "Entity id to fetch.",
			},
		},
		"required": []string{"entity_id"},
	}
}

func (t *getEntityTool) Execute(ctx context.Context, input json.RawMessage) (interface{}, error) {
	entityID, err := requiredEntityID(input)
	if err != nil {
		return nil, err
	}
	return t.entities.Get(ctx, t.investigationID, entityID)
}

type expandEntityTool struct {
	investigationID string
	entities        EntityReader
}

func (t *expandEntityTool) Name() string { return "expand_entity" }

func (t *expandEntityTool) Description() string {
	return "Fetch an entity together with its direct neighbors and connecting edges."
}

func (t *expandEntityTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"entity_id": map[string]interface{}{
				"type":        "string",
				"description": "Entity id to expand.",
			},
		},
		"required": []string{"entity_id"},
	}
}

func (t *expandEntityTool) Execute(ctx context.Context, input json.RawMessage) (interface{}, error) {
	entityID, err := requiredEntityID(input)
	if err != nil {
		return nil, err
	}
	return t.entities.Expand(ctx, t.investigationID, entityID)
}

type findDuplicatesTool struct {
	investigationID string
	entities        EntityReader
}

func (t *findDuplicatesTool) Name() string { return "find_duplicates" }

func (t *findDuplicatesTool) Description() string {
	return "Find likely duplicate entity pairs by fuzzy name similarity, optionally restricted to one schema."
}

func (t *findDuplicatesTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"schema": map[string]interface{}{
				"type":        "string",
				"description": "Restrict candidates to this schema, for example Person.",
			},
			"threshold": map[string]interface{}{
				"type":        "number",
				"description": "Minimum similarity between 0 and 1 (default 0.7).",
			},
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum candidate pairs to return (default 50, max 200).",
			},
		},
	}
}

func (t *findDuplicatesTool) Execute(ctx context.Context, input json.RawMessage) (interface{}, error) {
	var args struct {
		Schema    string   `json:"schema"`
		Threshold *float64 `json:"threshold"`
		Limit     int      `json:"limit"`
	}
	if err := decodeInput(input, &args); err != nil {
		return nil, err
	}

	threshold := defaultDupeCutoff
	if args.Threshold != nil {
		threshold = *args.Threshold
		if threshold < 0 {
			threshold = 0
		}
		if threshold > 1 {
			threshold = 1
		}
	}
	limit := clampLimit(args.Limit, defaultListLimit, maxListLimit)

	return t.entities.FindDuplicates(ctx, t.investigationID, args.Schema, threshold, limit)
}

type graphOverviewTool struct {
	investigationID string
	graphs          GraphReader
}

func (t *graphOverviewTool) Name() string { return "graph_overview" }

func (t *graphOverviewTool) Description() string {
	return "Summarize the investigation graph: node and edge totals, schema counts and a small sample."
}

func (t *graphOverviewTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"sample_limit": map[string]interface{}{
				"type":        "integer",
				"description": "How many nodes to sample for schema counts (default 200, max 500).",
			},
		},
	}
}

type graphOverview struct {
	InvestigationID string         `json:"investigation_id"`
	TotalNodes      int            `json:"total_nodes"`
	TotalEdges      int            `json:"total_edges"`
	SampledNodes    int            `json:"sampled_nodes"`
	SampledEdges    int            `json:"sampled_edges"`
	SchemaCounts    map[string]int `json:"schema_counts"`
	SampleNodes     []overviewNode `json:"sample_nodes"`
	SampleEdges     []overviewEdge `json:"sample_edges"`
}

type overviewNode struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Schema string `json:"schema"`
}

type overviewEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Schema string `json:"schema"`
}

func (t *graphOverviewTool) Execute(ctx context.Context, input json.RawMessage) (interface{}, error) {
	var args struct {
		SampleLimit int `json:"sample_limit"`
	}
	if err := decodeInput(input, &args); err != nil {
		return nil, err
	}
	sampleLimit := args.SampleLimit
	if sampleLimit == 0 {
		sampleLimit = defaultOverview
	}
	if sampleLimit < minOverviewSample {
		sampleLimit = minOverviewSample
	}
	if sampleLimit > maxOverviewSample {
		sampleLimit = maxOverviewSample
	}

	page, err := t.graphs.GetGraphPage(ctx, t.investigationID, 0, sampleLimit)
	if err != nil {
		return nil, err
	}

	overview := graphOverview{
		InvestigationID: t.investigationID,
		TotalNodes:      page.TotalNodes,
		TotalEdges:      page.TotalEdges,
		SampledNodes:    len(page.Nodes),
		SampledEdges:    len(page.Edges),
		SchemaCounts:    map[string]int{},
		SampleNodes:     []overviewNode{},
		SampleEdges:     []overviewEdge{},
	}
	for _, node := range page.Nodes {
		overview.SchemaCounts[node.Schema]++
	}
	overview.SchemaCounts = topSchemaCounts(overview.SchemaCounts, 10)

	for _, node := range page.Nodes[:min(len(page.Nodes), overviewSampleSize)] {
		overview.SampleNodes = append(overview.SampleNodes, overviewNode{ID: node.ID, Label: node.Label, Schema: node.Schema})
	}
	for _, edge := range page.Edges[:min(len(page.Edges), overviewSampleSize)] {
		overview.SampleEdges = append(overview.SampleEdges, overviewEdge{Source: edge.Source, Target: edge.Target, Schema: edge.Schema})
	}
	return overview, nil
}

// topSchemaCounts keeps the n most frequent schemata so the summary stays
// small on sprawling graphs.
func topSchemaCounts(counts map[string]int, n int) map[string]int {
	if len(counts) <= n {
		return counts
	}
	type schemaCount struct {
		schema string
		count  int
	}
	ranked := make([]schemaCount, 0, len(counts))
	for schema, count := range counts {
		ranked = append(ranked, schemaCount{schema, count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].schema < ranked[j].schema
	})
	top := make(map[string]int, n)
	for _, entry := range ranked[:n] {
		top[entry.schema] = entry.count
	}
	return top
}

func requiredEntityID(input json.RawMessage) (string, error) {
	var args struct {
		EntityID string `json:"entity_id"`
	}
	if err := decodeInput(input, &args); err != nil {
		return "", err
	}
	if args.EntityID == "" {
		return "", errors.New("entity_id is required")
	}
	return args.EntityID, nil
}

func clampLimit(limit, fallback, ceiling int) int {
	if limit == 0 {
		return fallback
	}
	if limit < 1 {
		return 1
	}
	if limit > ceiling {
		return ceiling
	}
	return limit
}
