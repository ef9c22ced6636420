package graph

import (
	"context"
	"time"

	"github.com/FalkorDB/falkordb-go/v2"
)

// Querier is the query capability consumed by services that read and write
// investigation graphs. Implementations must support Cypher parameters.
type Querier interface {
	Query(ctx context.Context, query string, params map[string]interface{}) (*QueryResult, error)
}

// QueryStats holds write counters reported by FalkorDB for a query
type QueryStats struct {
	NodesCreated         int
	NodesDeleted         int
	RelationshipsCreated int
	RelationshipsDeleted int
	PropertiesSet        int
	LabelsAdded          int
	ExecutionTime        time.Duration
}

// QueryResult holds the rows returned by a Cypher query
type QueryResult struct {
	Columns []string
	Rows    [][]interface{}
	Stats   QueryStats
}

// Empty reports whether the query returned no rows
func (r *QueryResult) Empty() bool {
	return len(r.Rows) == 0
}

// First returns the first row, or nil when the result is empty
func (r *QueryResult) First() []interface{} {
	if len(r.Rows) == 0 {
		return nil
	}
	return r.Rows[0]
}

// Graph wraps one named FalkorDB graph
type Graph struct {
	name  string
	inner *falkordb.Graph
}

// Name returns the backing graph name
func (g *Graph) Name() string {
	return g.name
}

// Query executes a Cypher query with parameters. The FalkorDB client
// handles parameter substitution internally.
func (g *Graph) Query(ctx context.Context, query string, params map[string]interface{}) (*QueryResult, error) {
	start := time.Now()
	result, err := g.inner.Query(query, params, nil)
	if err != nil {
		return nil, opError("query", err)
	}

	converted := convertResult(result)
	converted.Stats.ExecutionTime = time.Since(start)
	return converted, nil
}

// convertResult converts a FalkorDB result into rows. Column names come
// from the first record.
func convertResult(result *falkordb.QueryResult) *QueryResult {
	converted := &QueryResult{
		Columns: []string{},
		Rows:    [][]interface{}{},
	}

	firstRow := true
	for result.Next() {
		record := result.Record()
		if firstRow {
			converted.Columns = record.Keys()
			firstRow = false
		}
		converted.Rows = append(converted.Rows, record.Values())
	}

	converted.Stats.NodesCreated = result.NodesCreated()
	converted.Stats.NodesDeleted = result.NodesDeleted()
	converted.Stats.RelationshipsCreated = result.RelationshipsCreated()
	converted.Stats.RelationshipsDeleted = result.RelationshipsDeleted()
	converted.Stats.PropertiesSet = result.PropertiesSet()
	converted.Stats.LabelsAdded = result.LabelsAdded()

	return converted
}
