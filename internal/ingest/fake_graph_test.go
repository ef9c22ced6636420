package ingest

import (
	"context"
	"sort"
	"strings"

	"github.com/osinto/casefile/internal/graph"
)

// storedEdge is one edge held by the in-memory test graph
type storedEdge struct {
	id       string
	relType  string
	schema   string
	sourceID string
	targetID string
	props    map[string]interface{}
}

// fakeGraph answers the Cypher statements the ingest and entity
// services issue from in-memory state, dispatching on query shape the
// way the statements are written.
type fakeGraph struct {
	nodes   map[string]map[string]interface{}
	edges   map[string]*storedEdge
	queries []string
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{
		nodes: map[string]map[string]interface{}{},
		edges: map[string]*storedEdge{},
	}
}

// addNode stores an entity with the underscore storage convention applied
func (g *fakeGraph) addNode(id, schema string, properties map[string][]string) {
	node := map[string]interface{}{"id": id, "schema": schema}
	for key, values := range properties {
		items := make([]interface{}, len(values))
		for i, v := range values {
			items[i] = v
		}
		node["_"+key] = items
	}
	g.nodes[id] = node
}

func (g *fakeGraph) edgeList() []*storedEdge {
	ids := make([]string, 0, len(g.edges))
	for id := range g.edges {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	edges := make([]*storedEdge, 0, len(ids))
	for _, id := range ids {
		edges = append(edges, g.edges[id])
	}
	return edges
}

func (g *fakeGraph) Query(_ context.Context, query string, params map[string]interface{}) (*graph.QueryResult, error) {
	g.queries = append(g.queries, query)

	switch {
	case strings.Contains(query, "RETURN n.id LIMIT 1") && strings.Contains(query, "{id: $entity_id}"):
		id, _ := params["entity_id"].(string)
		if _, ok := g.nodes[id]; ok {
			return rows([][]interface{}{{id}}), nil
		}
		return rows(nil), nil

	case strings.Contains(query, "coalesce(n._name, [])"):
		name, _ := params["name"].(string)
		for _, id := range g.nodeIDs() {
			if g.hasName(id, name) {
				return rows([][]interface{}{{id}}), nil
			}
		}
		return rows(nil), nil

	case strings.HasPrefix(query, "MATCH (n:Entity {id: $entity_id}) RETURN n LIMIT 1"):
		id, _ := params["entity_id"].(string)
		if node, ok := g.nodes[id]; ok {
			return rows([][]interface{}{{node}}), nil
		}
		return rows(nil), nil

	case strings.HasPrefix(query, "CREATE (n:Entity"):
		id, _ := params["entity_id"].(string)
		schema, _ := params["schema"].(string)
		node := map[string]interface{}{"id": id, "schema": schema}
		for key, value := range paramProps(params) {
			node[key] = value
		}
		g.nodes[id] = node
		return rows([][]interface{}{{node}}), nil

	case strings.Contains(query, "MERGE (a)-[r:"):
		return g.mergeEdge(query, params), nil

	case strings.Contains(query, "SET n += $properties RETURN n"):
		id, _ := params["entity_id"].(string)
		node, ok := g.nodes[id]
		if !ok {
			return rows(nil), nil
		}
		replaced := map[string]interface{}{"id": node["id"], "schema": node["schema"]}
		for key, value := range paramProps(params) {
			replaced[key] = value
		}
		g.nodes[id] = replaced
		return rows([][]interface{}{{replaced}}), nil
	}

	return rows(nil), nil
}

// mergeEdge applies the MERGE-by-id contract: a missing endpoint node
// yields no rows, a known edge id updates in place, anything else
// creates the edge and reports it in the stats.
func (g *fakeGraph) mergeEdge(query string, params map[string]interface{}) *graph.QueryResult {
	sourceID, _ := params["source_id"].(string)
	targetID, _ := params["target_id"].(string)
	edgeID, _ := params["edge_id"].(string)
	schema, _ := params["schema"].(string)

	if _, ok := g.nodes[sourceID]; !ok {
		return rows(nil)
	}
	if _, ok := g.nodes[targetID]; !ok {
		return rows(nil)
	}

	props := map[string]interface{}{}
	for key, value := range paramProps(params) {
		props[key] = value
	}

	if existing, ok := g.edges[edgeID]; ok {
		existing.schema = schema
		existing.props = props
		return rows([][]interface{}{{props}})
	}

	g.edges[edgeID] = &storedEdge{
		id:       edgeID,
		relType:  relTypeOf(query),
		schema:   schema,
		sourceID: sourceID,
		targetID: targetID,
		props:    props,
	}
	result := rows([][]interface{}{{props}})
	result.Stats.RelationshipsCreated = 1
	return result
}

func (g *fakeGraph) nodeIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (g *fakeGraph) hasName(id, name string) bool {
	values, ok := g.nodes[id]["_name"].([]interface{})
	if !ok {
		return false
	}
	for _, value := range values {
		if text, ok := value.(string); ok && strings.EqualFold(text, name) {
			return true
		}
	}
	return false
}

// relTypeOf pulls the relationship type out of a MERGE statement
func relTypeOf(query string) string {
	_, rest, ok := strings.Cut(query, "[r:")
	if !ok {
		return ""
	}
	relType, _, _ := strings.Cut(rest, " {")
	return relType
}

func paramProps(params map[string]interface{}) map[string]interface{} {
	props, _ := params["properties"].(map[string]interface{})
	return props
}

func rows(values [][]interface{}) *graph.QueryResult {
	if values == nil {
		values = [][]interface{}{}
	}
	return &graph.QueryResult{Rows: values}
}

// fakeSource hands the same fake graph to every investigation
type fakeSource struct {
	graph *fakeGraph
}

func (s fakeSource) Investigation(string) graph.Querier {
	return s.graph
}
