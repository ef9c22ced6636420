package entity

import (
	"context"
	"sort"
	"strings"

	"github.com/osinto/casefile/internal/graph"
)

// fakeEdge is one stored edge of the in-memory test graph
type fakeEdge struct {
	relType string
	props   map[string]interface{}
	otherID string
}

// recordedEdge captures an edge write issued by the code under test
type recordedEdge struct {
	query  string
	params map[string]interface{}
}

// fakeGraph answers the Cypher statements the entity service issues from
// in-memory state, dispatching on query shape the way the statements are
// written. Unknown statements fall through to the optional handler.
type fakeGraph struct {
	nodes    map[string]map[string]interface{}
	outgoing map[string][]fakeEdge
	incoming map[string][]fakeEdge

	createdEdges []recordedEdge
	deleted      []string
	queries      []string

	handler func(query string, params map[string]interface{}) (*graph.QueryResult, error)
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{
		nodes:    map[string]map[string]interface{}{},
		outgoing: map[string][]fakeEdge{},
		incoming: map[string][]fakeEdge{},
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

func (g *fakeGraph) addEdge(sourceID, relType, targetID string, props map[string]interface{}) {
	if props == nil {
		props = map[string]interface{}{}
	}
	g.outgoing[sourceID] = append(g.outgoing[sourceID], fakeEdge{relType: relType, props: props, otherID: targetID})
	g.incoming[targetID] = append(g.incoming[targetID], fakeEdge{relType: relType, props: props, otherID: sourceID})
}

func (g *fakeGraph) Query(_ context.Context, query string, params map[string]interface{}) (*graph.QueryResult, error) {
	g.queries = append(g.queries, query)

	switch {
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
		if props, ok := params["properties"].(map[string]interface{}); ok {
			for key, value := range props {
				node[key] = value
			}
		}
		g.nodes[id] = node
		return rows([][]interface{}{{node}}), nil

	case strings.Contains(query, "RETURN n ORDER BY n.id"):
		ids := make([]string, 0, len(g.nodes))
		for id := range g.nodes {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		out := make([][]interface{}, 0, len(ids))
		for _, id := range ids {
			out = append(out, []interface{}{g.nodes[id]})
		}
		return rows(out), nil

	case strings.Contains(query, "{id: $source_id})-[r]->(other:Entity)"):
		id, _ := params["source_id"].(string)
		return rows(edgeRows(g.outgoing[id])), nil

	case strings.Contains(query, "(other:Entity)-[r]->(source:Entity"):
		id, _ := params["source_id"].(string)
		return rows(edgeRows(g.incoming[id])), nil

	case strings.Contains(query, "MERGE (a)-[r:"), strings.Contains(query, "CREATE (a)-[r:"):
		g.createdEdges = append(g.createdEdges, recordedEdge{query: query, params: params})
		return rows(nil), nil

	case strings.Contains(query, "DETACH DELETE n RETURN 1"):
		id, _ := params["entity_id"].(string)
		if _, ok := g.nodes[id]; !ok {
			return rows(nil), nil
		}
		delete(g.nodes, id)
		g.deleted = append(g.deleted, id)
		return rows([][]interface{}{{int64(1)}}), nil

	case strings.Contains(query, "DETACH DELETE n"):
		id, _ := params["entity_id"].(string)
		delete(g.nodes, id)
		g.deleted = append(g.deleted, id)
		return rows(nil), nil

	case strings.Contains(query, "SET n += $properties RETURN n"):
		id, _ := params["entity_id"].(string)
		node, ok := g.nodes[id]
		if !ok {
			return rows(nil), nil
		}
		replaced := map[string]interface{}{"id": node["id"], "schema": node["schema"]}
		if props, ok := params["properties"].(map[string]interface{}); ok {
			for key, value := range props {
				replaced[key] = value
			}
		}
		g.nodes[id] = replaced
		return rows([][]interface{}{{replaced}}), nil
	}

	if g.handler != nil {
		return g.handler(query, params)
	}
	return rows(nil), nil
}

func edgeRows(edges []fakeEdge) [][]interface{} {
	out := make([][]interface{}, 0, len(edges))
	for _, edge := range edges {
		out = append(out, []interface{}{edge.relType, edge.props, edge.otherID})
	}
	return out
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
