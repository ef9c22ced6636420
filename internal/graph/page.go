package graph

import (
	"context"

	"github.com/osinto/casefile/internal/ftm"
	"github.com/osinto/casefile/internal/models"
)

// GetGraphPage returns one page of nodes and edges from an investigation
// graph, together with overall totals. Nodes and edges are paginated
// independently with the same skip and limit.
func (s *Store) GetGraphPage(ctx context.Context, investigationID string, skip, limit int) (*models.GraphPage, error) {
	g := s.Investigation(investigationID)
	params := map[string]interface{}{"skip": skip, "limit": limit}

	nodeRows, err := g.Query(ctx,
		"MATCH (n:Entity) RETURN n ORDER BY n.id SKIP $skip LIMIT $limit", params)
	if err != nil {
		return nil, err
	}
	edgeRows, err := g.Query(ctx,
		"MATCH (a:Entity)-[r]->(b:Entity) "+
			"RETURN toString(ID(r)), a.id, b.id, type(r), properties(r) "+
			"ORDER BY a.id, b.id SKIP $skip LIMIT $limit", params)
	if err != nil {
		return nil, err
	}

	totalNodes, err := g.Query(ctx, "MATCH (n:Entity) RETURN COUNT(n)", nil)
	if err != nil {
		return nil, err
	}
	totalEdges, err := g.Query(ctx, "MATCH (:Entity)-[r]->(:Entity) RETURN COUNT(r)", nil)
	if err != nil {
		return nil, err
	}

	page := &models.GraphPage{
		Nodes: make([]models.GraphNode, 0, len(nodeRows.Rows)),
		Edges: make([]models.GraphEdge, 0, len(edgeRows.Rows)),
		Skip:  skip,
		Limit: limit,
	}

	for _, row := range nodeRows.Rows {
		if len(row) == 0 {
			continue
		}
		props, ok := NodeMap(row[0])
		if !ok {
			continue
		}
		page.Nodes = append(page.Nodes, graphNodeFromProps(props))
	}

	for _, row := range edgeRows.Rows {
		if len(row) < 5 {
			continue
		}
		page.Edges = append(page.Edges, graphEdgeFromRow(row))
	}

	if !totalNodes.Empty() {
		page.TotalNodes = intValue(totalNodes.Rows[0][0])
	}
	if !totalEdges.Empty() {
		page.TotalEdges = intValue(totalEdges.Rows[0][0])
	}

	return page, nil
}

func graphNodeFromProps(props map[string]interface{}) models.GraphNode {
	node := models.GraphNode{
		ID:         stringValue(props["id"]),
		Schema:     "Thing",
		Properties: PropertiesFromNode(props),
	}
	if raw, ok := props["schema"]; ok && raw != nil {
		node.Schema = stringValue(raw)
	}

	node.Label = node.ID
	if names := node.Properties.Get("name"); len(names) > 0 {
		node.Label = names[0]
	}
	return node
}

func graphEdgeFromRow(row []interface{}) models.GraphEdge {
	schema := stringValue(row[3])
	edge := models.GraphEdge{
		ID:     stringValue(row[0]),
		Source: stringValue(row[1]),
		Target: stringValue(row[2]),
		Schema: schema,
		Label:  schema,
	}

	if props, ok := NodeMap(row[4]); ok {
		edge.Properties = PropertiesFromNode(props)
	} else {
		edge.Properties = ftm.Properties{}
	}
	return edge
}
