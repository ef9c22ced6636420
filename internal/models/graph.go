package models

import "github.com/osinto/casefile/internal/ftm"

// GraphNode represents a node in a graph page response
type GraphNode struct {
	ID     string `json:"id"`
	Schema string `json:"schema"`
	// Label is the display label, usually the first name value
	Label      string         `json:"label"`
	Properties ftm.Properties `json:"properties"`
}

// GraphEdge represents a typed edge in a graph page response
type GraphEdge struct {
	ID         string         `json:"id"`
	Source     string         `json:"source"`
	Target     string         `json:"target"`
	Schema     string         `json:"schema"`
	Label      string         `json:"label"`
	Properties ftm.Properties `json:"properties"`
}

// GraphPage represents one page of graph data with overall totals
type GraphPage struct {
	Nodes      []GraphNode `json:"nodes"`
	Edges      []GraphEdge `json:"edges"`
	TotalNodes int         `json:"total_nodes"`
	TotalEdges int         `json:"total_edges"`
	Skip       int         `json:"skip"`
	Limit      int         `json:"limit"`
}
