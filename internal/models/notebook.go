package models

import "time"

// NotebookCanvas represents the free-form canvas payload of a notebook
type NotebookCanvas struct {
	Nodes    []map[string]interface{} `json:"nodes"`
	Edges    []map[string]interface{} `json:"edges"`
	Viewport map[string]float64       `json:"viewport"`
}

// DefaultCanvas returns an empty canvas with the initial viewport
func DefaultCanvas() NotebookCanvas {
	return NotebookCanvas{
		Nodes:    []map[string]interface{}{},
		Edges:    []map[string]interface{}{},
		Viewport: map[string]float64{"x": 0, "y": 0, "zoom": 1},
	}
}

// NotebookDocument represents the notebook state returned to the client
type NotebookDocument struct {
	InvestigationID string         `json:"investigation_id"`
	Version         int            `json:"version"`
	CanvasDoc       NotebookCanvas `json:"canvas_doc"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// NotebookUpdate represents a notebook save request with its expected version
type NotebookUpdate struct {
	Version   int            `json:"version"`
	CanvasDoc NotebookCanvas `json:"canvas_doc"`
}
