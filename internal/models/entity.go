package models

import "github.com/osinto/casefile/internal/ftm"

// Entity represents a node in an investigation graph
type Entity struct {
	ID         string         `json:"id"`
	Schema     string         `json:"schema"`
	Properties ftm.Properties `json:"properties"`
}

// EntityCreate represents the request to create an entity
type EntityCreate struct {
	// ID is optional and generated when absent
	ID         string         `json:"id,omitempty"`
	Schema     string         `json:"schema"`
	Properties ftm.Properties `json:"properties"`
}

// EntityUpdate represents the request to replace an entity's properties
type EntityUpdate struct {
	Properties ftm.Properties `json:"properties"`
}

// EntityExpand represents an entity with its neighborhood
type EntityExpand struct {
	Entity    Entity      `json:"entity"`
	Neighbors []Entity    `json:"neighbors"`
	Edges     []GraphEdge `json:"edges"`
}

// DuplicateCandidate represents a potential duplicate pair for manual review
type DuplicateCandidate struct {
	Left       Entity  `json:"left"`
	Right      Entity  `json:"right"`
	Similarity float64 `json:"similarity"`
	Reason     string  `json:"reason"`
}

// MergeEntitiesRequest represents a manual merge operation
type MergeEntitiesRequest struct {
	SourceIDs        []string       `json:"source_ids"`
	TargetID         string         `json:"target_id"`
	MergedProperties ftm.Properties `json:"merged_properties,omitempty"`
}

// MergeEntitiesResponse represents the surviving entity after a merge
type MergeEntitiesResponse struct {
	Target          Entity   `json:"target"`
	MergedSourceIDs []string `json:"merged_source_ids"`
}
