package models

import "github.com/osinto/casefile/internal/ftm"

// YenteSearchResult represents one normalized Yente match
type YenteSearchResult struct {
	ID         string         `json:"id"`
	Schema     string         `json:"schema"`
	Caption    string         `json:"caption"`
	Score      *float64       `json:"score,omitempty"`
	Datasets   []string       `json:"datasets"`
	Properties ftm.Properties `json:"properties"`
}

// YenteSearchResponse represents a Yente search response wrapper
type YenteSearchResponse struct {
	Query   string              `json:"query"`
	Total   int                 `json:"total"`
	Results []YenteSearchResult `json:"results"`
}

// YenteLinkResponse represents the outcome of linking an entity by adjacency
type YenteLinkResponse struct {
	InvestigationID string   `json:"investigation_id"`
	EntityID        string   `json:"entity_id"`
	LinkedTo        []string `json:"linked_to"`
	LinksApplied    int      `json:"links_applied"`
}
