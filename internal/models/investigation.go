package models

import "time"

// Investigation represents an investigation with its entity count
type Investigation struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	EntityCount int       `json:"entity_count"`
}

// InvestigationCreate represents the request to create an investigation
type InvestigationCreate struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// InvestigationList represents a page of investigations
type InvestigationList struct {
	Items []Investigation `json:"items"`
	Total int             `json:"total"`
}
