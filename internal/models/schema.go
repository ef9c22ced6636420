package models

// SchemaProperty represents one property of an FTM schema
type SchemaProperty struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Type     string `json:"type"`
	Multiple bool   `json:"multiple"`
}

// Schema represents a basic schema description
type Schema struct {
	Name      string `json:"name"`
	Label     string `json:"label"`
	Plural    string `json:"plural"`
	Abstract  bool   `json:"abstract"`
	Matchable bool   `json:"matchable"`
}

// SchemaDetail represents a schema together with its available properties
type SchemaDetail struct {
	Schema
	Properties []SchemaProperty `json:"properties"`
}
