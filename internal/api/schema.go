package api

import (
	"fmt"
	"net/http"

	"github.com/osinto/casefile/internal/ftm"
	"github.com/osinto/casefile/internal/models"
)

func schemaSummary(schema *ftm.Schema) models.Schema {
	return models.Schema{
		Name:      schema.Name,
		Label:     schema.Label,
		Plural:    schema.Plural,
		Abstract:  schema.Abstract,
		Matchable: schema.Matchable,
	}
}

func (s *Server) handleListSchemata(w http.ResponseWriter, r *http.Request) {
	schemata := s.catalog.List()
	summaries := make([]models.Schema, 0, len(schemata))
	for _, schema := range schemata {
		summaries = append(summaries, schemaSummary(schema))
	}
	WriteData(w, http.StatusOK, summaries)
}

func (s *Server) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	schema, ok := s.catalog.Get(name)
	if !ok {
		WriteError(w, http.StatusNotFound, ErrorCodeNotFound, fmt.Sprintf("Schema '%s' not found", name))
		return
	}

	properties := make([]models.SchemaProperty, 0, len(schema.Properties))
	for _, prop := range schema.Properties {
		properties = append(properties, models.SchemaProperty{
			Name:     prop.Name,
			Label:    prop.Label,
			Type:     prop.Type,
			Multiple: prop.Multiple,
		})
	}

	WriteData(w, http.StatusOK, models.SchemaDetail{
		Schema:     schemaSummary(schema),
		Properties: properties,
	})
}
