package graph

import (
	"context"
	"time"
)

// metaTimeLayout is fixed-width so that string ordering in Cypher matches
// chronological ordering.
const metaTimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// InvestigationMeta is one row of the investigation metadata graph
type InvestigationMeta struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
}

// PutMeta stores investigation metadata in the dedicated metadata graph.
// Existing metadata for the same id is overwritten.
func (s *Store) PutMeta(ctx context.Context, investigationID, name, description string) error {
	var descriptionParam interface{}
	if description != "" {
		descriptionParam = description
	}

	_, err := s.Meta().Query(ctx,
		"MERGE (i:Investigation {id: $id}) "+
			"SET i.name = $name, i.description = $description, i.created_at = $created_at",
		map[string]interface{}{
			"id":          investigationID,
			"name":        name,
			"description": descriptionParam,
			"created_at":  time.Now().UTC().Format(metaTimeLayout),
		})
	return err
}

// GetMeta returns metadata for one investigation, or nil when absent
func (s *Store) GetMeta(ctx context.Context, investigationID string) (*InvestigationMeta, error) {
	result, err := s.Meta().Query(ctx,
		"MATCH (i:Investigation {id: $id}) "+
			"RETURN i.id, i.name, i.description, i.created_at LIMIT 1",
		map[string]interface{}{"id": investigationID})
	if err != nil {
		return nil, err
	}
	if result.Empty() {
		return nil, nil
	}

	meta := metaFromRow(result.Rows[0])
	return &meta, nil
}

// ListMeta returns all stored investigation metadata, newest first
func (s *Store) ListMeta(ctx context.Context) ([]InvestigationMeta, error) {
	result, err := s.Meta().Query(ctx,
		"MATCH (i:Investigation) "+
			"RETURN i.id, i.name, i.description, i.created_at "+
			"ORDER BY i.created_at DESC",
		nil)
	if err != nil {
		return nil, err
	}

	items := make([]InvestigationMeta, 0, len(result.Rows))
	for _, row := range result.Rows {
		items = append(items, metaFromRow(row))
	}
	return items, nil
}

// DeleteMeta removes metadata for one investigation
func (s *Store) DeleteMeta(ctx context.Context, investigationID string) error {
	_, err := s.Meta().Query(ctx,
		"MATCH (i:Investigation {id: $id}) DETACH DELETE i",
		map[string]interface{}{"id": investigationID})
	return err
}

func metaFromRow(row []interface{}) InvestigationMeta {
	meta := InvestigationMeta{}
	if len(row) > 0 {
		meta.ID = stringValue(row[0])
	}
	if len(row) > 1 {
		meta.Name = stringValue(row[1])
	}
	if len(row) > 2 && row[2] != nil {
		meta.Description = stringValue(row[2])
	}
	if len(row) > 3 && row[3] != nil {
		meta.CreatedAt = parseMetaTime(stringValue(row[3]))
	}
	return meta
}

// parseMetaTime parses stored timestamps, returning the zero time for
// values that cannot be parsed.
func parseMetaTime(value string) time.Time {
	for _, layout := range []string{metaTimeLayout, time.RFC3339Nano, time.RFC3339} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed
		}
	}
	return time.Time{}
}
