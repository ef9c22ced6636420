package entity

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/osinto/casefile/internal/ftm"
	"github.com/osinto/casefile/internal/graph"
	"github.com/osinto/casefile/internal/models"
)

const minMergeSourceIDs = 2

// MergeEntities folds the source entities into the target: every edge of
// a source is recreated on the target (edges between a source and the
// target are dropped rather than turned into self-loops), the sources
// are deleted and the target receives the merged property set.
func (s *Service) MergeEntities(ctx context.Context, investigationID string, sourceIDs []string, targetID string, mergedProperties ftm.Properties) (*models.MergeEntitiesResponse, error) {
	uniqueIDs := dedupeIDs(sourceIDs)
	if len(uniqueIDs) < minMergeSourceIDs {
		return nil, models.NewValidationError("At least two source_ids are required")
	}
	if !containsID(uniqueIDs, targetID) {
		return nil, models.NewValidationError("target_id must be one of source_ids")
	}

	querier := s.graphs.Investigation(investigationID)

	entities := make(map[string]models.Entity, len(uniqueIDs))
	for _, entityID := range uniqueIDs {
		entity, err := s.Get(ctx, investigationID, entityID)
		if err != nil {
			return nil, err
		}
		if entity == nil {
			return nil, models.NewValidationError("Entity '%s' not found", entityID)
		}
		entities[entityID] = *entity
	}

	schemaName := entities[uniqueIDs[0]].Schema
	for _, entity := range entities {
		if entity.Schema != schemaName {
			return nil, models.NewValidationError("All source entities must have the same schema")
		}
	}

	finalProperties := mergedProperties
	if len(finalProperties) == 0 {
		finalProperties = ftm.Properties{}
		for _, entityID := range uniqueIDs {
			finalProperties.Merge(entities[entityID].Properties)
		}
	}
	if err := s.catalog.Validate(schemaName, finalProperties); err != nil {
		return nil, err
	}

	for _, sourceID := range uniqueIDs {
		if sourceID == targetID {
			continue
		}

		outgoing, err := querier.Query(ctx,
			"MATCH (source:Entity {id: $source_id})-[r]->(other:Entity) "+
				"RETURN type(r), properties(r), other.id",
			map[string]interface{}{"source_id": sourceID})
		if err != nil {
			return nil, err
		}
		incoming, err := querier.Query(ctx,
			"MATCH (other:Entity)-[r]->(source:Entity {id: $source_id}) "+
				"RETURN type(r), properties(r), other.id",
			map[string]interface{}{"source_id": sourceID})
		if err != nil {
			return nil, err
		}

		for _, row := range outgoing.Rows {
			relType, relProps, otherID := edgeRow(row)
			if otherID == targetID {
				continue
			}
			if err := recreateEdge(ctx, querier, targetID, otherID, relType, relProps); err != nil {
				return nil, err
			}
		}
		for _, row := range incoming.Rows {
			relType, relProps, otherID := edgeRow(row)
			if otherID == targetID {
				continue
			}
			if err := recreateEdge(ctx, querier, otherID, targetID, relType, relProps); err != nil {
				return nil, err
			}
		}

		_, err = querier.Query(ctx,
			"MATCH (n:Entity {id: $entity_id}) DETACH DELETE n",
			map[string]interface{}{"entity_id": sourceID})
		if err != nil {
			return nil, err
		}
	}

	if err := s.setEntityProperties(ctx, querier, targetID, finalProperties); err != nil {
		return nil, err
	}

	merged, err := s.Get(ctx, investigationID, targetID)
	if err != nil {
		return nil, err
	}
	if merged == nil {
		return nil, fmt.Errorf("merged entity '%s' not found", targetID)
	}

	mergedSourceIDs := make([]string, 0, len(uniqueIDs)-1)
	for _, entityID := range uniqueIDs {
		if entityID != targetID {
			mergedSourceIDs = append(mergedSourceIDs, entityID)
		}
	}

	return &models.MergeEntitiesResponse{
		Target:          *merged,
		MergedSourceIDs: mergedSourceIDs,
	}, nil
}

// recreateEdge re-attaches one edge between new endpoints, keeping the
// original type and properties. Edges carrying an id property are merged
// by id so that replays stay idempotent.
func recreateEdge(ctx context.Context, querier graph.Querier, sourceID, targetID, relType string, properties map[string]interface{}) error {
	relation := sanitizeEdgeType(relType)

	if edgeID, ok := properties["id"]; ok && edgeID != nil {
		_, err := querier.Query(ctx,
			"MATCH (a:Entity {id: $source}), (b:Entity {id: $target}) "+
				"MERGE (a)-[r:"+relation+" {id: $edge_id}]->(b) "+
				"SET r += $properties",
			map[string]interface{}{
				"source":     sourceID,
				"target":     targetID,
				"edge_id":    fmt.Sprintf("%v", edgeID),
				"properties": properties,
			})
		return err
	}

	_, err := querier.Query(ctx,
		"MATCH (a:Entity {id: $source}), (b:Entity {id: $target}) "+
			"CREATE (a)-[r:"+relation+"]->(b) "+
			"SET r += $properties",
		map[string]interface{}{
			"source":     sourceID,
			"target":     targetID,
			"properties": properties,
		})
	return err
}

// sanitizeEdgeType keeps relationship types safe for inline Cypher. Types
// read back from the graph are already sanitized; this guards the query
// against anything else.
func sanitizeEdgeType(relType string) string {
	var builder strings.Builder
	for _, r := range relType {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_' {
			builder.WriteRune(r)
		} else {
			builder.WriteByte('_')
		}
	}
	return builder.String()
}

func edgeRow(row []interface{}) (string, map[string]interface{}, string) {
	relType := ""
	otherID := ""
	properties := map[string]interface{}{}

	if len(row) > 0 {
		relType, _ = row[0].(string)
	}
	if len(row) > 1 && row[1] != nil {
		if props, ok := graph.NodeMap(row[1]); ok {
			properties = props
		}
	}
	if len(row) > 2 {
		otherID, _ = row[2].(string)
	}
	return relType, properties, otherID
}

func dedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		trimmed := strings.TrimSpace(id)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		unique = append(unique, trimmed)
	}
	return unique
}

func containsID(ids []string, want string) bool {
	for _, id := range ids {
		if id == want {
			return true
		}
	}
	return false
}
