// Package entity implements CRUD, bidirectional expansion, duplicate
// candidate scoring and merge-with-rewire over per-investigation graphs.
package entity

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/osinto/casefile/internal/ftm"
	"github.com/osinto/casefile/internal/graph"
	"github.com/osinto/casefile/internal/logging"
	"github.com/osinto/casefile/internal/models"
)

// GraphSource hands out query handles for investigation graphs
type GraphSource interface {
	Investigation(investigationID string) graph.Querier
}

// Service manages entities within investigation graphs
type Service struct {
	graphs  GraphSource
	catalog *ftm.Catalog
	logger  *logging.Logger
}

// NewService creates an entity service backed by a graph source and the
// schema catalog used for validation.
func NewService(graphs GraphSource, catalog *ftm.Catalog) *Service {
	return &Service{
		graphs:  graphs,
		catalog: catalog,
		logger:  logging.GetLogger("entity.service"),
	}
}

// Create cleans, validates and persists a new entity. The id is
// generated when absent; creating an existing id fails.
func (s *Service) Create(ctx context.Context, investigationID string, payload models.EntityCreate) (*models.Entity, error) {
	payload.Properties = ftm.Clean(payload.Properties)
	if err := s.catalog.Validate(payload.Schema, payload.Properties); err != nil {
		return nil, err
	}

	querier := s.graphs.Investigation(investigationID)
	entityID := payload.ID
	if entityID == "" {
		entityID = uuid.NewString()
	}

	existing, err := s.getNode(ctx, querier, entityID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewValidationError("Entity '%s' already exists", entityID)
	}

	result, err := querier.Query(ctx,
		"CREATE (n:Entity {id: $entity_id, schema: $schema}) SET n += $properties RETURN n",
		map[string]interface{}{
			"entity_id":  entityID,
			"schema":     payload.Schema,
			"properties": graph.StorageProperties(payload.Properties),
		})
	if err != nil {
		return nil, err
	}
	if result.Empty() {
		return nil, fmt.Errorf("entity create returned no rows")
	}

	entity, ok := graph.EntityFromValue(result.Rows[0][0])
	if !ok {
		return nil, fmt.Errorf("entity create returned an unexpected value")
	}
	return &entity, nil
}

// List returns all entities ordered by id. A non-empty search matches
// case-insensitively against the id and any name value.
func (s *Service) List(ctx context.Context, investigationID, search string) ([]models.Entity, error) {
	querier := s.graphs.Investigation(investigationID)

	var result *graph.QueryResult
	var err error
	if search != "" {
		result, err = querier.Query(ctx,
			"MATCH (n:Entity) "+
				"WHERE toLower(n.id) CONTAINS toLower($search) "+
				"OR toLower(toString(n._name)) CONTAINS toLower($search) "+
				"RETURN n ORDER BY n.id",
			map[string]interface{}{"search": search})
	} else {
		result, err = querier.Query(ctx, "MATCH (n:Entity) RETURN n ORDER BY n.id", nil)
	}
	if err != nil {
		return nil, err
	}

	entities := make([]models.Entity, 0, len(result.Rows))
	for _, row := range result.Rows {
		if len(row) == 0 {
			continue
		}
		if entity, ok := graph.EntityFromValue(row[0]); ok {
			entities = append(entities, entity)
		}
	}
	return entities, nil
}

// Get returns one entity, or nil when it does not exist
func (s *Service) Get(ctx context.Context, investigationID, entityID string) (*models.Entity, error) {
	node, err := s.getNode(ctx, s.graphs.Investigation(investigationID), entityID)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, nil
	}

	entity, _ := graph.EntityFromValue(node)
	return &entity, nil
}

// Update cleans, validates and replaces the entity's property set.
// Every stored key outside id and schema is removed before the new set
// is written. Returns nil when the entity does not exist.
func (s *Service) Update(ctx context.Context, investigationID, entityID string, payload models.EntityUpdate) (*models.Entity, error) {
	querier := s.graphs.Investigation(investigationID)

	node, err := s.getNode(ctx, querier, entityID)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, nil
	}

	schemaName := "Thing"
	if name, ok := node["schema"].(string); ok && name != "" {
		schemaName = name
	}
	payload.Properties = ftm.Clean(payload.Properties)
	if err := s.catalog.Validate(schemaName, payload.Properties); err != nil {
		return nil, err
	}

	if err := s.setEntityProperties(ctx, querier, entityID, payload.Properties); err != nil {
		return nil, err
	}
	return s.Get(ctx, investigationID, entityID)
}

// Delete removes an entity and detaches all its edges. It reports
// whether an entity was actually deleted.
func (s *Service) Delete(ctx context.Context, investigationID, entityID string) (bool, error) {
	result, err := s.graphs.Investigation(investigationID).Query(ctx,
		"MATCH (n:Entity {id: $entity_id}) WITH n LIMIT 1 DETACH DELETE n RETURN 1",
		map[string]interface{}{"entity_id": entityID})
	if err != nil {
		return false, err
	}
	return !result.Empty(), nil
}

// Expand returns the entity with its distinct neighbors and every edge
// in either direction. Returns nil when the entity does not exist.
func (s *Service) Expand(ctx context.Context, investigationID, entityID string) (*models.EntityExpand, error) {
	result, err := s.graphs.Investigation(investigationID).Query(ctx,
		"MATCH (n:Entity {id: $entity_id}) "+
			"OPTIONAL MATCH (n)-[r]-(m:Entity) "+
			"RETURN n, "+
			"collect(DISTINCT m) AS neighbors, "+
			"collect(DISTINCT {"+
			"id: toString(ID(r)), "+
			"source: startNode(r).id, "+
			"target: endNode(r).id, "+
			"schema: type(r), "+
			"properties: properties(r)"+
			"}) AS edges",
		map[string]interface{}{"entity_id": entityID})
	if err != nil {
		return nil, err
	}
	if result.Empty() || len(result.Rows[0]) < 3 {
		return nil, nil
	}

	row := result.Rows[0]
	entity, ok := graph.EntityFromValue(row[0])
	if !ok {
		return nil, nil
	}

	expand := &models.EntityExpand{
		Entity:    entity,
		Neighbors: []models.Entity{},
		Edges:     []models.GraphEdge{},
	}

	if rawNeighbors, ok := row[1].([]interface{}); ok {
		for _, value := range rawNeighbors {
			if value == nil {
				continue
			}
			neighbor, ok := graph.EntityFromValue(value)
			if !ok || neighbor.ID == entityID {
				continue
			}
			expand.Neighbors = append(expand.Neighbors, neighbor)
		}
	}

	if rawEdges, ok := row[2].([]interface{}); ok {
		for _, value := range rawEdges {
			item, ok := value.(map[string]interface{})
			if !ok || item["id"] == nil {
				continue
			}
			expand.Edges = append(expand.Edges, expandEdge(item))
		}
	}

	return expand, nil
}

// expandEdge converts one edge map projection into the wire model
func expandEdge(item map[string]interface{}) models.GraphEdge {
	edge := models.GraphEdge{
		ID:         stringField(item, "id"),
		Source:     stringField(item, "source"),
		Target:     stringField(item, "target"),
		Schema:     stringField(item, "schema"),
		Properties: ftm.Properties{},
	}
	edge.Label = edge.Schema

	if props, ok := item["properties"].(map[string]interface{}); ok {
		edge.Properties = graph.PropertiesFromNode(props)
	}
	return edge
}

func stringField(item map[string]interface{}, key string) string {
	value, _ := item[key].(string)
	return value
}

// getNode fetches the raw stored property map of one entity, or nil
func (s *Service) getNode(ctx context.Context, querier graph.Querier, entityID string) (map[string]interface{}, error) {
	result, err := querier.Query(ctx,
		"MATCH (n:Entity {id: $entity_id}) RETURN n LIMIT 1",
		map[string]interface{}{"entity_id": entityID})
	if err != nil {
		return nil, err
	}
	if result.Empty() || len(result.Rows[0]) == 0 {
		return nil, nil
	}

	props, ok := graph.NodeMap(result.Rows[0][0])
	if !ok {
		return nil, nil
	}
	return props, nil
}

// setEntityProperties replaces the stored property set of one entity.
// Existing keys outside id and schema are removed first.
func (s *Service) setEntityProperties(ctx context.Context, querier graph.Querier, entityID string, properties ftm.Properties) error {
	node, err := s.getNode(ctx, querier, entityID)
	if err != nil {
		return err
	}
	if node == nil {
		return models.NewValidationError("Entity '%s' not found", entityID)
	}

	removable := make([]string, 0, len(node))
	for key := range node {
		if key != "id" && key != "schema" {
			removable = append(removable, key)
		}
	}
	sort.Strings(removable)

	removeClause := ""
	if len(removable) > 0 {
		parts := make([]string, len(removable))
		for i, key := range removable {
			parts[i] = "n." + key
		}
		removeClause = "REMOVE " + strings.Join(parts, ", ") + " "
	}

	query := "MATCH (n:Entity {id: $entity_id}) " + removeClause + "SET n += $properties RETURN n"
	_, err = querier.Query(ctx, query, map[string]interface{}{
		"entity_id":  entityID,
		"properties": graph.StorageProperties(properties),
	})
	return err
}
