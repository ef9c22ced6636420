package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	defaultEntityLimit = 50
	maxEntityLimit     = 200
	defaultGraphLimit  = 500
	maxGraphLimit      = 2000
)

func (s *Server) registerTools() {
	s.registerTool(
		"list_investigations",
		"List all investigations with their entity counts.",
		map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		},
		func(ctx context.Context, _ json.RawMessage) (interface{}, error) {
			return s.investigations.List(ctx)
		},
	)

	s.registerTool(
		"list_entities",
		"List entities in one investigation, optionally filtered by a case-insensitive name search.",
		map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"investigation_id": map[string]interface{}{
					"type":        "string",
					"description": "Investigation to list entities from.",
				},
				"search": map[string]interface{}{
					"type":        "string",
					"description": "Substring to match against entity names.",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum entities to return (default 50, max 200).",
				},
			},
			"required": []string{"investigation_id"},
		},
		s.listEntities,
	)

	s.registerTool(
		"get_entity",
		"Fetch one entity by id, including all of its properties.",
		map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"investigation_id": map[string]interface{}{
					"type":        "string",
					"description": "Investigation holding the entity.",
				},
				"entity_id": map[string]interface{}{
					"type":        "string",
					"description": "Entity id to fetch.",
				},
			},
			"required": []string{"investigation_id", "entity_id"},
		},
		s.getEntity,
	)

	s.registerTool(
		"expand_entity",
		"Fetch an entity together with its direct neighbors and connecting edges.",
		map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"investigation_id": map[string]interface{}{
					"type":        "string",
					"description": "Investigation holding the entity.",
				},
				"entity_id": map[string]interface{}{
					"type":        "string",
					"description": "Entity id to expand.",
				},
			},
			"required": []string{"investigation_id", "entity_id"},
		},
		s.expandEntity,
	)

	s.registerTool(
		"investigation_graph",
		"Page through the property graph of one investigation: nodes, edges and totals.",
		map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"investigation_id": map[string]interface{}{
					"type":        "string",
					"description": "Investigation to page through.",
				},
				"skip": map[string]interface{}{
					"type":        "integer",
					"description": "Nodes to skip for pagination (default 0).",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum nodes per page (default 500, max 2000).",
				},
			},
			"required": []string{"investigation_id"},
		},
		s.investigationGraph,
	)
}

func (s *Server) listEntities(ctx context.Context, input json.RawMessage) (interface{}, error) {
	var args struct {
		InvestigationID string `json:"investigation_id"`
		Search          string `json:"search"`
		Limit           int    `json:"limit"`
	}
	if err := decodeArgs(input, &args); err != nil {
		return nil, err
	}
	if args.InvestigationID == "" {
		return nil, errors.New("investigation_id is required")
	}

	limit := args.Limit
	switch {
	case limit == 0:
		limit = defaultEntityLimit
	case limit < 1:
		limit = 1
	case limit > maxEntityLimit:
		limit = maxEntityLimit
	}

	entities, err := s.entities.List(ctx, args.InvestigationID, args.Search)
	if err != nil {
		return nil, err
	}
	if len(entities) > limit {
		entities = entities[:limit]
	}
	return entities, nil
}

func (s *Server) getEntity(ctx context.Context, input json.RawMessage) (interface{}, error) {
	investigationID, entityID, err := entityArgs(input)
	if err != nil {
		return nil, err
	}

	entity, err := s.entities.Get(ctx, investigationID, entityID)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, fmt.Errorf("entity %s not found in investigation %s", entityID, investigationID)
	}
	return entity, nil
}

func (s *Server) expandEntity(ctx context.Context, input json.RawMessage) (interface{}, error) {
	investigationID, entityID, err := entityArgs(input)
	if err != nil {
		return nil, err
	}

	expansion, err := s.entities.Expand(ctx, investigationID, entityID)
	if err != nil {
		return nil, err
	}
	if expansion == nil {
		return nil, fmt.Errorf("entity %s not found in investigation %s", entityID, investigationID)
	}
	return expansion, nil
}

func (s *Server) investigationGraph(ctx context.Context, input json.RawMessage) (interface{}, error) {
	var args struct {
		InvestigationID string `json:"investigation_id"`
		Skip            int    `json:"skip"`
		Limit           int    `json:"limit"`
	}
	if err := decodeArgs(input, &args); err != nil {
		return nil, err
	}
	if args.InvestigationID == "" {
		return nil, errors.New("investigation_id is required")
	}

	skip := args.Skip
	if skip < 0 {
		skip = 0
	}
	limit := args.Limit
	switch {
	case limit == 0:
		limit = defaultGraphLimit
	case limit < 1:
		limit = 1
	case limit > maxGraphLimit:
		limit = maxGraphLimit
	}

	return s.graphs.GetGraphPage(ctx, args.InvestigationID, skip, limit)
}

func entityArgs(input json.RawMessage) (investigationID, entityID string, err error) {
	var args struct {
		InvestigationID string `json:"investigation_id"`
		EntityID        string `json:"entity_id"`
	}
	if err := decodeArgs(input, &args); err != nil {
		return "", "", err
	}
	if args.InvestigationID == "" {
		return "", "", errors.New("investigation_id is required")
	}
	if args.EntityID == "" {
		return "", "", errors.New("entity_id is required")
	}
	return args.InvestigationID, args.EntityID, nil
}

func decodeArgs(input json.RawMessage, v interface{}) error {
	if len(input) == 0 {
		return nil
	}
	if err := json.Unmarshal(input, v); err != nil {
		return fmt.Errorf("invalid tool input: %v", err)
	}
	return nil
}
