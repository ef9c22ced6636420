package enrich

import (
	"context"
	"fmt"
	"sort"

	"github.com/osinto/casefile/internal/graph"
	"github.com/osinto/casefile/internal/logging"
	"github.com/osinto/casefile/internal/models"
)

// Searcher is the yente surface the service consumes
type Searcher interface {
	Search(ctx context.Context, query string, limit int) (*models.YenteSearchResponse, error)
	AdjacentIDs(ctx context.Context, entityID string) ([]string, error)
}

// GraphSource hands out query handles for investigation graphs
type GraphSource interface {
	Investigation(investigationID string) graph.Querier
}

// Service links sanction-list adjacency onto investigation graphs
type Service struct {
	yente  Searcher
	graphs GraphSource
	logger *logging.Logger
}

// NewService creates an enrichment service over a yente client.
func NewService(yente Searcher, graphs GraphSource) *Service {
	return &Service{
		yente:  yente,
		graphs: graphs,
		logger: logging.GetLogger("enrich.service"),
	}
}

// Search proxies a query to yente.
func (s *Service) Search(ctx context.Context, query string, limit int) (*models.YenteSearchResponse, error) {
	return s.yente.Search(ctx, query, limit)
}

// Link connects an entity to graph entities its yente record is adjacent
// to. Adjacent ids missing from the investigation graph are ignored;
// each surviving id gets a YENTE_ADJACENT edge merged in, so relinking
// is idempotent.
func (s *Service) Link(ctx context.Context, investigationID, entityID string) (*models.YenteLinkResponse, error) {
	response := &models.YenteLinkResponse{
		InvestigationID: investigationID,
		EntityID:        entityID,
		LinkedTo:        []string{},
	}

	adjacent, err := s.yente.AdjacentIDs(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if len(adjacent) == 0 {
		return response, nil
	}

	querier := s.graphs.Investigation(investigationID)
	existing, err := s.presentInGraph(ctx, querier, adjacent)
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		return response, nil
	}

	for _, targetID := range existing {
		result, err := querier.Query(ctx,
			"MATCH (a:Entity {id: $source}), (b:Entity {id: $target}) "+
				"MERGE (a)-[r:YENTE_ADJACENT]->(b) "+
				"SET r.schema = $schema "+
				"SET r.source = 'yente' "+
				"RETURN r",
			map[string]interface{}{
				"source": entityID,
				"target": targetID,
				"schema": "UnknownLink",
			})
		if err != nil {
			return nil, fmt.Errorf("linking %s to %s: %w", entityID, targetID, err)
		}
		if result.Empty() {
			continue
		}
		response.LinkedTo = append(response.LinkedTo, targetID)
		response.LinksApplied++
	}

	s.logger.InfoWithFields("Linked yente adjacency",
		logging.Field("investigation_id", investigationID),
		logging.Field("entity_id", entityID),
		logging.Field("adjacent", len(adjacent)),
		logging.Field("links_applied", response.LinksApplied))
	return response, nil
}

// presentInGraph filters candidate ids down to those stored as entities,
// sorted.
func (s *Service) presentInGraph(ctx context.Context, querier graph.Querier, ids []string) ([]string, error) {
	result, err := querier.Query(ctx,
		"MATCH (n:Entity) WHERE n.id IN $ids RETURN n.id",
		map[string]interface{}{"ids": ids})
	if err != nil {
		return nil, fmt.Errorf("checking graph for adjacent ids: %w", err)
	}

	existing := make([]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		if len(row) == 0 || row[0] == nil {
			continue
		}
		existing = append(existing, fmt.Sprintf("%v", row[0]))
	}
	sort.Strings(existing)
	return existing, nil
}
