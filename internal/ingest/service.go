// Package ingest loads FollowTheMoney records into investigation
// graphs. Relation records resolve their endpoint references against
// entities already present in the graph; entity records upsert by id.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/osinto/casefile/internal/ftm"
	"github.com/osinto/casefile/internal/graph"
	"github.com/osinto/casefile/internal/logging"
	"github.com/osinto/casefile/internal/metrics"
	"github.com/osinto/casefile/internal/models"
)

// GraphSource hands out query handles for investigation graphs
type GraphSource interface {
	Investigation(investigationID string) graph.Querier
}

// EntityStore is the slice of the entity service used for node upserts
type EntityStore interface {
	Create(ctx context.Context, investigationID string, payload models.EntityCreate) (*models.Entity, error)
	Update(ctx context.Context, investigationID, entityID string, payload models.EntityUpdate) (*models.Entity, error)
}

// slotAliases maps exporter shorthand onto canonical endpoint slots.
// An alias is applied only when the canonical slot is absent.
var slotAliases = map[string]map[string]string{
	"Employment":     {"person": "employee", "organization": "employer"},
	"Directorship":   {"person": "director"},
	"Membership":     {"person": "member"},
	"Ownership":      {"source": "owner", "target": "asset"},
	"Representation": {"source": "agent", "target": "client"},
	"Payment":        {"seller": "payer", "buyer": "beneficiary"},
	"UnknownLink":    {"source": "subject", "target": "object"},
}

// genericEndpointPairs is tried after a schema's own endpoint slots.
// Loosely mapped exports tend to fall into one of these shapes.
var genericEndpointPairs = [][2]string{
	{"subject", "object"},
	{"source", "target"},
	{"owner", "asset"},
	{"employee", "employer"},
	{"person", "organization"},
	{"seller", "buyer"},
}

// errUnresolvedEndpoints rejects a relation record whose endpoint
// references match nothing in the graph.
var errUnresolvedEndpoints = errors.New("unresolved relation endpoints")

// Service ingests FTM records into investigation graphs
type Service struct {
	graphs   GraphSource
	entities EntityStore
	catalog  *ftm.Catalog
	metrics  *metrics.Metrics
	logger   *logging.Logger
}

// NewService creates an ingest service. The metrics handle is optional;
// nil disables record counters.
func NewService(graphs GraphSource, entities EntityStore, catalog *ftm.Catalog, m *metrics.Metrics) *Service {
	return &Service{
		graphs:   graphs,
		entities: entities,
		catalog:  catalog,
		metrics:  m,
		logger:   logging.GetLogger("ingest.service"),
	}
}

// IngestFile decodes an uploaded FTM file and ingests its records.
// Undecodable uploads surface as validation errors.
func (s *Service) IngestFile(ctx context.Context, investigationID string, data []byte, filename string) (*models.IngestResult, error) {
	records, err := DecodeRecords(data, filename)
	if err != nil {
		return nil, models.NewValidationError("Could not parse FTM records: %v", err)
	}
	return s.IngestRecords(ctx, investigationID, records)
}

// IngestRecords loads a batch of records into an investigation graph.
// Failures collect per record into the result; the batch never aborts.
func (s *Service) IngestRecords(ctx context.Context, investigationID string, records []Record) (*models.IngestResult, error) {
	querier := s.graphs.Investigation(investigationID)
	result := &models.IngestResult{Errors: []string{}}
	cache := map[string]string{}

	for i, record := range records {
		result.Processed++
		idx := i + 1

		record.Schema = strings.TrimSpace(record.Schema)
		if record.Schema == "" {
			s.recordError(result, idx, errors.New("missing schema"))
			continue
		}
		record.Properties = ftm.Clean(record.Properties)

		if schema, ok := s.catalog.Get(record.Schema); ok && schema.IsRelation() {
			created, err := s.ingestRelation(ctx, querier, schema, record, cache)
			if err != nil {
				s.recordError(result, idx, err)
				continue
			}
			if created {
				result.EdgesCreated++
				s.count("edge")
			}
			continue
		}

		_, created, err := s.UpsertNode(ctx, investigationID, record)
		if err != nil {
			s.recordError(result, idx, err)
			continue
		}
		if created {
			result.NodesCreated++
			s.count("node")
		}
	}

	s.logger.InfoWithFields("Ingested FTM records",
		logging.Field("investigation_id", investigationID),
		logging.Field("processed", result.Processed),
		logging.Field("nodes_created", result.NodesCreated),
		logging.Field("edges_created", result.EdgesCreated),
		logging.Field("errors", len(result.Errors)))
	return result, nil
}

// ingestRelation resolves a relation record's endpoints and upserts the
// edge. The resolved ids overwrite the endpoint slot values.
func (s *Service) ingestRelation(ctx context.Context, querier graph.Querier, schema *ftm.Schema, record Record, cache map[string]string) (bool, error) {
	props := NormalizeAliases(schema.Name, record.Properties)
	endpoints, ok := Endpoints(schema, props)
	if !ok {
		return false, errUnresolvedEndpoints
	}

	sourceID, err := s.ResolveReference(ctx, querier, endpoints.SourceRef, cache)
	if err != nil {
		return false, err
	}
	targetID, err := s.ResolveReference(ctx, querier, endpoints.TargetRef, cache)
	if err != nil {
		return false, err
	}
	if sourceID == "" || targetID == "" {
		return false, errUnresolvedEndpoints
	}

	props[endpoints.SourceSlot] = []string{sourceID}
	props[endpoints.TargetSlot] = []string{targetID}
	if err := s.catalog.Validate(schema.Name, props); err != nil {
		return false, err
	}

	edgeID := strings.TrimSpace(record.ID)
	if edgeID == "" {
		edgeID = uuid.NewString()
	}
	return s.UpsertEdge(ctx, querier, EdgeCandidate{
		ID:         edgeID,
		Schema:     schema.Name,
		SourceID:   sourceID,
		TargetID:   targetID,
		Properties: props,
	})
}

// UpsertNode creates an entity, falling back to a property update when
// the id is already taken. It returns the stored entity and whether it
// was newly created.
func (s *Service) UpsertNode(ctx context.Context, investigationID string, record Record) (*models.Entity, bool, error) {
	entity, err := s.entities.Create(ctx, investigationID, models.EntityCreate{
		ID:         record.ID,
		Schema:     record.Schema,
		Properties: record.Properties,
	})
	if err == nil {
		return entity, true, nil
	}
	if !rejectedPayload(err) {
		return nil, false, err
	}
	if strings.TrimSpace(record.ID) == "" {
		// A generated id cannot collide; the payload itself is bad.
		return nil, false, err
	}

	updated, updateErr := s.entities.Update(ctx, investigationID, record.ID, models.EntityUpdate{
		Properties: record.Properties,
	})
	if updateErr != nil {
		return nil, false, updateErr
	}
	if updated == nil {
		return nil, false, err
	}
	return updated, false, nil
}

// EdgeCandidate is a fully resolved relation ready to be written
type EdgeCandidate struct {
	ID         string
	Schema     string
	SourceID   string
	TargetID   string
	Properties ftm.Properties
}

// UpsertEdge merges an edge by id between two existing entities and
// reports whether it was newly created rather than matched. Missing
// endpoint nodes fail the merge.
func (s *Service) UpsertEdge(ctx context.Context, querier graph.Querier, candidate EdgeCandidate) (bool, error) {
	result, err := querier.Query(ctx,
		"MATCH (a:Entity {id: $source_id}), (b:Entity {id: $target_id}) "+
			"MERGE (a)-[r:"+graph.RelationType(candidate.Schema)+" {id: $edge_id}]->(b) "+
			"SET r.schema = $schema "+
			"SET r += $properties "+
			"RETURN r",
		map[string]interface{}{
			"source_id":  candidate.SourceID,
			"target_id":  candidate.TargetID,
			"edge_id":    candidate.ID,
			"schema":     candidate.Schema,
			"properties": graph.StorageProperties(candidate.Properties),
		})
	if err != nil {
		return false, err
	}
	if result.Empty() {
		return false, fmt.Errorf("could not create edge (%s -> %s)", candidate.SourceID, candidate.TargetID)
	}
	return result.Stats.RelationshipsCreated > 0, nil
}

// ResolveReference resolves an endpoint reference to an entity id: by
// exact id first, then by case-insensitive name match. The cache maps
// casefolded references to ids resolved earlier in the batch and wins
// over graph lookups. Returns "" when nothing matches.
func (s *Service) ResolveReference(ctx context.Context, querier graph.Querier, reference string, cache map[string]string) (string, error) {
	ref := strings.TrimSpace(reference)
	if ref == "" {
		return "", nil
	}
	folded := strings.ToLower(ref)
	if id, ok := cache[folded]; ok {
		return id, nil
	}

	byID, err := querier.Query(ctx,
		"MATCH (n:Entity {id: $entity_id}) RETURN n.id LIMIT 1",
		map[string]interface{}{"entity_id": ref})
	if err != nil {
		return "", err
	}
	if id := firstID(byID); id != "" {
		cache[folded] = id
		return id, nil
	}

	byName, err := querier.Query(ctx,
		"MATCH (n:Entity) "+
			"WHERE any(name IN coalesce(n._name, []) WHERE toLower(name) = toLower($name)) "+
			"RETURN n.id LIMIT 1",
		map[string]interface{}{"name": ref})
	if err != nil {
		return "", err
	}
	if id := firstID(byName); id != "" {
		cache[folded] = id
		return id, nil
	}
	return "", nil
}

// NormalizeAliases copies alias slot values onto the canonical endpoint
// slots of the named relation schema. Canonical values always win.
func NormalizeAliases(schemaName string, props ftm.Properties) ftm.Properties {
	aliases := slotAliases[schemaName]
	if len(aliases) == 0 {
		return props
	}
	normalized := make(ftm.Properties, len(props))
	for key, values := range props {
		normalized[key] = values
	}
	for alias, canonical := range aliases {
		if len(normalized[alias]) > 0 && len(normalized[canonical]) == 0 {
			normalized[canonical] = normalized[alias]
		}
	}
	return normalized
}

// EndpointPair names the slots a relation's endpoints were found in and
// carries the first reference value of each.
type EndpointPair struct {
	SourceSlot string
	TargetSlot string
	SourceRef  string
	TargetRef  string
}

// Endpoints finds the first slot pair with values on both sides. The
// schema's own slots are tried before the generic pairs.
func Endpoints(schema *ftm.Schema, props ftm.Properties) (EndpointPair, bool) {
	pairs := make([][2]string, 0, 2+len(genericEndpointPairs))
	if schema.Edge != nil {
		pairs = append(pairs, [2]string{schema.Edge.Source, schema.Edge.Target})
		pairs = append(pairs, schema.Edge.Alternates...)
	}
	pairs = append(pairs, genericEndpointPairs...)

	for _, pair := range pairs {
		left, right := props[pair[0]], props[pair[1]]
		if len(left) > 0 && len(right) > 0 {
			return EndpointPair{
				SourceSlot: pair[0],
				TargetSlot: pair[1],
				SourceRef:  left[0],
				TargetRef:  right[0],
			}, true
		}
	}
	return EndpointPair{}, false
}

func (s *Service) recordError(result *models.IngestResult, idx int, err error) {
	result.Errors = append(result.Errors, fmt.Sprintf("record %d: %v", idx, err))
	s.count("error")
}

func (s *Service) count(kind string) {
	if s.metrics == nil {
		return
	}
	s.metrics.IngestRecordsTotal.WithLabelValues(kind).Inc()
}

// rejectedPayload reports whether the create failed on the payload
// itself rather than on the graph.
func rejectedPayload(err error) bool {
	var schemaErr *ftm.SchemaError
	return models.IsValidationError(err) || errors.As(err, &schemaErr)
}

func firstID(result *graph.QueryResult) string {
	row := result.First()
	if len(row) == 0 || row[0] == nil {
		return ""
	}
	return fmt.Sprintf("%v", row[0])
}
