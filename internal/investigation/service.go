// Package investigation manages investigation lifecycles: metadata in
// the shared meta graph, one lazily created entity graph per
// investigation, and the document bucket tied to it.
package investigation

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/osinto/casefile/internal/graph"
	"github.com/osinto/casefile/internal/logging"
	"github.com/osinto/casefile/internal/models"
)

// maxNameLength bounds investigation names.
const maxNameLength = 255

// countConcurrency bounds the entity-count fan-in during List.
const countConcurrency = 8

// GraphStore is the slice of the graph store the service depends on.
type GraphStore interface {
	TouchInvestigation(ctx context.Context, investigationID string) error
	PutMeta(ctx context.Context, investigationID, name, description string) error
	GetMeta(ctx context.Context, investigationID string) (*graph.InvestigationMeta, error)
	ListMeta(ctx context.Context) ([]graph.InvestigationMeta, error)
	DeleteMeta(ctx context.Context, investigationID string) error
	DeleteInvestigation(ctx context.Context, investigationID string) error
	CountEntities(ctx context.Context, investigationID string) (int, error)
}

// BucketRemover tears down the document bucket of an investigation.
type BucketRemover interface {
	DeleteBucket(ctx context.Context, investigationID string) error
}

// Service manages investigations end to end.
type Service struct {
	graphs  GraphStore
	buckets BucketRemover
	logger  *logging.Logger
}

// NewService creates an investigation service. buckets may be nil when
// no object store is configured; Delete then skips bucket removal.
func NewService(graphs GraphStore, buckets BucketRemover) *Service {
	return &Service{
		graphs:  graphs,
		buckets: buckets,
		logger:  logging.GetLogger("investigation.service"),
	}
}

// Create registers a new investigation: a fresh UUID, a touched entity
// graph and a metadata node. The stored record is read back so the
// caller sees exactly what was persisted.
func (s *Service) Create(ctx context.Context, payload models.InvestigationCreate) (*models.Investigation, error) {
	if payload.Name == "" {
		return nil, models.NewValidationError("Investigation name is required")
	}
	if len(payload.Name) > maxNameLength {
		return nil, models.NewValidationError("Investigation name must be at most %d characters", maxNameLength)
	}

	investigationID := uuid.NewString()
	if err := s.graphs.TouchInvestigation(ctx, investigationID); err != nil {
		return nil, err
	}
	if err := s.graphs.PutMeta(ctx, investigationID, payload.Name, payload.Description); err != nil {
		return nil, err
	}

	meta, err := s.graphs.GetMeta(ctx, investigationID)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, models.NewNotFoundError("Investigation not found")
	}

	s.logger.Info("Created investigation %s (%q)", investigationID, payload.Name)
	record := fromMeta(*meta, 0)
	return &record, nil
}

// List returns all investigations, newest first, each carrying its
// current entity count. Counts are gathered concurrently with a bounded
// fan-in; a failing count logs a warning and reports zero rather than
// failing the listing.
func (s *Service) List(ctx context.Context) (*models.InvestigationList, error) {
	metas, err := s.graphs.ListMeta(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]models.Investigation, len(metas))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(countConcurrency)

	for i, meta := range metas {
		group.Go(func() error {
			count, err := s.graphs.CountEntities(groupCtx, meta.ID)
			if err != nil {
				s.logger.Warn("Counting entities for investigation %s failed: %v", meta.ID, err)
				count = 0
			}
			items[i] = fromMeta(meta, count)
			return nil
		})
	}
	// Workers always return nil; Wait only joins them.
	_ = group.Wait()

	return &models.InvestigationList{Items: items, Total: len(items)}, nil
}

// Get returns one investigation with its entity count.
func (s *Service) Get(ctx context.Context, investigationID string) (*models.Investigation, error) {
	meta, err := s.graphs.GetMeta(ctx, investigationID)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, models.NewNotFoundError("Investigation not found")
	}

	count, err := s.graphs.CountEntities(ctx, investigationID)
	if err != nil {
		s.logger.Warn("Counting entities for investigation %s failed: %v", investigationID, err)
		count = 0
	}

	record := fromMeta(*meta, count)
	return &record, nil
}

// Exists reports whether an investigation is registered.
func (s *Service) Exists(ctx context.Context, investigationID string) (bool, error) {
	meta, err := s.graphs.GetMeta(ctx, investigationID)
	if err != nil {
		return false, err
	}
	return meta != nil, nil
}

// Delete removes the metadata node, drops the entity graph and tears
// down the document bucket. Graph and bucket removal are idempotent;
// bucket errors are logged, not returned, so a half-torn-down store
// never wedges the investigation.
func (s *Service) Delete(ctx context.Context, investigationID string) error {
	meta, err := s.graphs.GetMeta(ctx, investigationID)
	if err != nil {
		return err
	}
	if meta == nil {
		return models.NewNotFoundError("Investigation not found")
	}

	if err := s.graphs.DeleteMeta(ctx, investigationID); err != nil {
		return err
	}
	if err := s.graphs.DeleteInvestigation(ctx, investigationID); err != nil {
		return err
	}

	if s.buckets != nil {
		if err := s.buckets.DeleteBucket(ctx, investigationID); err != nil {
			s.logger.Warn("Removing bucket for investigation %s failed: %v", investigationID, err)
		}
	}

	s.logger.Info("Deleted investigation %s", investigationID)
	return nil
}

func fromMeta(meta graph.InvestigationMeta, entityCount int) models.Investigation {
	return models.Investigation{
		ID:          meta.ID,
		Name:        meta.Name,
		Description: meta.Description,
		CreatedAt:   meta.CreatedAt,
		EntityCount: entityCount,
	}
}
