// Package notebook persists per-investigation canvas documents in PostgreSQL
// with optimistic concurrency control.
package notebook

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/osinto/casefile/internal/logging"
	"github.com/osinto/casefile/internal/models"
)

// ErrVersionConflict is returned when a save carries a stale version.
var ErrVersionConflict = errors.New("notebook version conflict")

// Service reads and writes investigation notebooks.
type Service struct {
	db     *sql.DB
	logger *logging.Logger
}

// NewService creates a notebook service on top of the shared relational store.
func NewService(db *sql.DB) *Service {
	return &Service{
		db:     db,
		logger: logging.GetLogger("notebook"),
	}
}

// GetOrCreate fetches the notebook for an investigation, creating an empty
// one if none exists yet.
func (s *Service) GetOrCreate(ctx context.Context, investigationID string) (*models.NotebookDocument, error) {
	doc, err := s.get(ctx, investigationID)
	if err != nil {
		return nil, err
	}
	if doc != nil {
		return doc, nil
	}
	return s.createDefault(ctx, investigationID)
}

// Save stores a new canvas revision. The update only applies when the given
// version matches the stored one; otherwise ErrVersionConflict is returned.
func (s *Service) Save(ctx context.Context, investigationID string, update models.NotebookUpdate) (*models.NotebookDocument, error) {
	canvas, err := json.Marshal(update.CanvasDoc)
	if err != nil {
		return nil, fmt.Errorf("encoding canvas: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE investigation_notebooks
		SET canvas_doc = $1::jsonb,
		    version = version + 1,
		    updated_at = NOW()
		WHERE investigation_id = $2
		  AND version = $3
		RETURNING investigation_id, canvas_doc, version, created_at, updated_at
	`, canvas, investigationID, update.Version)

	doc, err := scanDocument(row)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("saving notebook: %w", err)
	}

	// Either the notebook does not exist yet, or the version is stale.
	existing, err := s.get(ctx, investigationID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		created, err := s.createDefault(ctx, investigationID)
		if err != nil {
			return nil, err
		}
		if created.Version != update.Version {
			return nil, ErrVersionConflict
		}
		return s.Save(ctx, investigationID, update)
	}
	return nil, ErrVersionConflict
}

// Delete removes the notebook for an investigation. Missing rows are fine.
func (s *Service) Delete(ctx context.Context, investigationID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM investigation_notebooks WHERE investigation_id = $1", investigationID)
	if err != nil {
		return fmt.Errorf("deleting notebook: %w", err)
	}
	return nil
}

func (s *Service) get(ctx context.Context, investigationID string) (*models.NotebookDocument, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT investigation_id, canvas_doc, version, created_at, updated_at
		FROM investigation_notebooks
		WHERE investigation_id = $1
	`, investigationID)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading notebook: %w", err)
	}
	return doc, nil
}

func (s *Service) createDefault(ctx context.Context, investigationID string) (*models.NotebookDocument, error) {
	canvas, err := json.Marshal(models.DefaultCanvas())
	if err != nil {
		return nil, fmt.Errorf("encoding canvas: %w", err)
	}

	// ON CONFLICT keeps concurrent creators from racing; whoever loses reads
	// the winner's row below.
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO investigation_notebooks (id, investigation_id, canvas_doc, version)
		VALUES ($1, $2, $3::jsonb, 1)
		ON CONFLICT (investigation_id) DO NOTHING
	`, uuid.NewString(), investigationID, canvas)
	if err != nil {
		return nil, fmt.Errorf("creating notebook: %w", err)
	}

	doc, err := s.get(ctx, investigationID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, errors.New("unable to create notebook")
	}
	s.logger.Debug("Created notebook for investigation %s", investigationID)
	return doc, nil
}

// scanDocument reads one notebook row from a QueryRow result.
func scanDocument(row *sql.Row) (*models.NotebookDocument, error) {
	var doc models.NotebookDocument
	var canvas []byte

	err := row.Scan(&doc.InvestigationID, &canvas, &doc.Version, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(canvas, &doc.CanvasDoc); err != nil {
		return nil, fmt.Errorf("decoding canvas: %w", err)
	}
	return &doc, nil
}
