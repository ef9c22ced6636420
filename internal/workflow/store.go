package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Workflow statuses visible through the status endpoint.
const (
	StatusPending   = "PENDING"
	StatusRunning   = "RUNNING"
	StatusSuccess   = "SUCCESS"
	StatusError     = "ERROR"
	StatusCancelled = "CANCELLED"
	StatusNotFound  = "NOT_FOUND"
)

// Step names in execution order.
const (
	StepDownload = "download"
	StepParse    = "parse"
	StepExtract  = "extract"
	StepPersist  = "persist"
)

// Job identifies one document extraction run.
type Job struct {
	WorkflowID      string
	InvestigationID string
	DocumentID      string
	StorageKey      string
	Filename        string
	ContentType     string
}

// Workflow is a stored workflow row.
type Workflow struct {
	Job
	Status    string
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Storage persists workflow and step state. Step outputs recorded here are
// what make workflows replayable after a crash.
type Storage interface {
	CreateWorkflow(ctx context.Context, job Job) error
	SetStatus(ctx context.Context, workflowID, status, errMsg string) error
	Get(ctx context.Context, workflowID string) (*Workflow, error)
	PendingJobs(ctx context.Context) ([]Job, error)
	StepOutput(ctx context.Context, workflowID, step string) (json.RawMessage, bool, error)
	RecordStep(ctx context.Context, workflowID, step string, output any) error
	RecordStepError(ctx context.Context, workflowID, step string, stepErr error) error
}

// Store is the PostgreSQL-backed Storage implementation. It shares the
// relstore pool; the workflows and workflow_steps tables come from the
// relstore migrations.
type Store struct {
	db *sql.DB
}

// NewStore creates a workflow store over an open database pool.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateWorkflow inserts a new workflow row in PENDING state.
func (s *Store) CreateWorkflow(ctx context.Context, job Job) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workflows (id, investigation_id, document_id, storage_key, filename, content_type, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		job.WorkflowID, job.InvestigationID, job.DocumentID, job.StorageKey, job.Filename, job.ContentType, StatusPending)
	if err != nil {
		return fmt.Errorf("creating workflow %s: %w", job.WorkflowID, err)
	}
	return nil
}

// SetStatus updates a workflow's status and error message.
func (s *Store) SetStatus(ctx context.Context, workflowID, status, errMsg string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE workflows SET status = $2, error = $3, updated_at = NOW() WHERE id = $1`,
		workflowID, status, errMsg)
	if err != nil {
		return fmt.Errorf("updating workflow %s status: %w", workflowID, err)
	}
	return nil
}

// Get returns the stored workflow, or nil when the id is unknown.
func (s *Store) Get(ctx context.Context, workflowID string) (*Workflow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, investigation_id, document_id, storage_key, filename, content_type, status, error, created_at, updated_at
		FROM workflows WHERE id = $1`, workflowID)

	var wf Workflow
	err := row.Scan(&wf.WorkflowID, &wf.InvestigationID, &wf.DocumentID, &wf.StorageKey,
		&wf.Filename, &wf.ContentType, &wf.Status, &wf.Error, &wf.CreatedAt, &wf.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading workflow %s: %w", workflowID, err)
	}
	return &wf, nil
}

// PendingJobs returns workflows that never finished, oldest first. The
// engine re-queues them on startup.
func (s *Store) PendingJobs(ctx context.Context) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, investigation_id, document_id, storage_key, filename, content_type
		FROM workflows WHERE status IN ($1, $2) ORDER BY created_at`,
		StatusPending, StatusRunning)
	if err != nil {
		return nil, fmt.Errorf("listing pending workflows: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var job Job
		if err := rows.Scan(&job.WorkflowID, &job.InvestigationID, &job.DocumentID,
			&job.StorageKey, &job.Filename, &job.ContentType); err != nil {
			return nil, fmt.Errorf("scanning pending workflow: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// StepOutput returns the recorded output of a completed step. The second
// return is false when the step has not completed successfully yet.
func (s *Store) StepOutput(ctx context.Context, workflowID, step string) (json.RawMessage, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT output FROM workflow_steps
		WHERE workflow_id = $1 AND step_name = $2 AND status = $3`,
		workflowID, step, StatusSuccess)

	var raw []byte
	err := row.Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("loading %s output for workflow %s: %w", step, workflowID, err)
	}
	return raw, true, nil
}

// RecordStep stores a step's output as JSON, replacing any earlier attempt.
func (s *Store) RecordStep(ctx context.Context, workflowID, step string, output any) error {
	payload, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("encoding %s output: %w", step, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workflow_steps (workflow_id, step_name, status, output, finished_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (workflow_id, step_name)
		DO UPDATE SET status = EXCLUDED.status, output = EXCLUDED.output, error = '', finished_at = NOW()`,
		workflowID, step, StatusSuccess, payload)
	if err != nil {
		return fmt.Errorf("recording %s output for workflow %s: %w", step, workflowID, err)
	}
	return nil
}

// RecordStepError marks a step as failed, keeping the failure message for
// inspection.
func (s *Store) RecordStepError(ctx context.Context, workflowID, step string, stepErr error) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workflow_steps (workflow_id, step_name, status, error, finished_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (workflow_id, step_name)
		DO UPDATE SET status = EXCLUDED.status, error = EXCLUDED.error, finished_at = NOW()`,
		workflowID, step, StatusError, stepErr.Error())
	if err != nil {
		return fmt.Errorf("recording %s failure for workflow %s: %w", step, workflowID, err)
	}
	return nil
}
