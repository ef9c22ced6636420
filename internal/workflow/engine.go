// Package workflow runs the durable document extraction pipeline:
// download, parse, extract, persist. Each step's output is recorded in
// the relational store before the next step runs, so an interrupted
// workflow resumes from its first incomplete step instead of starting
// over.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/osinto/casefile/internal/docparse"
	"github.com/osinto/casefile/internal/extract"
	"github.com/osinto/casefile/internal/ftm"
	"github.com/osinto/casefile/internal/ingest"
	"github.com/osinto/casefile/internal/logging"
	"github.com/osinto/casefile/internal/metrics"
	"github.com/osinto/casefile/internal/models"
)

// queueSize bounds the job channel; Enqueue blocks when it is full.
const queueSize = 128

// finalWriteTimeout bounds bookkeeping writes that must land even while
// the engine is shutting down.
const finalWriteTimeout = 5 * time.Second

// ObjectStore is the slice of the document store the workflow needs.
type ObjectStore interface {
	Download(ctx context.Context, investigationID, key string) ([]byte, error)
	ObjectURL(investigationID, key string) string
}

// Extractor turns parsed text into entity candidates.
type Extractor interface {
	Extract(ctx context.Context, text, documentType string) ([]extract.Candidate, error)
}

// EntityStore is the slice of the entity service used by the persist step.
type EntityStore interface {
	Get(ctx context.Context, investigationID, entityID string) (*models.Entity, error)
	Update(ctx context.Context, investigationID, entityID string, payload models.EntityUpdate) (*models.Entity, error)
}

// Deps wires the engine's collaborators.
type Deps struct {
	Store     Storage
	Objects   ObjectStore
	Extractor Extractor
	Entities  EntityStore
	Ingestor  *ingest.Service
	Graphs    ingest.GraphSource
	Catalog   *ftm.Catalog
	Metrics   *metrics.Metrics
}

// Engine schedules and executes extraction workflows on a single worker
// goroutine. It implements lifecycle.Component.
type Engine struct {
	store     Storage
	objects   ObjectStore
	extractor Extractor
	entities  EntityStore
	ingestor  *ingest.Service
	graphs    ingest.GraphSource
	catalog   *ftm.Catalog
	metrics   *metrics.Metrics
	logger    *logging.Logger

	jobs       chan Job
	workerWG   sync.WaitGroup
	producerWG sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewEngine creates a workflow engine. Start must be called before Enqueue.
func NewEngine(deps Deps) *Engine {
	return &Engine{
		store:     deps.Store,
		objects:   deps.Objects,
		extractor: deps.Extractor,
		entities:  deps.Entities,
		ingestor:  deps.Ingestor,
		graphs:    deps.Graphs,
		catalog:   deps.Catalog,
		metrics:   deps.Metrics,
		logger:    logging.GetLogger("workflow.engine"),
	}
}

// Start implements lifecycle.Component. It launches the worker and
// re-queues workflows interrupted by an earlier shutdown.
func (e *Engine) Start(ctx context.Context) error {
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.jobs = make(chan Job, queueSize)

	e.workerWG.Add(1)
	go e.worker()

	pending, err := e.store.PendingJobs(ctx)
	if err != nil {
		return fmt.Errorf("loading interrupted workflows: %w", err)
	}
	if len(pending) > 0 {
		e.logger.Info("Re-queueing %d interrupted workflows", len(pending))
		e.producerWG.Add(1)
		go func() {
			defer e.producerWG.Done()
			for _, job := range pending {
				select {
				case e.jobs <- job:
				case <-e.ctx.Done():
					return
				}
			}
		}()
	}

	e.logger.Info("Workflow engine started with queue size %d", queueSize)
	return nil
}

// Stop implements lifecycle.Component. Queued jobs that never ran are
// marked CANCELLED.
func (e *Engine) Stop(ctx context.Context) error {
	if e.cancel == nil {
		return nil
	}
	e.cancel()
	e.producerWG.Wait()
	close(e.jobs)

	done := make(chan struct{})
	go func() {
		e.workerWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		e.logger.Info("Workflow engine stopped")
		return nil
	case <-ctx.Done():
		return errors.New("workflow engine shutdown timeout")
	}
}

// Name implements lifecycle.Component.
func (e *Engine) Name() string {
	return "Workflow Engine"
}

// Enqueue records a new workflow and schedules it, returning the workflow
// id immediately. The send blocks when the queue is full, giving natural
// backpressure to uploads.
func (e *Engine) Enqueue(ctx context.Context, job Job) (string, error) {
	if e.jobs == nil {
		return "", errors.New("workflow engine not started")
	}
	if job.WorkflowID == "" {
		job.WorkflowID = uuid.NewString()
	}
	if err := e.store.CreateWorkflow(ctx, job); err != nil {
		return "", err
	}

	select {
	case e.jobs <- job:
		e.setQueueDepth()
		return job.WorkflowID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-e.ctx.Done():
		return "", errors.New("workflow engine stopped")
	}
}

// Status reports a workflow's state. Successful workflows carry the persist
// step summary as the result.
func (e *Engine) Status(ctx context.Context, workflowID string) (*models.ExtractionStatus, error) {
	wf, err := e.store.Get(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if wf == nil {
		return &models.ExtractionStatus{
			WorkflowID: workflowID,
			Status:     StatusNotFound,
			Error:      "Workflow not found",
		}, nil
	}

	status := &models.ExtractionStatus{
		WorkflowID: workflowID,
		Status:     wf.Status,
		Error:      wf.Error,
	}
	if wf.Status == StatusSuccess {
		raw, ok, err := e.store.StepOutput(ctx, workflowID, StepPersist)
		if err != nil {
			return nil, err
		}
		if ok {
			var result map[string]interface{}
			if err := json.Unmarshal(raw, &result); err == nil {
				status.Result = result
			}
		}
	}
	return status, nil
}

func (e *Engine) worker() {
	defer e.workerWG.Done()
	for {
		select {
		case job, ok := <-e.jobs:
			if !ok {
				return
			}
			e.setQueueDepth()
			if e.ctx.Err() != nil {
				e.markCancelled(job)
				continue
			}
			e.run(job)
		case <-e.ctx.Done():
			for job := range e.jobs {
				e.markCancelled(job)
			}
			return
		}
	}
}

func (e *Engine) run(job Job) {
	if err := e.store.SetStatus(e.ctx, job.WorkflowID, StatusRunning, ""); err != nil {
		e.logger.Error("Failed to mark workflow %s running: %v", job.WorkflowID, err)
	}

	result, err := e.execute(e.ctx, job)
	switch {
	case err == nil:
		e.setFinal(job.WorkflowID, StatusSuccess, "")
		e.logger.Info("Workflow %s finished: %d nodes, %d edges, %d errors",
			job.WorkflowID, result.NodesCreated, result.EdgesCreated, len(result.Errors))
	case e.ctx.Err() != nil:
		e.setFinal(job.WorkflowID, StatusCancelled, "engine shut down during execution")
	default:
		e.setFinal(job.WorkflowID, StatusError, err.Error())
		e.logger.Error("Workflow %s failed: %v", job.WorkflowID, err)
	}
}

// execute walks the step chain. Completed steps replay their recorded
// output; the first incomplete step resumes real work.
func (e *Engine) execute(ctx context.Context, job Job) (*PersistResult, error) {
	content, err := runStep(e, ctx, job.WorkflowID, StepDownload, func(ctx context.Context) ([]byte, error) {
		return e.objects.Download(ctx, job.InvestigationID, job.StorageKey)
	})
	if err != nil {
		return nil, err
	}

	parsed, err := runStep(e, ctx, job.WorkflowID, StepParse, func(ctx context.Context) (*docparse.Parsed, error) {
		return docparse.Parse(content, job.Filename, job.ContentType)
	})
	if err != nil {
		return nil, err
	}

	candidates, err := runStep(e, ctx, job.WorkflowID, StepExtract, func(ctx context.Context) ([]extract.Candidate, error) {
		return e.extractor.Extract(ctx, parsed.Content, parsed.DocumentType)
	})
	if err != nil {
		return nil, err
	}

	return runStep(e, ctx, job.WorkflowID, StepPersist, func(ctx context.Context) (*PersistResult, error) {
		return e.persist(ctx, job, parsed, candidates)
	})
}

// runStep returns the step's recorded output when it already completed,
// otherwise runs fn and records the output before returning it.
func runStep[T any](e *Engine, ctx context.Context, workflowID, step string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	raw, ok, err := e.store.StepOutput(ctx, workflowID, step)
	if err != nil {
		return zero, err
	}
	if ok {
		var out T
		if err := json.Unmarshal(raw, &out); err != nil {
			return zero, fmt.Errorf("replaying %s output: %w", step, err)
		}
		return out, nil
	}

	start := time.Now()
	out, err := fn(ctx)
	e.observeStep(step, err, time.Since(start))
	if err != nil {
		e.recordFailure(workflowID, step, err)
		return zero, fmt.Errorf("%s step: %w", step, err)
	}
	if err := e.store.RecordStep(ctx, workflowID, step, out); err != nil {
		return zero, err
	}
	return out, nil
}

// recordFailure writes the step error with a fresh context so shutdown
// cancellation cannot lose it.
func (e *Engine) recordFailure(workflowID, step string, stepErr error) {
	ctx, cancel := context.WithTimeout(context.Background(), finalWriteTimeout)
	defer cancel()
	if err := e.store.RecordStepError(ctx, workflowID, step, stepErr); err != nil {
		e.logger.Error("Failed to record %s failure for workflow %s: %v", step, workflowID, err)
	}
}

func (e *Engine) setFinal(workflowID, status, msg string) {
	ctx, cancel := context.WithTimeout(context.Background(), finalWriteTimeout)
	defer cancel()
	if err := e.store.SetStatus(ctx, workflowID, status, msg); err != nil {
		e.logger.Error("Failed to mark workflow %s %s: %v", workflowID, status, err)
	}
}

func (e *Engine) markCancelled(job Job) {
	e.setFinal(job.WorkflowID, StatusCancelled, "engine shut down before the job ran")
}

func (e *Engine) observeStep(step string, err error, elapsed time.Duration) {
	if e.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	e.metrics.WorkflowStepDuration.WithLabelValues(step, status).Observe(elapsed.Seconds())
}

func (e *Engine) setQueueDepth() {
	if e.metrics == nil {
		return
	}
	e.metrics.WorkflowsQueued.Set(float64(len(e.jobs)))
}
