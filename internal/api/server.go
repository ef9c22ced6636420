// Package api exposes the investigation backend over HTTP: investigation
// and entity CRUD, file ingestion, graph pages, notebooks, schema listings,
// enrichment, chat and the MCP endpoint.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/osinto/casefile/internal/ftm"
	"github.com/osinto/casefile/internal/logging"
	"github.com/osinto/casefile/internal/metrics"
	"github.com/osinto/casefile/internal/models"
	"github.com/osinto/casefile/internal/workflow"
)

// InvestigationService is the investigation CRUD surface the API exposes.
type InvestigationService interface {
	Create(ctx context.Context, payload models.InvestigationCreate) (*models.Investigation, error)
	List(ctx context.Context) (*models.InvestigationList, error)
	Get(ctx context.Context, investigationID string) (*models.Investigation, error)
	Delete(ctx context.Context, investigationID string) error
}

// EntityService is the entity lifecycle surface the API exposes.
type EntityService interface {
	Create(ctx context.Context, investigationID string, payload models.EntityCreate) (*models.Entity, error)
	List(ctx context.Context, investigationID, search string) ([]models.Entity, error)
	Get(ctx context.Context, investigationID, entityID string) (*models.Entity, error)
	Update(ctx context.Context, investigationID, entityID string, payload models.EntityUpdate) (*models.Entity, error)
	Delete(ctx context.Context, investigationID, entityID string) (bool, error)
	Expand(ctx context.Context, investigationID, entityID string) (*models.EntityExpand, error)
	FindDuplicates(ctx context.Context, investigationID, schema string, threshold float64, limit int) ([]models.DuplicateCandidate, error)
	MergeEntities(ctx context.Context, investigationID string, sourceIDs []string, targetID string, mergedProperties ftm.Properties) (*models.MergeEntitiesResponse, error)
}

// RecordIngestor ingests structured FTM record files synchronously.
type RecordIngestor interface {
	IngestFile(ctx context.Context, investigationID string, data []byte, filename string) (*models.IngestResult, error)
}

// DocumentStore uploads raw documents for asynchronous extraction.
type DocumentStore interface {
	Upload(ctx context.Context, investigationID, documentID, filename string, content []byte, contentType string) (string, error)
	ObjectURL(investigationID, key string) string
}

// WorkflowEngine schedules extraction workflows and reports their state.
type WorkflowEngine interface {
	Enqueue(ctx context.Context, job workflow.Job) (string, error)
	Status(ctx context.Context, workflowID string) (*models.ExtractionStatus, error)
}

// GraphPager serves paginated graph snapshots.
type GraphPager interface {
	GetGraphPage(ctx context.Context, investigationID string, skip, limit int) (*models.GraphPage, error)
}

// NotebookService loads and saves investigation notebooks.
type NotebookService interface {
	GetOrCreate(ctx context.Context, investigationID string) (*models.NotebookDocument, error)
	Save(ctx context.Context, investigationID string, update models.NotebookUpdate) (*models.NotebookDocument, error)
}

// EnrichmentService queries the sanctions index and links adjacent entities.
type EnrichmentService interface {
	Search(ctx context.Context, query string, limit int) (*models.YenteSearchResponse, error)
	Link(ctx context.Context, investigationID, entityID string) (*models.YenteLinkResponse, error)
}

// ChatAgent answers investigation-scoped chat turns.
type ChatAgent interface {
	Chat(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error)
}

// Pinger reports whether the graph store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds the server's listen address and CORS policy.
type Config struct {
	ListenAddr  string
	CORSOrigins []string
}

// Deps bundles the services the HTTP surface is built on. Catalog is
// required; Chat, MCP and Registry may be nil, disabling their endpoints.
type Deps struct {
	Investigations InvestigationService
	Entities       EntityService
	Ingestor       RecordIngestor
	Objects        DocumentStore
	Engine         WorkflowEngine
	Graphs         GraphPager
	Notebooks      NotebookService
	Catalog        *ftm.Catalog
	Enricher       EnrichmentService
	Chat           ChatAgent
	Health         Pinger
	Metrics        *metrics.Metrics
	Registry       *prometheus.Registry
	MCP            *server.MCPServer
}

// Server handles HTTP API requests. It implements lifecycle.Component.
type Server struct {
	cfg    Config
	server *http.Server
	router *http.ServeMux
	logger *logging.Logger

	investigations InvestigationService
	entities       EntityService
	ingestor       RecordIngestor
	objects        DocumentStore
	engine         WorkflowEngine
	graphs         GraphPager
	notebooks      NotebookService
	catalog        *ftm.Catalog
	enricher       EnrichmentService
	chat           ChatAgent
	health         Pinger
	metrics        *metrics.Metrics
	registry       *prometheus.Registry
	mcp            *server.MCPServer
}

// NewServer assembles the API server: routes, CORS and request metrics.
func NewServer(cfg Config, deps Deps) *Server {
	s := &Server{
		cfg:            cfg,
		logger:         logging.GetLogger("api"),
		router:         http.NewServeMux(),
		investigations: deps.Investigations,
		entities:       deps.Entities,
		ingestor:       deps.Ingestor,
		objects:        deps.Objects,
		engine:         deps.Engine,
		graphs:         deps.Graphs,
		notebooks:      deps.Notebooks,
		catalog:        deps.Catalog,
		enricher:       deps.Enricher,
		chat:           deps.Chat,
		health:         deps.Health,
		metrics:        deps.Metrics,
		registry:       deps.Registry,
		mcp:            deps.MCP,
	}

	s.registerRoutes()
	s.configureHTTPServer()
	return s
}

// configureHTTPServer wraps the router in middleware and sets timeouts.
// Uploads and synchronous FTM ingests can run for minutes on large files.
func (s *Server) configureHTTPServer() {
	s.server = &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s.corsMiddleware(s.router),
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
}

// Handler returns the assembled HTTP handler including middleware.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start implements lifecycle.Component. The listener runs until Stop.
func (s *Server) Start(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error: %v", err)
		}
	}()

	s.logger.Info("API server listening on %s", s.cfg.ListenAddr)
	return nil
}

// Stop implements lifecycle.Component. In-flight requests get a grace
// period before the listener is torn down.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")

	done := make(chan error, 1)
	go func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		done <- s.server.Shutdown(shutdownCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			s.logger.Error("HTTP server shutdown error: %v", err)
			return err
		}
		s.logger.Info("API server stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("API server shutdown timeout")
		return ctx.Err()
	}
}

// Name implements lifecycle.Component.
func (s *Server) Name() string {
	return "API Server"
}
