package api

import (
	"net/http"

	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes wires every endpoint onto the router.
func (s *Server) registerRoutes() {
	// Investigations.
	s.handle("POST /api/investigations", s.handleCreateInvestigation)
	s.handle("GET /api/investigations", s.handleListInvestigations)
	s.handle("GET /api/investigations/{id}", s.handleGetInvestigation)
	s.handle("DELETE /api/investigations/{id}", s.handleDeleteInvestigation)

	// Entities.
	s.handle("POST /api/investigations/{id}/entities", s.handleCreateEntity)
	s.handle("GET /api/investigations/{id}/entities", s.handleListEntities)
	s.handle("GET /api/investigations/{id}/entities/deduplicate/candidates", s.handleFindDuplicates)
	s.handle("POST /api/investigations/{id}/entities/merge", s.handleMergeEntities)
	s.handle("GET /api/investigations/{id}/entities/{entityID}", s.handleGetEntity)
	s.handle("PUT /api/investigations/{id}/entities/{entityID}", s.handleUpdateEntity)
	s.handle("DELETE /api/investigations/{id}/entities/{entityID}", s.handleDeleteEntity)
	s.handle("GET /api/investigations/{id}/entities/{entityID}/expand", s.handleExpandEntity)

	// Ingestion and extraction workflows.
	s.handle("POST /api/investigations/{id}/ingest", s.handleIngest)
	s.handle("GET /api/investigations/{id}/ingest/{workflowID}/status", s.handleIngestStatus)

	// Graph pages.
	s.handle("GET /api/investigations/{id}/graph", s.handleGetGraph)

	// Notebooks.
	s.handle("GET /api/investigations/{id}/notebook", s.handleGetNotebook)
	s.handle("PUT /api/investigations/{id}/notebook", s.handleSaveNotebook)

	// Schema catalog.
	s.handle("GET /api/schema", s.handleListSchemata)
	s.handle("GET /api/schema/{name}", s.handleGetSchema)

	// Enrichment.
	s.handle("GET /api/enrich/yente", s.handleYenteSearch)
	s.handle("POST /api/enrich/yente/link/{id}/{entityID}", s.handleYenteLink)

	// Chat.
	s.handle("POST /api/chat", s.handleChat)

	// Health probes.
	s.handle("GET /healthz", s.handleHealthz)
	s.handle("GET /readyz", s.handleReadyz)

	if s.registry != nil {
		s.router.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	s.registerMCPHandler()

	// Everything else gets a JSON 404 instead of the default text page.
	s.handle("/", s.handleNotFound)
}

// registerMCPHandler mounts the MCP server on /v1/mcp when configured.
func (s *Server) registerMCPHandler() {
	if s.mcp == nil {
		return
	}
	httpServer := server.NewStreamableHTTPServer(s.mcp,
		server.WithEndpointPath("/v1/mcp"),
		server.WithStateLess(true),
	)
	s.router.Handle("/v1/mcp", httpServer)
	s.logger.Info("MCP endpoint registered at /v1/mcp")
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	WriteError(w, http.StatusNotFound, ErrorCodeNotFound, "Route not found")
}
