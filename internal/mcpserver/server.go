// Package mcpserver exposes the investigation read surface as MCP tools
// so external assistants can browse casefiles over the streamable HTTP
// transport mounted by the API server.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/osinto/casefile/internal/models"
)

// InvestigationLister lists investigations for the list_investigations tool.
type InvestigationLister interface {
	List(ctx context.Context) (*models.InvestigationList, error)
}

// EntityReader is the entity read surface behind the entity tools.
type EntityReader interface {
	List(ctx context.Context, investigationID, search string) ([]models.Entity, error)
	Get(ctx context.Context, investigationID, entityID string) (*models.Entity, error)
	Expand(ctx context.Context, investigationID, entityID string) (*models.EntityExpand, error)
}

// GraphReader pages investigation graphs for the investigation_graph tool.
type GraphReader interface {
	GetGraphPage(ctx context.Context, investigationID string, skip, limit int) (*models.GraphPage, error)
}

// toolFunc is the uniform execution shape adapted onto mcp-go handlers.
type toolFunc func(ctx context.Context, input json.RawMessage) (interface{}, error)

// Server wires the read-only investigation tools onto an mcp-go server.
type Server struct {
	mcpServer      *server.MCPServer
	investigations InvestigationLister
	entities       EntityReader
	graphs         GraphReader
}

// New creates the MCP server and registers all tools.
func New(version string, investigations InvestigationLister, entities EntityReader, graphs GraphReader) *Server {
	mcpServer := server.NewMCPServer(
		"Casefile MCP Server",
		version,
		server.WithToolCapabilities(false),
		server.WithLogging(),
	)

	s := &Server{
		mcpServer:      mcpServer,
		investigations: investigations,
		entities:       entities,
		graphs:         graphs,
	}
	s.registerTools()
	return s
}

// MCPServer returns the underlying mcp-go server for transport mounting.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTool(name, description string, inputSchema map[string]interface{}, fn toolFunc) {
	schemaJSON, err := json.Marshal(inputSchema)
	if err != nil {
		// Schemas are static literals, a marshal failure is a programming error.
		panic(fmt.Sprintf("marshal schema for tool %s: %v", name, err))
	}

	tool := mcp.NewToolWithRawSchema(name, description, schemaJSON)
	s.mcpServer.AddTool(tool, toolHandler(fn))
}

// toolHandler adapts a toolFunc onto the mcp-go handler contract. Tool
// failures become error results, not protocol errors.
func toolHandler(fn toolFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := json.Marshal(request.Params.Arguments)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid arguments: %v", err)), nil
		}

		result, err := fn(ctx, args)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Tool execution failed: %v", err)), nil
		}

		resultJSON, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to format result: %v", err)), nil
		}
		return mcp.NewToolResultText(string(resultJSON)), nil
	}
}
