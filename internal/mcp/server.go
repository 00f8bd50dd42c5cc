package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/advisor-rag/internal/advisor"
	"github.com/bull/advisor-rag/internal/history"
	"github.com/bull/advisor-rag/internal/ingest"
	"github.com/bull/advisor-rag/internal/storage"
)

// StatisticsProvider supplies query history aggregates.
type StatisticsProvider interface {
	Statistics(ctx context.Context) (*history.Statistics, error)
}

// StateProvider reports the ingestion phase.
type StateProvider interface {
	State() ingest.State
}

// Server wraps the MCP server with dependencies.
type Server struct {
	server *mcp.Server
}

// Config holds server dependencies.
type Config struct {
	Service    *advisor.Service
	Statistics StatisticsProvider
	Index      storage.VectorIndex
	Ingest     StateProvider
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	impl := &mcp.Implementation{
		Name:    "advisor-rag-server",
		Version: "v0.1.0",
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question from the indexed corpus. Returns a grounded answer with the source passages it relied on.",
	}, makeAskHandler(cfg.Service))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_statistics",
		Description: "Get aggregate statistics over all answered queries: totals, success rate and average response time.",
	}, makeStatisticsHandler(cfg.Statistics))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_index_status",
		Description: "Get the current state of the vector index: chunk count, indexed documents, embedding model and ingestion phase.",
	}, makeStatusHandler(cfg.Index, cfg.Ingest))

	return &Server{server: server}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
// Used by transport handlers that need to wrap the server.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
