// Package mcp exposes the consistency engine over the Model Context
// Protocol so authoring agents can store scenarios and run analyses.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/storyweave/internal/consistency"
	"github.com/louisbranch/storyweave/internal/storage"
)

const (
	// serverName identifies this MCP server to clients.
	serverName = "Storyweave MCP"
	// serverVersion identifies the MCP server version.
	serverVersion = "0.1.0"
)

// Config wires the engine and stores into the MCP server. Checker is
// required; Scenarios and Reports enable the storage-backed tools and
// Evaluator enables path evaluation.
type Config struct {
	Checker   *consistency.Checker
	Scenarios storage.ScenarioStore
	Reports   consistency.ReportStore
	Evaluator consistency.Evaluator
}

// Server hosts the MCP server.
type Server struct {
	mcpServer *mcp.Server
	checker   *consistency.Checker
	scenarios storage.ScenarioStore
	reports   consistency.ReportStore
	evaluator consistency.Evaluator
}

// New creates a configured MCP server with every tool registered.
func New(cfg Config) (*Server, error) {
	if cfg.Checker == nil {
		return nil, fmt.Errorf("checker is required")
	}

	server := &Server{
		mcpServer: mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil),
		checker:   cfg.Checker,
		scenarios: cfg.Scenarios,
		reports:   cfg.Reports,
		evaluator: cfg.Evaluator,
	}
	server.registerTools()
	return server, nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, StoreScenarioTool(), s.storeScenarioHandler())
	mcp.AddTool(s.mcpServer, ListScenariosTool(), s.listScenariosHandler())
	mcp.AddTool(s.mcpServer, CheckScenarioTool(), s.checkScenarioHandler())
	mcp.AddTool(s.mcpServer, EnumeratePathsTool(), s.enumeratePathsHandler())
	mcp.AddTool(s.mcpServer, MustEntitiesTool(), s.mustEntitiesHandler())
	mcp.AddTool(s.mcpServer, ExploreStateSpaceTool(), s.exploreStateSpaceHandler())
	mcp.AddTool(s.mcpServer, EvaluatePathsTool(), s.evaluatePathsHandler())
	mcp.AddTool(s.mcpServer, ListReportsTool(), s.listReportsHandler())
}

// Run serves MCP over stdio until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}
