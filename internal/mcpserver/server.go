// Package mcpserver exposes the index and search pipeline as MCP tools
// over stdio, so editor agents can query the workspace index directly.
package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/server"

	"github.com/syntheo/syntheo/internal/engine"
)

const (
	// ServerName is the MCP server name
	ServerName = "syntheo"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with the engine for one workspace.
type Server struct {
	mcp    *server.MCPServer
	engine *engine.Engine
}

// NewServer opens the engine for a workspace and registers the tools.
func NewServer(ctx context.Context, workspace string) (*Server, error) {
	eng, err := engine.Open(ctx, workspace)
	if err != nil {
		return nil, fmt.Errorf("open engine: %w", err)
	}

	s := &Server{
		mcp:    server.NewMCPServer(ServerName, ServerVersion),
		engine: eng,
	}
	s.registerTools()
	return s, nil
}

// Serve runs the stdio transport until the client disconnects.
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.engine.Close(ctx) }()
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(searchCodeTool(), s.handleSearchCode)
	s.mcp.AddTool(indexWorkspaceTool(), s.handleIndexWorkspace)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	s.mcp.AddTool(clearIndexTool(), s.handleClearIndex)
}
