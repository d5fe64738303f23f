// Package mcp exposes the study assistant as Model Context Protocol tools over stdio.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"edurag/internal/service"
)

// ServerName is the MCP server name
const ServerName = "edurag"

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp            *server.MCPServer
	svc            service.Service
	defaultBackend string
}

// NewServer creates an MCP server over svc. defaultBackend answers tool calls that name none.
func NewServer(svc service.Service, defaultBackend, version string) *Server {
	s := &Server{
		mcp:            server.NewMCPServer(ServerName, version),
		svc:            svc,
		defaultBackend: defaultBackend,
	}
	s.registerTools()
	return s
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(_ context.Context) error {
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(askTool(), s.handleAsk)
	s.mcp.AddTool(ingestTool(), s.handleIngest)
	s.mcp.AddTool(feedbackTool(), s.handleFeedback)
	s.mcp.AddTool(summarizeTool(), s.handleSummarize)
	s.mcp.AddTool(statsTool(), s.handleStats)
}
