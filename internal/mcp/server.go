// Package mcp exposes the lab report pipeline as Model Context Protocol tools.
package mcp

import (
	"context"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/labpanel-mcp-server/internal/logging"
	"github.com/labpanel-mcp-server/internal/ocr"
	"github.com/labpanel-mcp-server/internal/reference"
	"github.com/labpanel-mcp-server/internal/service"
)

// ServerInfo contains MCP server metadata
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Deps are the pipeline components behind the tools. Analyzer is required;
// the step components default to those with standard settings and
// References is optional.
type Deps struct {
	Analyzer   *service.Analyzer
	Patients   *service.PatientInfoExtractor
	Parser     *service.PanelParser
	Engine     *service.RecommendationEngine
	References *reference.Manager
	Quality    ocr.QualityThresholds
}

// Server represents the lab report MCP server
type Server struct {
	info      ServerInfo
	mcpServer *mcp.Server
	deps      Deps
	ops       *logging.OperationLogger
	logger    *logrus.Logger
}

// NewServer creates a new MCP server instance with every tool registered.
func NewServer(info ServerInfo, deps Deps, logger *logrus.Logger) (*Server, error) {
	if deps.Analyzer == nil {
		return nil, fmt.Errorf("analyzer is required")
	}
	if deps.Patients == nil {
		deps.Patients = service.NewPatientInfoExtractor(logger)
	}
	if deps.Engine == nil {
		deps.Engine = service.NewRecommendationEngine(logger)
	}
	if deps.Parser == nil {
		return nil, fmt.Errorf("panel parser is required")
	}
	if info.Name == "" {
		info.Name = "labpanel-mcp-server"
	}
	if info.Version == "" {
		info.Version = "v1.0.0"
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    info.Name,
		Version: info.Version,
	}, nil)

	server := &Server{
		info:      info,
		mcpServer: mcpServer,
		deps:      deps,
		ops:       logging.NewOperationLogger(logger),
		logger:    logger,
	}

	server.registerTools()
	server.registerResources()
	server.registerPrompts()

	return server, nil
}

// Run serves MCP requests on transport until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	s.logger.WithFields(logrus.Fields{
		"name":    s.info.Name,
		"version": s.info.Version,
		"tools":   len(ToolNames()),
	}).Info("Starting MCP server")

	if err := s.mcpServer.Run(ctx, transport); err != nil && ctx.Err() == nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// RunStdio serves MCP over stdin/stdout.
func (s *Server) RunStdio(ctx context.Context) error {
	return s.Run(ctx, &mcp.StdioTransport{})
}

// Stats returns per-tool call counters.
func (s *Server) Stats() map[string]logging.OperationStats {
	return s.ops.Stats()
}

// HTTPHandler serves MCP over the streamable HTTP transport.
func (s *Server) HTTPHandler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcpServer
	}, nil)
}
