// Package main serves the lab report tools over MCP using the full
// configuration, including PostgreSQL storage and the Redis cache tier.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labpanel-mcp-server/internal/app"
	"github.com/labpanel-mcp-server/internal/config"
	"github.com/labpanel-mcp-server/internal/logging"
	"github.com/labpanel-mcp-server/internal/mcp"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "mcp-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configManager, err := config.NewManager()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := configManager.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	cfg := configManager.GetConfig()

	// stdout carries the stdio transport.
	if cfg.Logging.Output == "stdout" {
		cfg.Logging.Output = "stderr"
	}
	logger, closeLog, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	components, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()

	server, err := mcp.NewServer(mcp.ServerInfo{
		Name:    cfg.MCP.ServerName,
		Version: cfg.MCP.ServerVersion,
	}, mcp.Deps{
		Analyzer:   components.Analyzer,
		Parser:     components.Parser,
		References: components.References,
		Quality:    components.Quality,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	switch cfg.MCP.TransportType {
	case "", "stdio":
		return server.RunStdio(ctx)
	case "http":
		return serveHTTP(ctx, server, fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))
	default:
		return fmt.Errorf("unsupported transport: %s", cfg.MCP.TransportType)
	}
}

func serveHTTP(ctx context.Context, server *mcp.Server, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.HTTPHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("MCP HTTP transport failed: %w", err)
	}
	return nil
}
