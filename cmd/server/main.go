// Package main is the HTTP API entry point for the lab report server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/labpanel-mcp-server/internal/api"
	"github.com/labpanel-mcp-server/internal/app"
	"github.com/labpanel-mcp-server/internal/config"
	"github.com/labpanel-mcp-server/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
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

	server := api.NewServer(configManager, api.Deps{
		Analyzer:   components.Analyzer,
		Reports:    components.Reports,
		References: components.References,
		Cache:      components.Cache,
		Logger:     logger,
	})

	logger.WithFields(logrus.Fields{
		"host":        cfg.Server.Host,
		"port":        cfg.Server.Port,
		"environment": cfg.Environment,
		"version":     api.Version,
	}).Info("Starting lab report server")

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("Server stopped")
	return nil
}
