// Package app assembles the pipeline, storage and cache from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/labpanel-mcp-server/internal/cache"
	"github.com/labpanel-mcp-server/internal/database"
	"github.com/labpanel-mcp-server/internal/domain"
	"github.com/labpanel-mcp-server/internal/ocr"
	"github.com/labpanel-mcp-server/internal/reference"
	"github.com/labpanel-mcp-server/internal/repository"
	"github.com/labpanel-mcp-server/internal/service"
)

// Storage drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Components are the wired services shared by the HTTP and MCP servers.
type Components struct {
	Analyzer   *service.Analyzer
	Parser     *service.PanelParser
	Reports    domain.ReportRepository
	References *reference.Manager
	Cache      *cache.TieredCache
	Quality    ocr.QualityThresholds

	closers []func() error
	logger  *logrus.Logger
}

// Build opens storage, seeds reference values when the store is empty and
// wires the analyzer. Close releases everything Build opened.
func Build(ctx context.Context, cfg *domain.Config, logger *logrus.Logger) (*Components, error) {
	c := &Components{logger: logger}

	store, err := c.openStorage(ctx, cfg)
	if err != nil {
		c.Close()
		return nil, err
	}

	seeded, err := reference.SeedDefaults(ctx, store)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to seed reference values: %w", err)
	}
	if seeded > 0 {
		logger.WithField("count", seeded).Info("Seeded default reference values")
	}

	lookup, err := reference.NewResilientLookup(store, cfg.Reference, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create reference lookup: %w", err)
	}
	c.References = reference.NewManager(store, lookup, logger)

	var closeCache func() error
	c.Cache, closeCache = cache.New(cfg.Cache, logger)
	c.closers = append(c.closers, closeCache)

	c.Quality = ocr.QualityThresholds{
		MinConfidence: cfg.OCR.MinConfidence,
		MinTextLength: cfg.OCR.MinTextLength,
	}
	c.Parser = service.NewPanelParser(logger, cfg.Parser)
	c.Analyzer = service.NewAnalyzer(logger, service.AnalyzerDeps{
		Extractor:   ocr.NewExtractor(logger, cfg.OCR),
		Parser:      c.Parser,
		References:  service.NewReferenceComparator(logger, lookup),
		Cache:       c.Cache,
		Reports:     c.Reports,
		Quality:     c.Quality,
		PostProcess: cfg.OCR.PostProcessing,
	})

	logger.WithField("storage", cfg.Storage.Driver).Info("Application components ready")
	return c, nil
}

func (c *Components) openStorage(ctx context.Context, cfg *domain.Config) (reference.Store, error) {
	switch cfg.Storage.Driver {
	case DriverPostgres:
		dbConfig := database.ConfigFrom(cfg.Database)
		if err := database.Migrate(ctx, dbConfig.URL(), "", c.logger); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		db, err := database.NewConnection(ctx, dbConfig, c.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		c.closers = append(c.closers, func() error { db.Close(); return nil })
		c.Reports = repository.NewPostgresReportStore(db.Pool, c.logger)

		store, err := reference.NewPostgresStoreFromURL(dbConfig.URL())
		if err != nil {
			return nil, fmt.Errorf("failed to open reference store: %w", err)
		}
		c.closers = append(c.closers, store.Close)
		return store, nil

	case DriverSQLite, "":
		dir := cfg.Storage.DataDir
		if dir == "" {
			dir = "./data"
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		reports, err := repository.NewSQLiteReportStore(filepath.Join(dir, "reports.db"), c.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open report store: %w", err)
		}
		c.closers = append(c.closers, reports.Close)
		c.Reports = reports

		store, err := reference.NewSQLiteStore(filepath.Join(dir, "reference.db"))
		if err != nil {
			return nil, fmt.Errorf("failed to open reference store: %w", err)
		}
		c.closers = append(c.closers, store.Close)
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Storage.Driver)
	}
}

// Close releases storage and cache resources in reverse order of opening.
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	if err := errors.Join(errs...); err != nil {
		c.logger.WithError(err).Error("Failed to close application components")
		return err
	}
	return nil
}
