package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/labpanel-mcp-server/internal/cache"
	litecfg "github.com/labpanel-mcp-server/internal/config"
	"github.com/labpanel-mcp-server/internal/domain"
	"github.com/labpanel-mcp-server/internal/logging"
	"github.com/labpanel-mcp-server/internal/ocr"
	"github.com/labpanel-mcp-server/internal/reference"
	"github.com/labpanel-mcp-server/internal/repository"
	"github.com/labpanel-mcp-server/internal/service"
)

// LiteServer is a lightweight MCP server that requires no external databases.
// It uses in-memory caching and SQLite for persistence.
type LiteServer struct {
	config     *litecfg.LiteConfig
	server     *Server
	references reference.Store
	reports    *repository.SQLiteReportStore
	cache      *cache.TieredCache
	closeCache func() error
	logger     *logrus.Logger
}

// LiteServerOption is a functional option for LiteServer.
type LiteServerOption func(*LiteServer) error

// WithReferenceStore sets a custom reference value store.
func WithReferenceStore(store reference.Store) LiteServerOption {
	return func(s *LiteServer) error {
		s.references = store
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logrus.Logger) LiteServerOption {
	return func(s *LiteServer) error {
		s.logger = logger
		return nil
	}
}

// NewLiteServer creates a new lightweight MCP server instance.
// Reference values are seeded with the adult defaults on first start.
func NewLiteServer(cfg *litecfg.LiteConfig, opts ...LiteServerOption) (*LiteServer, error) {
	server := &LiteServer{
		config: cfg,
		logger: logging.NewStderr(cfg.LogLevel, cfg.LogFormat),
	}

	for _, opt := range opts {
		if err := opt(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	if err := server.init(); err != nil {
		server.Close()
		return nil, err
	}

	server.logger.WithField("data_dir", cfg.DataDir).Info("Lite server initialized successfully")
	return server, nil
}

func (s *LiteServer) init() error {
	ctx := context.Background()

	if s.references == nil {
		store, err := reference.NewSQLiteStore(s.config.ReferenceDBPath())
		if err != nil {
			return fmt.Errorf("failed to create reference store: %w", err)
		}
		s.references = store
	}
	seeded, err := reference.SeedDefaults(ctx, s.references)
	if err != nil {
		return fmt.Errorf("failed to seed reference values: %w", err)
	}
	if seeded > 0 {
		s.logger.WithField("count", seeded).Info("Seeded default reference values")
	}

	lookup, err := reference.NewResilientLookup(s.references, domain.ReferenceConfig{}, s.logger)
	if err != nil {
		return fmt.Errorf("failed to create reference lookup: %w", err)
	}
	manager := reference.NewManager(s.references, lookup, s.logger)

	reports, err := repository.NewSQLiteReportStore(s.config.ReportsDBPath(), s.logger)
	if err != nil {
		return fmt.Errorf("failed to create report store: %w", err)
	}
	s.reports = reports

	s.cache, s.closeCache = cache.New(s.config.CacheConfig(), s.logger)

	ocrConfig := s.config.OCRConfig()
	quality := ocr.QualityThresholds{
		MinConfidence: ocrConfig.MinConfidence,
		MinTextLength: ocrConfig.MinTextLength,
	}
	parser := service.NewPanelParser(s.logger, domain.DefaultParserConfig())
	analyzer := service.NewAnalyzer(s.logger, service.AnalyzerDeps{
		Extractor:   ocr.NewExtractor(s.logger, ocrConfig),
		Parser:      parser,
		References:  service.NewReferenceComparator(s.logger, lookup),
		Cache:       s.cache,
		Reports:     reports,
		Quality:     quality,
		PostProcess: ocrConfig.PostProcessing,
	})

	s.server, err = NewServer(ServerInfo{Name: "labpanel-mcp-server-lite", Version: "v1.0.0"}, Deps{
		Analyzer:   analyzer,
		Parser:     parser,
		References: manager,
		Quality:    quality,
	}, s.logger)
	return err
}

// Start serves MCP on the configured transport until ctx is cancelled.
func (s *LiteServer) Start(ctx context.Context) error {
	switch s.config.Transport {
	case "", "stdio":
		return s.server.RunStdio(ctx)
	case "http":
		return s.serveHTTP(ctx)
	default:
		return fmt.Errorf("unsupported transport: %s", s.config.Transport)
	}
}

func (s *LiteServer) serveHTTP(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.HTTPPort),
		Handler:           s.server.HTTPHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()
	s.logger.WithField("addr", httpServer.Addr).Info("MCP HTTP transport listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("MCP HTTP transport failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// Server returns the underlying MCP server.
func (s *LiteServer) Server() *Server {
	return s.server
}

// Close cleans up server resources.
func (s *LiteServer) Close() error {
	var errs []error
	if s.references != nil {
		if err := s.references.Close(); err != nil {
			s.logger.WithError(err).Error("Failed to close reference store")
			errs = append(errs, err)
		}
	}
	if s.reports != nil {
		if err := s.reports.Close(); err != nil {
			s.logger.WithError(err).Error("Failed to close report store")
			errs = append(errs, err)
		}
	}
	if s.closeCache != nil {
		if err := s.closeCache(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
