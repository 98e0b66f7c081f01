package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/labpanel-mcp-server/internal/cache"
	"github.com/labpanel-mcp-server/internal/domain"
	"github.com/labpanel-mcp-server/internal/middleware"
	"github.com/labpanel-mcp-server/internal/ocr"
	"github.com/labpanel-mcp-server/internal/reference"
	"github.com/labpanel-mcp-server/internal/service"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Deps are the collaborators behind the HTTP routes. Reports, References
// and Cache are optional; their routes answer 503 when missing.
type Deps struct {
	Analyzer   *service.Analyzer
	Reports    domain.ReportRepository
	References *reference.Manager
	Cache      *cache.TieredCache
	Logger     *logrus.Logger
}

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	deps          Deps
	logger        *logrus.Logger
	router        *gin.Engine
	server        *http.Server
	uploadLimits  ocr.UploadLimits
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, deps Deps) *Server {
	cfg := configManager.GetConfig()

	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	logger := deps.Logger
	if logger == nil {
		logger = logrus.New()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AuditLogger(logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(corsMiddleware())
	router.Use(middleware.RateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst))
	router.Use(middleware.RequestTimeout(cfg.Server.RequestTimeout))

	maxUpload := cfg.Server.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = ocr.DefaultMaxFileSize
	}
	router.MaxMultipartMemory = maxUpload

	server := &Server{
		configManager: configManager,
		deps:          deps,
		logger:        logger,
		router:        router,
		uploadLimits:  ocr.LimitsFromConfig(cfg.OCR),
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	s.logger.WithField("addr", addr).Info("HTTP server listening")

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		reports := v1.Group("/reports")
		reports.POST("/analyze", s.handleAnalyze)
		reports.GET("", s.handleListReports)
		reports.GET("/:id", s.handleGetReport)
		reports.PATCH("/:id/status", s.handleUpdateReportStatus)
		reports.DELETE("/:id", s.handleDeleteReport)

		refs := v1.Group("/reference-values")
		refs.GET("", s.handleListReferences)
		refs.POST("", s.handleCreateReference)
		refs.GET("/export", s.handleExportReferences)
		refs.POST("/import", s.handleImportReferences)
		refs.GET("/:id", s.handleGetReference)
		refs.PUT("/:id", s.handleUpdateReference)
		refs.DELETE("/:id", s.handleDeleteReference)
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   Version,
		"components": gin.H{
			"reports":    s.deps.Reports != nil,
			"references": s.deps.References != nil,
		},
	}
	if s.deps.Cache != nil {
		body["cache"] = s.deps.Cache.Stats()
	}
	c.JSON(http.StatusOK, body)
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-Correlation-ID")
		c.Header("Access-Control-Expose-Headers", "Content-Length, X-Correlation-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
