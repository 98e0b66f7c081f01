// Package config provides configuration management for the lab report server.
// This file contains the lightweight configuration for standalone operation.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/labpanel-mcp-server/internal/domain"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no external databases and uses sensible defaults.
type LiteConfig struct {
	// Data storage
	DataDir string // Base directory for SQLite files and exports

	// Cache settings
	CacheMaxItems int           // Maximum analyses in memory cache
	CacheTTL      time.Duration // Default cache TTL

	// Text extraction
	OCRServiceURL string // Optional: remote OCR endpoint for images and scanned PDFs
	OCRAPIKey     string // Optional: bearer token for the OCR endpoint
	PDFLicenseKey string // Optional: metered key for the PDF text extractor

	// Transport settings
	Transport string // Transport type: stdio, http
	HTTPPort  int    // HTTP port (if transport is http)

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".labpanel-mcp")

	return &LiteConfig{
		DataDir:       dataDir,
		CacheMaxItems: 1000,
		CacheTTL:      time.Hour,
		Transport:     "stdio",
		HTTPPort:      8080,
		LogLevel:      "info",
		LogFormat:     "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("LABPANEL_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	if v := os.Getenv("LABPANEL_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}
	if v := os.Getenv("LABPANEL_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CacheTTL = d
		}
	}

	cfg.OCRServiceURL = os.Getenv("LABPANEL_OCR_URL")
	cfg.OCRAPIKey = os.Getenv("LABPANEL_OCR_API_KEY")
	cfg.PDFLicenseKey = os.Getenv("LABPANEL_PDF_LICENSE_KEY")

	if v := os.Getenv("LABPANEL_TRANSPORT"); v != "" {
		cfg.Transport = v
	}
	if v := os.Getenv("LABPANEL_HTTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HTTPPort = n
		}
	}

	if v := os.Getenv("LABPANEL_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LABPANEL_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// ReferenceDBPath returns the path to the reference value SQLite database.
func (c *LiteConfig) ReferenceDBPath() string {
	return filepath.Join(c.DataDir, "reference.db")
}

// ReportsDBPath returns the path to the analyzed report SQLite database.
func (c *LiteConfig) ReportsDBPath() string {
	return filepath.Join(c.DataDir, "reports.db")
}

// ExportDir returns the directory for JSON exports.
func (c *LiteConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.ExportDir(), 0755)
}

// OCRConfig returns extraction settings with the standard quality and upload limits.
func (c *LiteConfig) OCRConfig() domain.OCRConfig {
	return domain.OCRConfig{
		ServiceURL:     c.OCRServiceURL,
		APIKey:         c.OCRAPIKey,
		Timeout:        60 * time.Second,
		RateLimit:      2,
		RetryCount:     2,
		PDFLicenseKey:  c.PDFLicenseKey,
		MinConfidence:  70,
		MinTextLength:  50,
		MaxFileSize:    10 << 20,
		PostProcessing: true,
	}
}

// CacheConfig returns the memory-only analysis cache settings.
func (c *LiteConfig) CacheConfig() domain.CacheConfig {
	return domain.CacheConfig{
		MaxItems:   c.CacheMaxItems,
		DefaultTTL: c.CacheTTL,
	}
}
