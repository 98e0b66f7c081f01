package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestNewManager_Defaults(t *testing.T) {
	m, err := NewManagerWithFile(writeConfigFile(t, "environment: development\n"))
	require.NoError(t, err)

	cfg := m.GetConfig()
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, 1000, cfg.Cache.MaxItems)
	assert.Equal(t, time.Hour, cfg.Cache.DefaultTTL)
	assert.Equal(t, float64(70), cfg.OCR.MinConfidence)
	assert.Equal(t, int64(10<<20), cfg.OCR.MaxFileSize)
	assert.Contains(t, cfg.OCR.AllowedTypes, "application/pdf")
	assert.Equal(t, 512, cfg.Reference.CacheSize)
	assert.Equal(t, "labpanel-mcp-server", cfg.MCP.ServerName)

	parser := m.GetParserConfig()
	assert.Equal(t, 5, parser.FallbackThreshold)
	assert.Equal(t, float64(2), parser.Bounds.TotalRBC.Min)
	assert.Equal(t, float64(500), parser.Bounds.PlateletCount.Max)
	assert.Equal(t, float64(7), parser.RBCCorrectionWindow.Max)

	assert.True(t, m.IsDevelopment())
	assert.False(t, m.IsProduction())
	assert.NoError(t, m.Validate())
}

func TestNewManager_FileOverrides(t *testing.T) {
	path := writeConfigFile(t, `
environment: production
server:
  port: 9090
  request_timeout: 15s
storage:
  driver: postgres
database:
  host: db.internal
  port: 5433
  database: labs
  username: lab
  password: secret
cache:
  redis_url: redis://cache:6379/1
parser:
  fallback_threshold: 3
  bounds:
    hba1c:
      min: 3
      max: 18
`)
	m, err := NewManagerWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, m.GetServerConfig().Port)
	assert.Equal(t, 15*time.Second, m.GetServerConfig().RequestTimeout)
	assert.Equal(t, "db.internal", m.GetDatabaseConfig().Host)
	assert.Equal(t, 3, m.GetParserConfig().FallbackThreshold)
	assert.Equal(t, float64(18), m.GetParserConfig().Bounds.HbA1c.Max)
	// Untouched bounds keep their defaults.
	assert.Equal(t, float64(8), m.GetParserConfig().Bounds.TotalRBC.Max)
	assert.Equal(t, "redis://cache:6379/1", m.GetRedisConnectionString())
	assert.Equal(t, "host=db.internal port=5433 user=lab password=secret dbname=labs sslmode=disable",
		m.GetDatabaseConnectionString())
	assert.True(t, m.IsProduction())
	assert.NoError(t, m.Validate())
}

func TestNewManager_EnvironmentOverrides(t *testing.T) {
	path := writeConfigFile(t, "server:\n  port: 9090\n")
	t.Setenv("LABPANEL_SERVER_PORT", "7070")
	t.Setenv("LABPANEL_LOGGING_LEVEL", "debug")

	m, err := NewManagerWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, m.GetServerConfig().Port)
	assert.Equal(t, "debug", m.GetConfig().Logging.Level)
}

func TestNewManager_InvalidFile(t *testing.T) {
	_, err := NewManagerWithFile(writeConfigFile(t, "server: [port\n"))
	assert.Error(t, err)
}

func TestManager_Reload(t *testing.T) {
	path := writeConfigFile(t, "server:\n  port: 9090\n")
	m, err := NewManagerWithFile(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9191\n"), 0644))
	require.NoError(t, m.Reload())

	assert.Equal(t, 9191, m.GetServerConfig().Port)
}

func TestManager_Validate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"bad port", "server:\n  port: 70000\n", "invalid server port"},
		{"bad driver", "storage:\n  driver: mongo\n", "invalid storage driver"},
		{"postgres without host", "storage:\n  driver: postgres\ndatabase:\n  host: \"\"\n", "database host is required"},
		{"bad log level", "logging:\n  level: loud\n", "invalid log level"},
		{"bad confidence", "ocr:\n  min_confidence: 120\n", "minimum confidence"},
		{"inverted bound", "parser:\n  bounds:\n    wbc_count:\n      min: 30\n      max: 2\n", "parser bound wbc_count"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewManagerWithFile(writeConfigFile(t, tt.body))
			require.NoError(t, err)

			err = m.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
