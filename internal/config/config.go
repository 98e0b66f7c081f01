package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/labpanel-mcp-server/internal/domain"
)

const envPrefix = "LABPANEL"

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v          *viper.Viper
	configFile string
	config     *domain.Config
}

// NewManager creates a configuration manager that reads config.yaml from the
// usual search paths, LABPANEL_* environment variables and built-in defaults.
func NewManager() (*Manager, error) {
	return NewManagerWithFile("")
}

// NewManagerWithFile is NewManager with an explicit configuration file.
func NewManagerWithFile(path string) (*Manager, error) {
	m := &Manager{configFile: path}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	v := viper.New()

	if m.configFile != "" {
		v.SetConfigFile(m.configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/labpanel-mcp-server/")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.v = v
	m.config = config
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "90s")
	v.SetDefault("server.rate_limit", 5)
	v.SetDefault("server.rate_burst", 10)
	v.SetDefault("server.max_upload_bytes", 10<<20)

	// Storage defaults
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.data_dir", "./data")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "labpanel")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.migrations_path", "")

	// Cache defaults
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.default_ttl", "1h")
	v.SetDefault("cache.max_items", 1000)
	v.SetDefault("cache.max_retries", 3)
	v.SetDefault("cache.pool_size", 10)
	v.SetDefault("cache.pool_timeout", "4s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// OCR defaults
	v.SetDefault("ocr.service_url", "")
	v.SetDefault("ocr.timeout", "60s")
	v.SetDefault("ocr.rate_limit", 2)
	v.SetDefault("ocr.retry_count", 2)
	v.SetDefault("ocr.min_confidence", 70)
	v.SetDefault("ocr.min_text_length", 50)
	v.SetDefault("ocr.max_file_size", 10<<20)
	v.SetDefault("ocr.allowed_types", []string{
		"image/jpeg", "image/jpg", "image/png", "image/tiff", "image/tif", "application/pdf",
	})
	v.SetDefault("ocr.post_processing", true)

	// Parser defaults
	parser := domain.DefaultParserConfig()
	v.SetDefault("parser.fallback_threshold", parser.FallbackThreshold)
	v.SetDefault("parser.rbc_correction_trigger", parser.RBCCorrectionTrigger)
	v.SetDefault("parser.rbc_correction_offset", parser.RBCCorrectionOffset)
	setBoundDefault(v, "parser.rbc_correction_window", parser.RBCCorrectionWindow)
	setBoundDefault(v, "parser.bounds.total_rbc", parser.Bounds.TotalRBC)
	setBoundDefault(v, "parser.bounds.platelet_count", parser.Bounds.PlateletCount)
	setBoundDefault(v, "parser.bounds.wbc_count", parser.Bounds.WBCCount)
	setBoundDefault(v, "parser.bounds.bilirubin", parser.Bounds.Bilirubin)
	setBoundDefault(v, "parser.bounds.transaminase", parser.Bounds.Transaminase)
	setBoundDefault(v, "parser.bounds.alkaline_phosphatase", parser.Bounds.AlkalinePhosphatase)
	setBoundDefault(v, "parser.bounds.hba1c", parser.Bounds.HbA1c)

	// Reference defaults
	v.SetDefault("reference.cache_size", 512)
	v.SetDefault("reference.cache_ttl", "10m")
	v.SetDefault("reference.timeout", "2s")

	// MCP defaults
	v.SetDefault("mcp.server_name", "labpanel-mcp-server")
	v.SetDefault("mcp.server_version", "1.0.0")
	v.SetDefault("mcp.transport_type", "stdio")
	v.SetDefault("mcp.request_timeout", "60s")
	v.SetDefault("mcp.enable_caching", true)
	v.SetDefault("mcp.tool_cache_ttl", "1h")
}

func setBoundDefault(v *viper.Viper, key string, b domain.Bound) {
	v.SetDefault(key+".min", b.Min)
	v.SetDefault(key+".max", b.Max)
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetDatabaseConfig returns database configuration
func (m *Manager) GetDatabaseConfig() *domain.DatabaseConfig {
	return &m.config.Database
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetParserConfig returns the panel parser tuning
func (m *Manager) GetParserConfig() *domain.ParserConfig {
	return &m.config.Parser
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.Server.RateLimit < 0 {
		return fmt.Errorf("server rate limit must not be negative")
	}

	switch strings.ToLower(config.Storage.Driver) {
	case "sqlite":
		if config.Storage.DataDir == "" {
			return fmt.Errorf("storage data directory is required for sqlite")
		}
	case "postgres":
		if config.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if config.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if config.Database.Username == "" {
			return fmt.Errorf("database username is required")
		}
	default:
		return fmt.Errorf("invalid storage driver: %s", config.Storage.Driver)
	}

	if config.OCR.MinConfidence < 0 || config.OCR.MinConfidence > 100 {
		return fmt.Errorf("OCR minimum confidence must be between 0 and 100")
	}
	if config.OCR.MaxFileSize <= 0 {
		return fmt.Errorf("OCR max file size must be positive")
	}

	if err := validateParser(config.Parser); err != nil {
		return err
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

func validateParser(p domain.ParserConfig) error {
	if p.FallbackThreshold < 0 {
		return fmt.Errorf("parser fallback threshold must not be negative")
	}
	bounds := map[string]domain.Bound{
		"total_rbc":             p.Bounds.TotalRBC,
		"platelet_count":        p.Bounds.PlateletCount,
		"wbc_count":             p.Bounds.WBCCount,
		"bilirubin":             p.Bounds.Bilirubin,
		"transaminase":          p.Bounds.Transaminase,
		"alkaline_phosphatase":  p.Bounds.AlkalinePhosphatase,
		"hba1c":                 p.Bounds.HbA1c,
		"rbc_correction_window": p.RBCCorrectionWindow,
	}
	for name, b := range bounds {
		if b.Min > b.Max {
			return fmt.Errorf("parser bound %s: min %v exceeds max %v", name, b.Min, b.Max)
		}
	}
	return nil
}

// GetDatabaseConnectionString returns a formatted database connection string
func (m *Manager) GetDatabaseConnectionString() string {
	db := m.config.Database
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host, db.Port, db.Username, db.Password, db.Database, db.SSLMode)
}

// GetRedisConnectionString returns the Redis connection string
func (m *Manager) GetRedisConnectionString() string {
	return m.config.Cache.RedisURL
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.config.Environment) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(m.config.Environment)
	return env == "development" || env == "dev" || env == ""
}
