package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Environment string          `mapstructure:"environment"`
	Server      ServerConfig    `mapstructure:"server"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Storage     StorageConfig   `mapstructure:"storage"`
	Cache       CacheConfig     `mapstructure:"cache"`
	Logging     LoggingConfig   `mapstructure:"logging"`
	OCR         OCRConfig       `mapstructure:"ocr"`
	Parser      ParserConfig    `mapstructure:"parser"`
	Reference   ReferenceConfig `mapstructure:"reference"`
	MCP         MCPConfig       `mapstructure:"mcp"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateBurst      int           `mapstructure:"rate_burst"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// StorageConfig selects the persistence backend: "sqlite" or "postgres".
type StorageConfig struct {
	Driver  string `mapstructure:"driver"`
	DataDir string `mapstructure:"data_dir"`
}

// CacheConfig represents cache configuration
type CacheConfig struct {
	RedisURL    string        `mapstructure:"redis_url"`
	DefaultTTL  time.Duration `mapstructure:"default_ttl"`
	MaxItems    int           `mapstructure:"max_items"`
	MaxRetries  int           `mapstructure:"max_retries"`
	PoolSize    int           `mapstructure:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	Filename string `mapstructure:"filename"`
}

// OCRConfig configures the text extraction backends.
type OCRConfig struct {
	ServiceURL     string        `mapstructure:"service_url"`
	APIKey         string        `mapstructure:"api_key"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RetryCount     int           `mapstructure:"retry_count"`
	PDFLicenseKey  string        `mapstructure:"pdf_license_key"`
	MinConfidence  float64       `mapstructure:"min_confidence"`
	MinTextLength  int           `mapstructure:"min_text_length"`
	MaxFileSize    int64         `mapstructure:"max_file_size"`
	AllowedTypes   []string      `mapstructure:"allowed_types"`
	PostProcessing bool          `mapstructure:"post_processing"`
}

// ReferenceConfig configures stored reference value lookups.
type ReferenceConfig struct {
	CacheSize int           `mapstructure:"cache_size"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// MCPConfig represents MCP server configuration
type MCPConfig struct {
	ServerName     string        `mapstructure:"server_name"`
	ServerVersion  string        `mapstructure:"server_version"`
	TransportType  string        `mapstructure:"transport_type"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	EnableCaching  bool          `mapstructure:"enable_caching"`
	ToolCacheTTL   time.Duration `mapstructure:"tool_cache_ttl"`
}

// Bound is an inclusive plausibility window for a fallback-parsed value.
type Bound struct {
	Min float64 `mapstructure:"min" json:"min"`
	Max float64 `mapstructure:"max" json:"max"`
}

// Contains reports whether v lies within the bound.
func (b Bound) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// PlausibilityBounds gates values recovered by the whole-text fallback scan.
type PlausibilityBounds struct {
	TotalRBC            Bound `mapstructure:"total_rbc"`
	PlateletCount       Bound `mapstructure:"platelet_count"`
	WBCCount            Bound `mapstructure:"wbc_count"`
	Bilirubin           Bound `mapstructure:"bilirubin"`
	Transaminase        Bound `mapstructure:"transaminase"`
	AlkalinePhosphatase Bound `mapstructure:"alkaline_phosphatase"`
	HbA1c               Bound `mapstructure:"hba1c"`
}

// ParserConfig tunes the panel parser heuristics.
type ParserConfig struct {
	// FallbackThreshold triggers the whole-text scan when fewer tests were found line by line.
	FallbackThreshold int                `mapstructure:"fallback_threshold"`
	Bounds            PlausibilityBounds `mapstructure:"bounds"`
	// RBC values above RBCCorrectionTrigger are treated as OCR digit errors
	// and shifted down by RBCCorrectionOffset when the result lands in RBCCorrectionWindow.
	RBCCorrectionTrigger float64 `mapstructure:"rbc_correction_trigger"`
	RBCCorrectionOffset  float64 `mapstructure:"rbc_correction_offset"`
	RBCCorrectionWindow  Bound   `mapstructure:"rbc_correction_window"`
}

// DefaultParserConfig returns the parser tuning used when nothing is configured.
func DefaultParserConfig() ParserConfig {
	return ParserConfig{
		FallbackThreshold: 5,
		Bounds: PlausibilityBounds{
			TotalRBC:            Bound{Min: 2, Max: 8},
			PlateletCount:       Bound{Min: 50, Max: 500},
			WBCCount:            Bound{Min: 2, Max: 20},
			Bilirubin:           Bound{Min: 0, Max: 50},
			Transaminase:        Bound{Min: 0, Max: 10000},
			AlkalinePhosphatase: Bound{Min: 0, Max: 1000},
			HbA1c:               Bound{Min: 4, Max: 15},
		},
		RBCCorrectionTrigger: 8,
		RBCCorrectionOffset:  5,
		RBCCorrectionWindow:  Bound{Min: 2, Max: 7},
	}
}
