package domain

import (
	"context"
)

// TextExtractor turns an uploaded document into raw text
type TextExtractor interface {
	Extract(ctx context.Context, content []byte, mimeType string) (*ExtractionResult, error)
}

// ReferenceLookup resolves stored reference values for a patient.
// A nil value with a nil error means no reference applies.
type ReferenceLookup interface {
	Lookup(ctx context.Context, category ReportType, testName string, gender Gender, age int) (*ReferenceValue, error)
}

// ReportRepository defines the interface for analyzed report persistence
type ReportRepository interface {
	SaveReport(ctx context.Context, report *StoredReport) error
	GetReport(ctx context.Context, id string) (*StoredReport, error)
	ListReports(ctx context.Context, filter ReportFilter) ([]*StoredReport, error)
	UpdateReportStatus(ctx context.Context, id string, status ReportStatus) error
	DeleteReport(ctx context.Context, id string) error
	Close() error
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetServerConfig() *ServerConfig
	GetParserConfig() *ParserConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetRedisConnectionString() string
	IsProduction() bool
	IsDevelopment() bool
}
