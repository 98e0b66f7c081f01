// Package reference stores per-demographic normal ranges for lab tests and
// resolves the range that applies to a given patient.
package reference

import (
	"context"
	"io"
	"time"

	"github.com/labpanel-mcp-server/internal/domain"
)

// Store defines the interface for reference value storage operations.
type Store interface {
	// Create stores a new reference value. A value with the same category,
	// test, gender and age window is rejected with domain.ErrDuplicateReference.
	Create(ctx context.Context, ref *domain.ReferenceValue) error

	// Get returns the reference value with id or domain.ErrNotFound.
	Get(ctx context.Context, id string) (*domain.ReferenceValue, error)

	// List returns every reference value ordered by category, test, gender and minimum age.
	List(ctx context.Context) ([]*domain.ReferenceValue, error)

	// ListByCategory returns the values of one panel ordered by test, gender and minimum age.
	ListByCategory(ctx context.Context, category domain.ReportType) ([]*domain.ReferenceValue, error)

	// ListByTestName returns the values of one test ordered by category, gender and minimum age.
	ListByTestName(ctx context.Context, testName string) ([]*domain.ReferenceValue, error)

	// Update replaces the stored fields of ref.ID.
	Update(ctx context.Context, ref *domain.ReferenceValue) error

	// Delete removes a reference value by id.
	Delete(ctx context.Context, id string) error

	// Lookup returns the value matching the patient, preferring a gender
	// specific row over "both" and the narrowest age window. A nil value
	// with a nil error means nothing applies.
	Lookup(ctx context.Context, category domain.ReportType, testName string, gender domain.Gender, age int) (*domain.ReferenceValue, error)

	// Count returns the total number of reference values.
	Count(ctx context.Context) (int64, error)

	// ExportJSON exports all reference values to a JSON writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON imports reference values from a JSON reader.
	// Returns the number of imported and skipped entries.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	// Close closes the store and releases resources.
	Close() error
}

// Export represents the JSON export format.
type Export struct {
	Version         string                   `json:"version"`
	ExportedAt      time.Time                `json:"exported_at"`
	Count           int                      `json:"count"`
	ReferenceValues []*domain.ReferenceValue `json:"reference_values"`
}

const exportVersion = "1.0"
