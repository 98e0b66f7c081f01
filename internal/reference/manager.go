package reference

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/labpanel-mcp-server/internal/domain"
)

// Manager is the write path for reference values. Every mutation drops the
// cached lookups so analyses see the new ranges immediately.
type Manager struct {
	store  Store
	lookup *ResilientLookup
	logger *logrus.Logger
}

// NewManager creates a manager. lookup may be nil when nothing caches lookups.
func NewManager(store Store, lookup *ResilientLookup, logger *logrus.Logger) *Manager {
	return &Manager{store: store, lookup: lookup, logger: logger}
}

// Lookup resolves a reference value, through the cache when one is configured.
func (m *Manager) Lookup(ctx context.Context, category domain.ReportType, testName string, gender domain.Gender, age int) (*domain.ReferenceValue, error) {
	if m.lookup != nil {
		return m.lookup.Lookup(ctx, category, testName, gender, age)
	}
	return m.store.Lookup(ctx, category, testName, gender, age)
}

// Create stores a new reference value.
func (m *Manager) Create(ctx context.Context, ref *domain.ReferenceValue) error {
	if err := m.store.Create(ctx, ref); err != nil {
		return err
	}
	m.invalidate()
	m.logger.WithFields(logrus.Fields{
		"id":       ref.ID,
		"category": ref.TestCategory,
		"test":     ref.TestName,
		"gender":   ref.Gender,
	}).Info("Reference value created")
	return nil
}

// Get returns a reference value by id.
func (m *Manager) Get(ctx context.Context, id string) (*domain.ReferenceValue, error) {
	return m.store.Get(ctx, id)
}

// List returns reference values, optionally narrowed to a category or a test.
// When both are given the category wins.
func (m *Manager) List(ctx context.Context, category domain.ReportType, testName string) ([]*domain.ReferenceValue, error) {
	switch {
	case category != "":
		if !category.IsValid() {
			return nil, fmt.Errorf("%w: %s", domain.ErrInvalidReportType, category)
		}
		return m.store.ListByCategory(ctx, category)
	case testName != "":
		return m.store.ListByTestName(ctx, testName)
	default:
		return m.store.List(ctx)
	}
}

// Update applies changes to an existing reference value. Fields left at
// their zero value in changes keep the stored value.
func (m *Manager) Update(ctx context.Context, id string, changes Patch) (*domain.ReferenceValue, error) {
	ref, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	changes.apply(ref)
	if err := m.store.Update(ctx, ref); err != nil {
		return nil, err
	}
	m.invalidate()
	m.logger.WithField("id", id).Info("Reference value updated")
	return ref, nil
}

// Delete removes a reference value.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	m.invalidate()
	m.logger.WithField("id", id).Info("Reference value deleted")
	return nil
}

// Export writes every reference value as JSON.
func (m *Manager) Export(ctx context.Context, w io.Writer) error {
	return m.store.ExportJSON(ctx, w)
}

// Import loads reference values from JSON, skipping existing criteria.
func (m *Manager) Import(ctx context.Context, r io.Reader) (int, int, error) {
	imported, skipped, err := m.store.ImportJSON(ctx, r)
	if imported > 0 {
		m.invalidate()
	}
	return imported, skipped, err
}

func (m *Manager) invalidate() {
	if m.lookup != nil {
		m.lookup.Invalidate()
	}
}

// Patch is a partial update of a reference value.
type Patch struct {
	TestCategory *domain.ReportType      `json:"test_category,omitempty"`
	TestName     *string                 `json:"test_name,omitempty"`
	TestUnit     *string                 `json:"test_unit,omitempty"`
	MinValue     *float64                `json:"min_value,omitempty"`
	MaxValue     *float64                `json:"max_value,omitempty"`
	Gender       *domain.ReferenceGender `json:"gender,omitempty"`
	AgeMin       *int                    `json:"age_min,omitempty"`
	AgeMax       *int                    `json:"age_max,omitempty"`
	Description  *string                 `json:"description,omitempty"`
}

func (p Patch) apply(ref *domain.ReferenceValue) {
	if p.TestCategory != nil {
		ref.TestCategory = *p.TestCategory
	}
	if p.TestName != nil {
		ref.TestName = *p.TestName
	}
	if p.TestUnit != nil {
		ref.TestUnit = *p.TestUnit
	}
	if p.MinValue != nil {
		ref.MinValue = *p.MinValue
	}
	if p.MaxValue != nil {
		ref.MaxValue = *p.MaxValue
	}
	if p.Gender != nil {
		ref.Gender = *p.Gender
	}
	if p.AgeMin != nil {
		ref.AgeMin = *p.AgeMin
	}
	if p.AgeMax != nil {
		ref.AgeMax = *p.AgeMax
	}
	if p.Description != nil {
		ref.Description = *p.Description
	}
}
