package reference

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/labpanel-mcp-server/internal/domain"
)

const selectColumns = `id, test_category, test_name, test_unit, min_value, max_value,
	gender, age_min, age_max, description, created_at, updated_at`

// sqlStore holds the queries shared by the SQLite and PostgreSQL stores.
// Queries are written with ? placeholders and rebound per dialect.
type sqlStore struct {
	db          *sql.DB
	numbered    bool
	isDuplicate func(error) bool
}

// bind rewrites ? placeholders to $1, $2, ... for PostgreSQL.
func (s *sqlStore) bind(query string) string {
	if !s.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanReference(s scanner) (*domain.ReferenceValue, error) {
	ref := &domain.ReferenceValue{}
	var category, gender string
	var description sql.NullString

	err := s.Scan(
		&ref.ID, &category, &ref.TestName, &ref.TestUnit, &ref.MinValue, &ref.MaxValue,
		&gender, &ref.AgeMin, &ref.AgeMax, &description, &ref.CreatedAt, &ref.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	ref.TestCategory = domain.ReportType(category)
	ref.Gender = domain.ReferenceGender(gender)
	ref.Description = description.String
	return ref, nil
}

func (s *sqlStore) query(ctx context.Context, query string, args ...interface{}) ([]*domain.ReferenceValue, error) {
	rows, err := s.db.QueryContext(ctx, s.bind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reference values: %w", err)
	}
	defer rows.Close()

	result := make([]*domain.ReferenceValue, 0)
	for rows.Next() {
		ref, err := scanReference(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, ref)
	}
	return result, rows.Err()
}

// findDuplicate returns the id of another row with the same criteria, or "".
func (s *sqlStore) findDuplicate(ctx context.Context, ref *domain.ReferenceValue) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, s.bind(`
		SELECT id FROM reference_values
		WHERE test_category = ? AND test_name = ? AND gender = ? AND age_min = ? AND age_max = ? AND id <> ?
		LIMIT 1
	`), string(ref.TestCategory), ref.TestName, string(ref.Gender), ref.AgeMin, ref.AgeMax, ref.ID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to check existing: %w", err)
	}
	return id, nil
}

// Create stores a new reference value.
func (s *sqlStore) Create(ctx context.Context, ref *domain.ReferenceValue) error {
	if err := ref.Validate(); err != nil {
		return err
	}

	dup, err := s.findDuplicate(ctx, ref)
	if err != nil {
		return err
	}
	if dup != "" {
		return domain.ErrDuplicateReference
	}

	if ref.ID == "" {
		ref.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	ref.CreatedAt = now
	ref.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, s.bind(`
		INSERT INTO reference_values (
			id, test_category, test_name, test_unit, min_value, max_value,
			gender, age_min, age_max, description, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`),
		ref.ID, string(ref.TestCategory), ref.TestName, ref.TestUnit, ref.MinValue, ref.MaxValue,
		string(ref.Gender), ref.AgeMin, ref.AgeMax, ref.Description, now, now,
	)
	if err != nil {
		if s.isDuplicate != nil && s.isDuplicate(err) {
			return domain.ErrDuplicateReference
		}
		return fmt.Errorf("failed to insert reference value: %w", err)
	}
	return nil
}

// Get returns a reference value by id.
func (s *sqlStore) Get(ctx context.Context, id string) (*domain.ReferenceValue, error) {
	row := s.db.QueryRowContext(ctx, s.bind(`SELECT `+selectColumns+` FROM reference_values WHERE id = ?`), id)

	ref, err := scanReference(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reference value %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reference value: %w", err)
	}
	return ref, nil
}

// List returns all reference values.
func (s *sqlStore) List(ctx context.Context) ([]*domain.ReferenceValue, error) {
	return s.query(ctx, `SELECT `+selectColumns+` FROM reference_values
		ORDER BY test_category ASC, test_name ASC, gender ASC, age_min ASC`)
}

// ListByCategory returns the reference values of one panel.
func (s *sqlStore) ListByCategory(ctx context.Context, category domain.ReportType) ([]*domain.ReferenceValue, error) {
	return s.query(ctx, `SELECT `+selectColumns+` FROM reference_values
		WHERE test_category = ?
		ORDER BY test_name ASC, gender ASC, age_min ASC`, string(category))
}

// ListByTestName returns the reference values of one test.
func (s *sqlStore) ListByTestName(ctx context.Context, testName string) ([]*domain.ReferenceValue, error) {
	return s.query(ctx, `SELECT `+selectColumns+` FROM reference_values
		WHERE test_name = ?
		ORDER BY test_category ASC, gender ASC, age_min ASC`, testName)
}

// Update replaces a stored reference value.
func (s *sqlStore) Update(ctx context.Context, ref *domain.ReferenceValue) error {
	if ref.ID == "" {
		return domain.NewValidationError("id", "id is required", nil)
	}
	if err := ref.Validate(); err != nil {
		return err
	}

	dup, err := s.findDuplicate(ctx, ref)
	if err != nil {
		return err
	}
	if dup != "" {
		return domain.ErrDuplicateReference
	}

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, s.bind(`
		UPDATE reference_values SET
			test_category = ?,
			test_name = ?,
			test_unit = ?,
			min_value = ?,
			max_value = ?,
			gender = ?,
			age_min = ?,
			age_max = ?,
			description = ?,
			updated_at = ?
		WHERE id = ?
	`),
		string(ref.TestCategory), ref.TestName, ref.TestUnit, ref.MinValue, ref.MaxValue,
		string(ref.Gender), ref.AgeMin, ref.AgeMax, ref.Description, now, ref.ID,
	)
	if err != nil {
		if s.isDuplicate != nil && s.isDuplicate(err) {
			return domain.ErrDuplicateReference
		}
		return fmt.Errorf("failed to update reference value: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("reference value %s: %w", ref.ID, domain.ErrNotFound)
	}
	ref.UpdatedAt = now
	return nil
}

// Delete removes a reference value by id.
func (s *sqlStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, s.bind(`DELETE FROM reference_values WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete reference value: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("reference value %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Lookup resolves the reference value for a patient.
func (s *sqlStore) Lookup(ctx context.Context, category domain.ReportType, testName string, gender domain.Gender, age int) (*domain.ReferenceValue, error) {
	row := s.db.QueryRowContext(ctx, s.bind(`SELECT `+selectColumns+` FROM reference_values
		WHERE test_category = ? AND test_name = ?
			AND (gender = ? OR gender = 'both')
			AND age_min <= ? AND age_max >= ?
		ORDER BY CASE WHEN gender = 'both' THEN 1 ELSE 0 END, (age_max - age_min) ASC
		LIMIT 1`),
		string(category), testName, string(gender), age, age,
	)

	ref, err := scanReference(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up reference value: %w", err)
	}
	return ref, nil
}

// Count returns the total number of reference values.
func (s *sqlStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reference_values").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count reference values: %w", err)
	}
	return count, nil
}

// ExportJSON exports all reference values to a JSON writer.
func (s *sqlStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list reference values: %w", err)
	}

	export := &Export{
		Version:         exportVersion,
		ExportedAt:      time.Now().UTC(),
		Count:           len(all),
		ReferenceValues: all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// ImportJSON imports reference values, skipping ones whose criteria already exist.
func (s *sqlStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	var export Export
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, ref := range export.ReferenceValues {
		if ref == nil {
			continue
		}
		ref.ID = ""
		err := s.Create(ctx, ref)
		if errors.Is(err, domain.ErrDuplicateReference) {
			skipped++
			continue
		}
		if err != nil {
			return imported, skipped, fmt.Errorf("failed to save %s: %w", ref.TestName, err)
		}
		imported++
	}

	return imported, skipped, nil
}

// Close closes the store and releases resources.
func (s *sqlStore) Close() error {
	return s.db.Close()
}
