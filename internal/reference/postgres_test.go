package reference

import (
	"context"
	"database/sql"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labpanel-mcp-server/internal/domain"
)

var referenceColumns = []string{
	"id", "test_category", "test_name", "test_unit", "min_value", "max_value",
	"gender", "age_min", "age_max", "description", "created_at", "updated_at",
}

func setupMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	store, err := NewPostgresStore(db)
	require.NoError(t, err)
	return store, mock
}

func TestNewPostgresStore_NilDB(t *testing.T) {
	_, err := NewPostgresStore(nil)
	assert.Error(t, err)
}

func TestSQLStore_Bind(t *testing.T) {
	pg := &sqlStore{numbered: true}
	assert.Equal(t, "a = $1 AND b = $2", pg.bind("a = ? AND b = ?"))

	lite := &sqlStore{}
	assert.Equal(t, "a = ?", lite.bind("a = ?"))
}

func TestPostgresStore_Create(t *testing.T) {
	store, mock := setupMockStore(t)
	defer store.Close()

	ref := hbMale()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM reference_values")).
		WithArgs("CBC", "Hb", "male", 18, 150, "").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO reference_values")).
		WithArgs(sqlmock.AnyArg(), "CBC", "Hb", "g/dL", 13.0, 17.0, "male", 18, 150, "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, store.Create(context.Background(), ref))
	assert.NotEmpty(t, ref.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateDuplicate(t *testing.T) {
	store, mock := setupMockStore(t)
	defer store.Close()

	t.Run("existing row", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM reference_values")).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("existing"))

		err := store.Create(context.Background(), hbMale())
		assert.ErrorIs(t, err, domain.ErrDuplicateReference)
	})

	t.Run("unique violation on insert", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM reference_values")).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO reference_values")).
			WillReturnError(&pq.Error{Code: uniqueViolation})

		err := store.Create(context.Background(), hbMale())
		assert.ErrorIs(t, err, domain.ErrDuplicateReference)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get(t *testing.T) {
	store, mock := setupMockStore(t)
	defer store.Close()
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM reference_values WHERE id = $1")).
		WithArgs("ref-1").
		WillReturnRows(sqlmock.NewRows(referenceColumns).
			AddRow("ref-1", "Thyroid", "TSH", "μU/mL", 0.4, 4.0, "both", 0, 150, nil, now, now))

	ref, err := store.Get(context.Background(), "ref-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ReportTypeThyroid, ref.TestCategory)
	assert.Equal(t, domain.ReferenceGenderBoth, ref.Gender)
	assert.Empty(t, ref.Description)

	mock.ExpectQuery(regexp.QuoteMeta("FROM reference_values WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err = store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Lookup(t *testing.T) {
	store, mock := setupMockStore(t)
	defer store.Close()
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("(gender = $3 OR gender = 'both')")).
		WithArgs("CBC", "Hb", "female", 30, 30).
		WillReturnRows(sqlmock.NewRows(referenceColumns).
			AddRow("ref-2", "CBC", "Hb", "g/dL", 12.0, 15.5, "female", 18, 150, "adult", now, now))

	ref, err := store.Lookup(context.Background(), domain.ReportTypeCBC, "Hb", domain.GenderFemale, 30)
	require.NoError(t, err)
	require.NotNil(t, ref)
	assert.Equal(t, 12.0, ref.MinValue)

	mock.ExpectQuery(regexp.QuoteMeta("(gender = $3 OR gender = 'both')")).
		WillReturnRows(sqlmock.NewRows(referenceColumns))

	ref, err = store.Lookup(context.Background(), domain.ReportTypeCBC, "MCV", domain.GenderFemale, 30)
	require.NoError(t, err)
	assert.Nil(t, ref)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Delete(t *testing.T) {
	store, mock := setupMockStore(t)
	defer store.Close()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM reference_values WHERE id = $1")).
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Delete(context.Background(), "gone")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestPostgresStore_Integration runs against a real database when TEST_DATABASE_URL is set.
func TestPostgresStore_Integration(t *testing.T) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping PostgreSQL tests")
	}

	store, err := NewPostgresStoreFromURL(dbURL)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.db.Exec(`
		CREATE TABLE IF NOT EXISTS reference_values (
			id TEXT PRIMARY KEY,
			test_category TEXT NOT NULL,
			test_name TEXT NOT NULL,
			test_unit TEXT NOT NULL DEFAULT '',
			min_value DOUBLE PRECISION NOT NULL,
			max_value DOUBLE PRECISION NOT NULL,
			gender TEXT NOT NULL DEFAULT 'both',
			age_min INTEGER NOT NULL DEFAULT 0,
			age_max INTEGER NOT NULL DEFAULT 150,
			description TEXT DEFAULT '',
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			UNIQUE (test_category, test_name, gender, age_min, age_max)
		)
	`)
	require.NoError(t, err)
	_, err = store.db.Exec("DELETE FROM reference_values")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Create(ctx, hbMale()))
	assert.ErrorIs(t, store.Create(ctx, hbMale()), domain.ErrDuplicateReference)

	ref, err := store.Lookup(ctx, domain.ReportTypeCBC, "Hb", domain.GenderMale, 45)
	require.NoError(t, err)
	require.NotNil(t, ref)
	assert.Equal(t, 17.0, ref.MaxValue)
}
