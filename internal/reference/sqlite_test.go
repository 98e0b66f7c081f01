package reference

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labpanel-mcp-server/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func createTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "reference.db"))
	require.NoError(t, err)
	return store
}

func hbMale() *domain.ReferenceValue {
	return &domain.ReferenceValue{
		TestCategory: domain.ReportTypeCBC,
		TestName:     "Hb",
		TestUnit:     "g/dL",
		MinValue:     13,
		MaxValue:     17,
		Gender:       domain.ReferenceGenderMale,
		AgeMin:       18,
		AgeMax:       150,
	}
}

func TestNewSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "reference.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "Database file should exist")
	assert.Equal(t, dbPath, store.Path())
}

func TestSQLiteStore_CreateAndGet(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	ref := hbMale()
	require.NoError(t, store.Create(ctx, ref))
	assert.NotEmpty(t, ref.ID)
	assert.False(t, ref.CreatedAt.IsZero())

	got, err := store.Get(ctx, ref.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReportTypeCBC, got.TestCategory)
	assert.Equal(t, "Hb", got.TestName)
	assert.Equal(t, 13.0, got.MinValue)
	assert.Equal(t, 17.0, got.MaxValue)
	assert.Equal(t, domain.ReferenceGenderMale, got.Gender)
	assert.Equal(t, 18, got.AgeMin)
}

func TestSQLiteStore_CreateRejectsDuplicate(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, hbMale()))
	err := store.Create(ctx, hbMale())
	assert.ErrorIs(t, err, domain.ErrDuplicateReference)

	other := hbMale()
	other.Gender = domain.ReferenceGenderFemale
	assert.NoError(t, store.Create(ctx, other))
}

func TestSQLiteStore_CreateValidates(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ref := hbMale()
	ref.MinValue, ref.MaxValue = 20, 10

	err := store.Create(context.Background(), ref)
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "min_value", vErr.Field)
}

func TestSQLiteStore_GetNotFound(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLiteStore_ListOrdering(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	tsh := &domain.ReferenceValue{TestCategory: domain.ReportTypeThyroid, TestName: "TSH", MinValue: 0.4, MaxValue: 4}
	hbFemale := hbMale()
	hbFemale.Gender = domain.ReferenceGenderFemale
	hbChild := hbMale()
	hbChild.AgeMin, hbChild.AgeMax = 1, 17
	plt := &domain.ReferenceValue{TestCategory: domain.ReportTypeCBC, TestName: "Platelet Count", MinValue: 150, MaxValue: 450}

	for _, ref := range []*domain.ReferenceValue{tsh, hbMale(), hbFemale, hbChild, plt} {
		require.NoError(t, store.Create(ctx, ref))
	}

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 5)

	type key struct {
		category domain.ReportType
		test     string
		gender   domain.ReferenceGender
		ageMin   int
	}
	got := make([]key, 0, len(all))
	for _, r := range all {
		got = append(got, key{r.TestCategory, r.TestName, r.Gender, r.AgeMin})
	}
	assert.Equal(t, []key{
		{domain.ReportTypeCBC, "Hb", domain.ReferenceGenderFemale, 18},
		{domain.ReportTypeCBC, "Hb", domain.ReferenceGenderMale, 1},
		{domain.ReportTypeCBC, "Hb", domain.ReferenceGenderMale, 18},
		{domain.ReportTypeCBC, "Platelet Count", domain.ReferenceGenderBoth, 0},
		{domain.ReportTypeThyroid, "TSH", domain.ReferenceGenderBoth, 0},
	}, got)

	byCategory, err := store.ListByCategory(ctx, domain.ReportTypeThyroid)
	require.NoError(t, err)
	require.Len(t, byCategory, 1)
	assert.Equal(t, "TSH", byCategory[0].TestName)

	byTest, err := store.ListByTestName(ctx, "Hb")
	require.NoError(t, err)
	assert.Len(t, byTest, 3)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)
}

func TestSQLiteStore_UpdateAndDelete(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	ref := hbMale()
	require.NoError(t, store.Create(ctx, ref))

	ref.MaxValue = 18
	ref.Description = "adjusted"
	require.NoError(t, store.Update(ctx, ref))

	got, err := store.Get(ctx, ref.ID)
	require.NoError(t, err)
	assert.Equal(t, 18.0, got.MaxValue)
	assert.Equal(t, "adjusted", got.Description)

	missing := hbMale()
	missing.ID = "does-not-exist"
	missing.Gender = domain.ReferenceGenderOther
	assert.ErrorIs(t, store.Update(ctx, missing), domain.ErrNotFound)

	require.NoError(t, store.Delete(ctx, ref.ID))
	assert.ErrorIs(t, store.Delete(ctx, ref.ID), domain.ErrNotFound)
}

func TestSQLiteStore_UpdateRejectsCollision(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	male := hbMale()
	female := hbMale()
	female.Gender = domain.ReferenceGenderFemale
	require.NoError(t, store.Create(ctx, male))
	require.NoError(t, store.Create(ctx, female))

	female.Gender = domain.ReferenceGenderMale
	assert.ErrorIs(t, store.Update(ctx, female), domain.ErrDuplicateReference)
}

func TestSQLiteStore_Lookup(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	both := hbMale()
	both.Gender = domain.ReferenceGenderBoth
	both.AgeMin, both.AgeMax = 0, 150
	both.MinValue, both.MaxValue = 11, 18
	require.NoError(t, store.Create(ctx, both))
	require.NoError(t, store.Create(ctx, hbMale()))

	tests := []struct {
		name    string
		gender  domain.Gender
		age     int
		wantMin float64
	}{
		{"gender specific row wins", domain.GenderMale, 40, 13},
		{"falls back to both", domain.GenderFemale, 40, 11},
		{"age outside specific window", domain.GenderMale, 10, 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := store.Lookup(ctx, domain.ReportTypeCBC, "Hb", tt.gender, tt.age)
			require.NoError(t, err)
			require.NotNil(t, ref)
			assert.Equal(t, tt.wantMin, ref.MinValue)
		})
	}

	ref, err := store.Lookup(ctx, domain.ReportTypeThyroid, "TSH", domain.GenderMale, 40)
	require.NoError(t, err)
	assert.Nil(t, ref)
}

func TestSQLiteStore_ExportImport(t *testing.T) {
	source := createTestStore(t)
	defer source.Close()
	ctx := context.Background()

	added, err := SeedDefaults(ctx, source)
	require.NoError(t, err)
	assert.Equal(t, len(DefaultValues()), added)

	var buf bytes.Buffer
	require.NoError(t, source.ExportJSON(ctx, &buf))
	assert.Contains(t, buf.String(), `"version": "1.0"`)

	target := createTestStore(t)
	defer target.Close()
	require.NoError(t, target.Create(ctx, hbMale()))

	imported, skipped, err := target.ImportJSON(ctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, added-1, imported)
}

func TestSeedDefaults_SkipsPopulatedStore(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, hbMale()))
	added, err := SeedDefaults(ctx, store)
	require.NoError(t, err)
	assert.Zero(t, added)
}
