package reference

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labpanel-mcp-server/internal/domain"
)

func newTestManager(t *testing.T) (*Manager, *SQLiteStore) {
	t.Helper()
	store := createTestStore(t)
	lookup, err := NewResilientLookup(store, domain.ReferenceConfig{CacheTTL: time.Hour}, testLogger())
	require.NoError(t, err)
	return NewManager(store, lookup, testLogger()), store
}

func TestManager_UpdateInvalidatesLookups(t *testing.T) {
	manager, store := newTestManager(t)
	defer store.Close()
	ctx := context.Background()

	ref := hbMale()
	require.NoError(t, manager.Create(ctx, ref))

	got, err := manager.Lookup(ctx, domain.ReportTypeCBC, "Hb", domain.GenderMale, 40)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 17.0, got.MaxValue)

	newMax := 18.5
	updated, err := manager.Update(ctx, ref.ID, Patch{MaxValue: &newMax})
	require.NoError(t, err)
	assert.Equal(t, 18.5, updated.MaxValue)
	assert.Equal(t, 13.0, updated.MinValue, "unset fields are kept")

	got, err = manager.Lookup(ctx, domain.ReportTypeCBC, "Hb", domain.GenderMale, 40)
	require.NoError(t, err)
	assert.Equal(t, 18.5, got.MaxValue)

	require.NoError(t, manager.Delete(ctx, ref.ID))
	got, err = manager.Lookup(ctx, domain.ReportTypeCBC, "Hb", domain.GenderMale, 40)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestManager_UpdateValidation(t *testing.T) {
	manager, store := newTestManager(t)
	defer store.Close()
	ctx := context.Background()

	ref := hbMale()
	require.NoError(t, manager.Create(ctx, ref))

	badMin := 30.0
	_, err := manager.Update(ctx, ref.ID, Patch{MinValue: &badMin})
	var vErr *domain.ValidationError
	assert.ErrorAs(t, err, &vErr)

	_, err = manager.Update(ctx, "missing", Patch{MinValue: &badMin})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestManager_List(t *testing.T) {
	manager, store := newTestManager(t)
	defer store.Close()
	ctx := context.Background()

	_, err := SeedDefaults(ctx, store)
	require.NoError(t, err)

	thyroid, err := manager.List(ctx, domain.ReportTypeThyroid, "")
	require.NoError(t, err)
	assert.Len(t, thyroid, 5)

	hb, err := manager.List(ctx, "", "Hb")
	require.NoError(t, err)
	assert.Len(t, hb, 2)

	_, err = manager.List(ctx, "Lipid", "")
	assert.ErrorIs(t, err, domain.ErrInvalidReportType)

	all, err := manager.List(ctx, "", "")
	require.NoError(t, err)
	assert.Len(t, all, len(DefaultValues()))
}

func TestManager_ExportImport(t *testing.T) {
	manager, store := newTestManager(t)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, manager.Create(ctx, hbMale()))
	var buf bytes.Buffer
	require.NoError(t, manager.Export(ctx, &buf))

	imported, skipped, err := manager.Import(ctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Zero(t, imported)
	assert.Equal(t, 1, skipped)
}
