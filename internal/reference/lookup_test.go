package reference

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labpanel-mcp-server/internal/domain"
)

// stubStore serves Lookup from a function and counts calls.
type stubStore struct {
	Store
	calls  atomic.Int32
	lookup func() (*domain.ReferenceValue, error)
}

func (s *stubStore) Lookup(context.Context, domain.ReportType, string, domain.Gender, int) (*domain.ReferenceValue, error) {
	s.calls.Add(1)
	return s.lookup()
}

func TestResilientLookup_CachesHitsAndMisses(t *testing.T) {
	ref := hbMale()
	store := &stubStore{lookup: func() (*domain.ReferenceValue, error) { return ref, nil }}
	lookup, err := NewResilientLookup(store, domain.ReferenceConfig{CacheSize: 10, CacheTTL: time.Minute}, testLogger())
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := lookup.Lookup(ctx, domain.ReportTypeCBC, "Hb", domain.GenderMale, 40)
		require.NoError(t, err)
		assert.Same(t, ref, got)
	}
	assert.Equal(t, int32(1), store.calls.Load())

	// A different patient is a different key.
	_, err = lookup.Lookup(ctx, domain.ReportTypeCBC, "Hb", domain.GenderMale, 41)
	require.NoError(t, err)
	assert.Equal(t, int32(2), store.calls.Load())

	empty := &stubStore{lookup: func() (*domain.ReferenceValue, error) { return nil, nil }}
	missLookup, err := NewResilientLookup(empty, domain.ReferenceConfig{}, testLogger())
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		got, err := missLookup.Lookup(ctx, domain.ReportTypeThyroid, "TSH", domain.GenderFemale, 30)
		require.NoError(t, err)
		assert.Nil(t, got)
	}
	assert.Equal(t, int32(1), empty.calls.Load(), "negative results are cached too")
}

func TestResilientLookup_ExpiryAndInvalidate(t *testing.T) {
	store := &stubStore{lookup: func() (*domain.ReferenceValue, error) { return hbMale(), nil }}
	lookup, err := NewResilientLookup(store, domain.ReferenceConfig{CacheTTL: 30 * time.Millisecond}, testLogger())
	require.NoError(t, err)
	ctx := context.Background()

	_, _ = lookup.Lookup(ctx, domain.ReportTypeCBC, "Hb", domain.GenderMale, 40)
	time.Sleep(60 * time.Millisecond)
	_, _ = lookup.Lookup(ctx, domain.ReportTypeCBC, "Hb", domain.GenderMale, 40)
	assert.Equal(t, int32(2), store.calls.Load())

	lookup.Invalidate()
	_, _ = lookup.Lookup(ctx, domain.ReportTypeCBC, "Hb", domain.GenderMale, 40)
	assert.Equal(t, int32(3), store.calls.Load())
}

func TestResilientLookup_BreakerOpens(t *testing.T) {
	store := &stubStore{lookup: func() (*domain.ReferenceValue, error) { return nil, errors.New("connection refused") }}
	lookup, err := NewResilientLookup(store, domain.ReferenceConfig{}, testLogger())
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := lookup.Lookup(ctx, domain.ReportTypeCBC, "Hb", domain.GenderMale, 40)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reference lookup failed")
	}
	assert.Equal(t, gobreaker.StateOpen, lookup.State())

	_, err = lookup.Lookup(ctx, domain.ReportTypeCBC, "Hb", domain.GenderMale, 40)
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(3), store.calls.Load(), "open breaker short-circuits the store")
}
