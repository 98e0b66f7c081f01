package cache

import (
	"context"
	"io"
	"os"
	"sync"
	"testing"
	"time"

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

func sampleResult(fileName string) *domain.AnalysisResult {
	tests := domain.NewTestSet()
	tests.Add(domain.TestResult{
		TestName:    "Hemoglobin",
		Value:       13.5,
		Unit:        "g/dL",
		NormalRange: domain.MustIntervalRange(12, 16),
	})
	return &domain.AnalysisResult{
		FileName:   fileName,
		ReportType: domain.ReportTypeCBC,
		Parse: &domain.ParseResult{
			Success:    true,
			Data:       tests,
			ReportType: domain.ReportTypeCBC,
		},
		Timestamp: time.Now().UTC().Truncate(time.Second),
	}
}

func TestMemoryCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(10, time.Minute)

	_, ok := c.Get(ctx, "missing")
	assert.False(t, ok)

	c.Set(ctx, "k1", sampleResult("a.pdf"))
	got, ok := c.Get(ctx, "k1")
	require.True(t, ok)
	assert.Equal(t, "a.pdf", got.FileName)

	c.Set(ctx, "nil", nil)
	_, ok = c.Get(ctx, "nil")
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
	assert.Equal(t, 1, stats.Items)
	assert.InDelta(t, 1.0/3.0, stats.HitRate, 1e-9)
}

func TestMemoryCache_Eviction(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(2, time.Minute)

	c.Set(ctx, "a", sampleResult("a"))
	c.Set(ctx, "b", sampleResult("b"))
	_, _ = c.Get(ctx, "a")
	c.Set(ctx, "c", sampleResult("c"))

	_, ok := c.Get(ctx, "b")
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = c.Get(ctx, "a")
	assert.True(t, ok)
	_, ok = c.Get(ctx, "c")
	assert.True(t, ok)
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(10, 50*time.Millisecond)

	c.Set(ctx, "k", sampleResult("k"))
	time.Sleep(150 * time.Millisecond)

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryCache_DeleteAndPurge(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0, 0)

	c.Set(ctx, "a", sampleResult("a"))
	c.Set(ctx, "b", sampleResult("b"))
	c.Delete(ctx, "a")
	_, ok := c.Get(ctx, "a")
	assert.False(t, ok)

	c.Purge()
	assert.Equal(t, 0, c.Stats().Items)
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(100, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i))
			c.Set(ctx, key, sampleResult(key))
			_, _ = c.Get(ctx, key)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, c.Stats().Items)
}

type fakeTier struct {
	mu    sync.Mutex
	items map[string]*domain.AnalysisResult
	sets  int
}

func newFakeTier() *fakeTier {
	return &fakeTier{items: make(map[string]*domain.AnalysisResult)}
}

func (f *fakeTier) Get(_ context.Context, key string) (*domain.AnalysisResult, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.items[key]
	return r, ok
}

func (f *fakeTier) Set(_ context.Context, key string, result *domain.AnalysisResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[key] = result
	f.sets++
}

func TestTieredCache(t *testing.T) {
	ctx := context.Background()

	t.Run("write through both tiers", func(t *testing.T) {
		shared := newFakeTier()
		c := NewTieredCache(NewMemoryCache(10, time.Minute), shared, testLogger())

		c.Set(ctx, "k", sampleResult("k"))
		assert.Equal(t, 1, shared.sets)

		got, ok := c.Get(ctx, "k")
		require.True(t, ok)
		assert.Equal(t, "k", got.FileName)
	})

	t.Run("shared hit back-fills memory", func(t *testing.T) {
		shared := newFakeTier()
		shared.items["k"] = sampleResult("shared")
		memory := NewMemoryCache(10, time.Minute)
		c := NewTieredCache(memory, shared, testLogger())

		got, ok := c.Get(ctx, "k")
		require.True(t, ok)
		assert.Equal(t, "shared", got.FileName)

		_, ok = memory.Get(ctx, "k")
		assert.True(t, ok)
	})

	t.Run("memory only", func(t *testing.T) {
		c := NewTieredCache(NewMemoryCache(10, time.Minute), nil, testLogger())
		_, ok := c.Get(ctx, "absent")
		assert.False(t, ok)
		c.Set(ctx, "k", sampleResult("k"))
		_, ok = c.Get(ctx, "k")
		assert.True(t, ok)
	})
}

func TestNew_WithoutRedis(t *testing.T) {
	c, closer := New(domain.CacheConfig{MaxItems: 5, DefaultTTL: time.Minute}, testLogger())
	require.NotNil(t, c)
	assert.Nil(t, c.shared)
	assert.NoError(t, closer())
}

func TestNew_UnreachableRedisFallsBack(t *testing.T) {
	c, closer := New(domain.CacheConfig{RedisURL: "not a url"}, testLogger())
	require.NotNil(t, c)
	assert.Nil(t, c.shared)
	assert.NoError(t, closer())
}

func TestRedisCache(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}

	ctx := context.Background()
	rc, err := NewRedisCache(domain.CacheConfig{RedisURL: url, DefaultTTL: time.Minute}, testLogger())
	require.NoError(t, err)
	defer rc.Close()

	key := "test-" + time.Now().Format("150405.000000")
	defer rc.Delete(ctx, key)

	_, ok := rc.Get(ctx, key)
	assert.False(t, ok)

	rc.Set(ctx, key, sampleResult("redis.pdf"))
	got, ok := rc.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, "redis.pdf", got.FileName)
	require.NotNil(t, got.Parse)
	hb, found := got.Parse.Data.Get("Hemoglobin")
	require.True(t, found)
	assert.Equal(t, 13.5, hb.Value)

	require.NoError(t, rc.client.Set(ctx, analysisKeyPrefix+key, "{broken", time.Minute).Err())
	_, ok = rc.Get(ctx, key)
	assert.False(t, ok, "corrupted entries are treated as misses")
}
