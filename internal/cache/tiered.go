package cache

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/labpanel-mcp-server/internal/domain"
)

// Tier is one level of a TieredCache.
type Tier interface {
	Get(ctx context.Context, key string) (*domain.AnalysisResult, bool)
	Set(ctx context.Context, key string, result *domain.AnalysisResult)
}

// TieredCache checks an in-process tier before an optional shared tier and
// back-fills the first tier on a shared hit.
type TieredCache struct {
	memory *MemoryCache
	shared Tier
	logger *logrus.Logger
}

// NewTieredCache creates a two level cache. shared may be nil.
func NewTieredCache(memory *MemoryCache, shared Tier, logger *logrus.Logger) *TieredCache {
	return &TieredCache{memory: memory, shared: shared, logger: logger}
}

// Get implements the analysis cache lookup.
func (t *TieredCache) Get(ctx context.Context, key string) (*domain.AnalysisResult, bool) {
	if result, ok := t.memory.Get(ctx, key); ok {
		t.logger.WithField("key", key).Debug("Analysis cache hit (memory)")
		return result, true
	}
	if t.shared == nil {
		return nil, false
	}
	result, ok := t.shared.Get(ctx, key)
	if !ok {
		return nil, false
	}
	t.logger.WithField("key", key).Debug("Analysis cache hit (shared)")
	t.memory.Set(ctx, key, result)
	return result, true
}

// Set writes through both tiers.
func (t *TieredCache) Set(ctx context.Context, key string, result *domain.AnalysisResult) {
	t.memory.Set(ctx, key, result)
	if t.shared != nil {
		t.shared.Set(ctx, key, result)
	}
}

// Stats returns the memory tier counters.
func (t *TieredCache) Stats() Stats {
	return t.memory.Stats()
}

// New builds the analysis cache described by config. A Redis tier is added
// when RedisURL is set and reachable; otherwise only memory is used.
func New(config domain.CacheConfig, logger *logrus.Logger) (*TieredCache, func() error) {
	memory := NewMemoryCache(config.MaxItems, config.DefaultTTL)
	closer := func() error { return nil }

	if config.RedisURL == "" {
		return NewTieredCache(memory, nil, logger), closer
	}

	redisCache, err := NewRedisCache(config, logger)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, using memory cache only")
		return NewTieredCache(memory, nil, logger), closer
	}
	logger.Info("Analysis cache backed by Redis")
	return NewTieredCache(memory, redisCache, logger), redisCache.Close
}
