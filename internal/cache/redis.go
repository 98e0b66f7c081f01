package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/labpanel-mcp-server/internal/domain"
)

const analysisKeyPrefix = "labpanel:analysis:"

// cachedAnalysis represents a cached analysis with metadata
type cachedAnalysis struct {
	Data      *domain.AnalysisResult `json:"data"`
	CachedAt  time.Time              `json:"cached_at"`
	ExpiresAt time.Time              `json:"expires_at"`
}

// RedisCache stores analysis results in Redis so several server instances share them.
type RedisCache struct {
	client     *redis.Client
	defaultTTL time.Duration
	logger     *logrus.Logger
}

// NewRedisCache connects to the Redis instance named by config.RedisURL.
func NewRedisCache(config domain.CacheConfig, logger *logrus.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}
	if config.MaxRetries > 0 {
		opts.MaxRetries = config.MaxRetries
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisCacheFromClient(client, config.DefaultTTL, logger), nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client, ttl time.Duration, logger *logrus.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisCache{client: client, defaultTTL: ttl, logger: logger}
}

// Get retrieves a cached analysis. Redis failures are logged and reported as misses.
func (r *RedisCache) Get(ctx context.Context, key string) (*domain.AnalysisResult, bool) {
	result, ok, err := r.fetch(ctx, key)
	if err != nil {
		r.logger.WithError(err).WithField("key", key).Warn("Redis cache read failed")
		return nil, false
	}
	return result, ok
}

func (r *RedisCache) fetch(ctx context.Context, key string) (*domain.AnalysisResult, bool, error) {
	redisKey := analysisKeyPrefix + key

	val, err := r.client.Get(ctx, redisKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get analysis cache: %w", err)
	}

	var cached cachedAnalysis
	if err := json.Unmarshal(val, &cached); err != nil || cached.Data == nil {
		// Remove corrupted cache entry
		r.client.Del(ctx, redisKey)
		return nil, false, nil
	}

	if time.Now().After(cached.ExpiresAt) {
		r.client.Del(ctx, redisKey)
		return nil, false, nil
	}

	return cached.Data, true, nil
}

// Set caches an analysis for the default TTL. Failures are logged.
func (r *RedisCache) Set(ctx context.Context, key string, result *domain.AnalysisResult) {
	if err := r.SetWithTTL(ctx, key, result, r.defaultTTL); err != nil {
		r.logger.WithError(err).WithField("key", key).Warn("Redis cache write failed")
	}
}

// SetWithTTL caches an analysis for ttl.
func (r *RedisCache) SetWithTTL(ctx context.Context, key string, result *domain.AnalysisResult, ttl time.Duration) error {
	if result == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = r.defaultTTL
	}

	now := time.Now()
	data, err := json.Marshal(cachedAnalysis{
		Data:      result,
		CachedAt:  now,
		ExpiresAt: now.Add(ttl),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal analysis cache data: %w", err)
	}

	return r.client.Set(ctx, analysisKeyPrefix+key, data, ttl).Err()
}

// Delete removes a cached analysis.
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, analysisKeyPrefix+key).Err()
}

// Ping checks the connection.
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (r *RedisCache) Close() error {
	return r.client.Close()
}
