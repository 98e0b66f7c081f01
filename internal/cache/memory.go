package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/labpanel-mcp-server/internal/domain"
)

const (
	defaultMaxItems = 1000
	defaultTTL      = time.Hour
)

// Stats reports cache effectiveness counters.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Items   int     `json:"items"`
	HitRate float64 `json:"hit_rate"`
}

// MemoryCache keeps analysis results in a bounded, expiring LRU.
type MemoryCache struct {
	lru    *expirable.LRU[string, *domain.AnalysisResult]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewMemoryCache creates a memory cache holding at most maxItems entries for ttl.
// Non-positive arguments fall back to 1000 items and one hour.
func NewMemoryCache(maxItems int, ttl time.Duration) *MemoryCache {
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &MemoryCache{
		lru: expirable.NewLRU[string, *domain.AnalysisResult](maxItems, nil, ttl),
	}
}

// Get returns the cached result for key.
func (m *MemoryCache) Get(_ context.Context, key string) (*domain.AnalysisResult, bool) {
	result, ok := m.lru.Get(key)
	if !ok {
		m.misses.Add(1)
		return nil, false
	}
	m.hits.Add(1)
	return result, true
}

// Set stores result under key, replacing any previous entry.
func (m *MemoryCache) Set(_ context.Context, key string, result *domain.AnalysisResult) {
	if result == nil {
		return
	}
	m.lru.Add(key, result)
}

// Delete removes key from the cache.
func (m *MemoryCache) Delete(_ context.Context, key string) {
	m.lru.Remove(key)
}

// Purge drops every entry.
func (m *MemoryCache) Purge() {
	m.lru.Purge()
}

// Stats returns the current counters.
func (m *MemoryCache) Stats() Stats {
	hits, misses := m.hits.Load(), m.misses.Load()
	s := Stats{Hits: hits, Misses: misses, Items: m.lru.Len()}
	if total := hits + misses; total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}
	return s
}
