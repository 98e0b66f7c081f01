package reference

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/labpanel-mcp-server/internal/domain"
)

// ResilientLookup fronts a Store with an in-memory LRU and a circuit breaker
// so report analysis keeps working when the reference database degrades.
type ResilientLookup struct {
	store   Store
	cache   *lru.Cache
	ttl     time.Duration
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
	logger  *logrus.Logger
}

// cacheEntry represents a cached lookup with expiration. A nil value records
// that no reference applies.
type cacheEntry struct {
	value  *domain.ReferenceValue
	expiry time.Time
}

func (e *cacheEntry) isExpired() bool {
	return time.Now().After(e.expiry)
}

// NewResilientLookup creates a cached, circuit-broken lookup over store.
func NewResilientLookup(store Store, config domain.ReferenceConfig, logger *logrus.Logger) (*ResilientLookup, error) {
	size := config.CacheSize
	if size <= 0 {
		size = 512
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}

	ttl := config.CacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	l := &ResilientLookup{
		store:   store,
		cache:   cache,
		ttl:     ttl,
		timeout: timeout,
		logger:  logger,
	}

	l.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ReferenceStore",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"circuit_breaker": name,
				"from_state":      from.String(),
				"to_state":        to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return l, nil
}

// Lookup implements domain.ReferenceLookup.
func (l *ResilientLookup) Lookup(ctx context.Context, category domain.ReportType, testName string, gender domain.Gender, age int) (*domain.ReferenceValue, error) {
	key := cacheKey(category, testName, gender, age)

	if value, ok := l.cache.Get(key); ok {
		if entry, ok := value.(*cacheEntry); ok && !entry.isExpired() {
			return entry.value, nil
		}
		l.cache.Remove(key)
	}

	result, err := l.breaker.Execute(func() (interface{}, error) {
		lookupCtx, cancel := context.WithTimeout(ctx, l.timeout)
		defer cancel()
		return l.store.Lookup(lookupCtx, category, testName, gender, age)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("reference store unavailable: %w", err)
		}
		return nil, fmt.Errorf("reference lookup failed: %w", err)
	}

	ref, _ := result.(*domain.ReferenceValue)
	l.cache.Add(key, &cacheEntry{value: ref, expiry: time.Now().Add(l.ttl)})
	return ref, nil
}

// Invalidate drops every cached lookup. Call it after reference values change.
func (l *ResilientLookup) Invalidate() {
	l.cache.Purge()
}

// State returns the circuit breaker state.
func (l *ResilientLookup) State() gobreaker.State {
	return l.breaker.State()
}

func cacheKey(category domain.ReportType, testName string, gender domain.Gender, age int) string {
	return string(category) + "|" + testName + "|" + string(gender) + "|" + strconv.Itoa(age)
}
