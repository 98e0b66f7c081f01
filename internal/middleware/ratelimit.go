package middleware

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

const maxTrackedClients = 10000

// ClientRateLimiter hands out a token bucket per client IP. The least recently
// seen clients are forgotten once maxTrackedClients is reached.
type ClientRateLimiter struct {
	limit   rate.Limit
	burst   int
	mu      sync.Mutex
	clients *lru.Cache[string, *rate.Limiter]
}

// NewClientRateLimiter creates a limiter allowing perSecond requests with the given burst.
func NewClientRateLimiter(perSecond float64, burst int) *ClientRateLimiter {
	if burst < 1 {
		burst = 1
	}
	clients, _ := lru.New[string, *rate.Limiter](maxTrackedClients)
	return &ClientRateLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		clients: clients,
	}
}

// Allow reports whether the client may make a request now.
func (l *ClientRateLimiter) Allow(client string) bool {
	l.mu.Lock()
	limiter, ok := l.clients.Get(client)
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.clients.Add(client, limiter)
	}
	l.mu.Unlock()
	return limiter.Allow()
}

// RateLimit rejects requests over the per-client rate with 429. A
// non-positive rate disables limiting.
func RateLimit(perSecond float64, burst int) gin.HandlerFunc {
	if perSecond <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	limiter := NewClientRateLimiter(perSecond, burst)
	retryAfter := strconv.Itoa(int(1/perSecond) + 1)

	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":          "Rate limit exceeded",
				"correlation_id": c.GetString("correlation_id"),
			})
			return
		}
		c.Next()
	}
}
