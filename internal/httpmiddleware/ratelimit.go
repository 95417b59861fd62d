package httpmiddleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"entrypass/internal/metrics"
)

// TokenBucket is an in-memory per-client rate limiter refilled every minute.
type TokenBucket struct {
	capacity int
	rate     int
	skip     map[string]struct{}
	metrics  *metrics.Metrics
	now      func() time.Time

	mu    sync.Mutex
	state map[string]*bucket
}

type bucket struct {
	tokens int
	last   time.Time
}

// NewTokenBucket creates a limiter with capacity tokens refilled at perMinute.
// Requests to skipPaths are never limited.
func NewTokenBucket(capacity, perMinute int, m *metrics.Metrics, skipPaths ...string) *TokenBucket {
	if capacity <= 0 {
		capacity = perMinute
	}
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}
	return &TokenBucket{
		capacity: capacity,
		rate:     perMinute,
		skip:     skip,
		metrics:  m,
		now:      time.Now,
		state:    make(map[string]*bucket),
	}
}

// Middleware enforces per-IP limits and answers 429 when a bucket is empty.
func (l *TokenBucket) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := l.skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if !l.allow(ip) {
			l.metrics.RateLimited()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}

func (l *TokenBucket) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.state[key]
	now := l.now()
	if !ok {
		b = &bucket{tokens: l.capacity - 1, last: now}
		l.state[key] = b
		return true
	}
	elapsed := now.Sub(b.last).Minutes()
	refill := int(elapsed * float64(l.rate))
	if refill > 0 {
		b.tokens += refill
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}
