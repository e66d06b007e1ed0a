package httpmiddleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// idleAfter is how long a client bucket may go unused before it is dropped.
const idleAfter = 10 * time.Minute

// RateLimiter is an in-memory token bucket per client IP.
type RateLimiter struct {
	capacity  float64
	perMinute float64
	now       func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	tokens float64
	seen   time.Time
}

// NewRateLimiter allows perMinute requests per client with bursts of up to
// burst (perMinute when burst is not positive). A non-positive perMinute
// disables limiting.
func NewRateLimiter(burst, perMinute int) *RateLimiter {
	if burst <= 0 {
		burst = perMinute
	}
	return &RateLimiter{
		capacity:  float64(burst),
		perMinute: float64(perMinute),
		now:       time.Now,
		buckets:   make(map[string]*bucket),
	}
}

// WithClock replaces the time source.
func (l *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	l.now = now
	return l
}

// Middleware rejects clients over their budget with 429 and Retry-After.
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.perMinute <= 0 {
			c.Next()
			return
		}
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if wait, ok := l.take(ip); !ok {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// Allow takes a token for key.
func (l *RateLimiter) Allow(key string) bool {
	_, ok := l.take(key)
	return ok
}

// take consumes a token, or reports how long until one is available.
func (l *RateLimiter) take(key string) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.sweep(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.capacity, seen: now}
		l.buckets[key] = b
	}
	b.tokens = math.Min(l.capacity, b.tokens+now.Sub(b.seen).Seconds()*l.perMinute/60)
	b.seen = now

	if b.tokens < 1 {
		return time.Duration((1 - b.tokens) * 60 / l.perMinute * float64(time.Second)), false
	}
	b.tokens--
	return 0, true
}

func (l *RateLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < idleAfter {
		return
	}
	for key, b := range l.buckets {
		if now.Sub(b.seen) >= idleAfter {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}
