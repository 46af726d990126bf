package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	appErrors "github.com/noah-isme/sma-scheduling-api/pkg/errors"
	"github.com/noah-isme/sma-scheduling-api/pkg/response"
)

const limiterIdleTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles requests per client IP with a token bucket.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	limit   rate.Limit
	burst   int
	now     func() time.Time
}

// NewRateLimiter allows perMinute requests per client, bursting up to the same amount.
// A non-positive perMinute disables limiting.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		return nil
	}
	return &RateLimiter{
		clients: make(map[string]*clientLimiter),
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   perMinute,
		now:     time.Now,
	}
}

// Allow reports whether key may proceed now.
func (l *RateLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry, ok := l.clients[key]
	if !ok {
		l.evictIdle(now)
		entry = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func (l *RateLimiter) evictIdle(now time.Time) {
	for key, entry := range l.clients {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(l.clients, key)
		}
	}
}

// Middleware rejects callers over their budget with 429.
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			c.Header("Retry-After", "60")
			response.Error(c, appErrors.Clone(appErrors.ErrTooManyRequests, "too many attempts, try again later"))
			c.Abort()
			return
		}
		c.Next()
	}
}
