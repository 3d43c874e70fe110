package middlewares

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/stock_backend/config"
	"github.com/sirupsen/logrus"
)

// RateLimiter keeps the call timestamps of each endpoint key inside a sliding
// window. Timestamps older than the window are dropped on every check, and
// keys left without timestamps are removed, so the map stays bounded by the
// number of keys active within one window.
type RateLimiter struct {
	mu       sync.Mutex
	calls    map[string][]time.Time
	maxCalls int
	window   time.Duration
	now      func() time.Time
}

func NewRateLimiter(maxCalls int, window time.Duration) *RateLimiter {
	if maxCalls <= 0 {
		maxCalls = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		calls:    make(map[string][]time.Time),
		maxCalls: maxCalls,
		window:   window,
		now:      time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.now = now
	return rl
}

// Allow records a call for key and reports whether it fits in the window.
// Rejected calls are not recorded.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	recent := rl.prune(key, now)
	if len(recent) >= rl.maxCalls {
		return false
	}
	rl.calls[key] = append(recent, now)
	return true
}

// prune drops expired timestamps of key; the caller holds mu.
func (rl *RateLimiter) prune(key string, now time.Time) []time.Time {
	cutoff := now.Add(-rl.window)
	stamps := rl.calls[key]
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	recent := stamps[i:]
	if len(recent) == 0 {
		delete(rl.calls, key)
		return nil
	}
	rl.calls[key] = recent
	return recent
}

// Purge removes every expired entry and returns the number of keys dropped.
func (rl *RateLimiter) Purge() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	dropped := 0
	for key := range rl.calls {
		if rl.prune(key, now) == nil {
			dropped++
		}
	}
	return dropped
}

// Keys is the number of tracked endpoint keys.
func (rl *RateLimiter) Keys() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.calls)
}

// Middleware limits the calls of one endpoint. The key is the route path, so
// all clients share the endpoint budget.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.FullPath()
		if key == "" {
			key = c.Request.URL.Path
		}
		if !rl.Allow(key) {
			config.GetLogger().WithFields(logrus.Fields{
				"endpoint":  key,
				"max_calls": rl.maxCalls,
				"window":    rl.window.String(),
			}).Warn("rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}
