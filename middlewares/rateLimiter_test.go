package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time { return f.t }

func TestRateLimiterSlidingWindow(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(2, time.Minute).WithClock(clock.Now)

	if !rl.Allow("/a") || !rl.Allow("/a") {
		t.Fatalf("first two calls must pass")
	}
	if rl.Allow("/a") {
		t.Fatalf("third call inside the window must be rejected")
	}
	if !rl.Allow("/b") {
		t.Fatalf("keys are limited independently")
	}

	clock.t = clock.t.Add(61 * time.Second)
	if !rl.Allow("/a") {
		t.Fatalf("call after the window must pass")
	}
}

func TestRateLimiterPurgeDropsIdleKeys(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(5, time.Minute).WithClock(clock.Now)
	for _, key := range []string{"/a", "/b", "/c"} {
		rl.Allow(key)
	}
	clock.t = clock.t.Add(30 * time.Second)
	rl.Allow("/c")
	clock.t = clock.t.Add(45 * time.Second)

	if dropped := rl.Purge(); dropped != 2 {
		t.Fatalf("expected 2 idle keys dropped, got %d", dropped)
	}
	if rl.Keys() != 1 {
		t.Fatalf("expected 1 key left, got %d", rl.Keys())
	}
}

func TestRateLimiterMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(1, time.Minute)
	r := gin.New()
	r.GET("/limited", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/limited", nil))
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status codes %v", codes)
	}
}
