package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func rateLimitedRouter(cfg RateLimitConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(NewIPRateLimitingMiddleware(cfg))
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func TestIPRateLimiting_AllowsWithinBurst(t *testing.T) {
	router := rateLimitedRouter(RateLimitConfig{RequestsPerMinute: 60, Burst: 3})

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, w.Code)
		}
	}
}

func TestIPRateLimiting_RejectsBeyondBurst(t *testing.T) {
	router := rateLimitedRouter(RateLimitConfig{RequestsPerMinute: 1, Burst: 2})

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = "10.0.0.2:1234"
		router.ServeHTTP(last, req)
	}

	if last.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 after burst, got %d", last.Code)
	}
}

func TestIPRateLimiting_PerIPIsolation(t *testing.T) {
	router := rateLimitedRouter(RateLimitConfig{RequestsPerMinute: 1, Burst: 1})

	first := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = "10.0.0.3:1234"
	router.ServeHTTP(first, req)

	// Exhausted for 10.0.0.3
	blocked := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = "10.0.0.3:1234"
	router.ServeHTTP(blocked, req)

	// A different IP is unaffected
	other := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = "10.0.0.4:1234"
	router.ServeHTTP(other, req)

	if first.Code != http.StatusOK {
		t.Errorf("expected first request to pass, got %d", first.Code)
	}
	if blocked.Code != http.StatusTooManyRequests {
		t.Errorf("expected second request blocked, got %d", blocked.Code)
	}
	if other.Code != http.StatusOK {
		t.Errorf("expected other IP to pass, got %d", other.Code)
	}
}

func TestIPRateLimiter_CleanupRemovesStaleEntries(t *testing.T) {
	l := newIPRateLimiter(rate.Every(time.Second), 1)
	defer l.Stop()

	l.getLimiter("10.0.0.5")
	l.mu.Lock()
	l.limiters["10.0.0.5"].lastUsed = time.Now().Add(-time.Hour)
	l.mu.Unlock()

	l.cleanup()

	l.mu.RLock()
	_, ok := l.limiters["10.0.0.5"]
	l.mu.RUnlock()
	if ok {
		t.Error("expected stale limiter to be removed")
	}
}
