package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"docharvest/internal/ratelimit"
)

func rateLimitRouter(lim ratelimit.Limiter, bucket ratelimit.Bucket) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/extract", RateLimitExtract(lim, bucket), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestRateLimitExtractBlocksAfterBurst(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	lim := ratelimit.NewTokenBucketLimiter(rdb)
	r := rateLimitRouter(lim, ratelimit.Bucket{RequestsPerMinute: 60, BurstSize: 1})

	req := httptest.NewRequest(http.MethodPost, "/extract", nil)
	req.Header.Set("Authorization", "Bearer client-a")

	w1 := httptest.NewRecorder()
	r.ServeHTTP(w1, req)
	if w1.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", w1.Code)
	}

	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req)
	if w2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", w2.Code)
	}
	if w2.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestRateLimitExtractDisabledBucket(t *testing.T) {
	r := rateLimitRouter(nil, ratelimit.Bucket{})
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/extract", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
	}
}
