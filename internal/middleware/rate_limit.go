package middleware

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"docharvest/internal/metrics"
	"docharvest/internal/ratelimit"
)

// RateLimitExtract throttles extraction requests. The subject is the bearer
// token when present, otherwise the client IP, so anonymous dev traffic is
// still bucketed.
func RateLimitExtract(lim ratelimit.Limiter, bucket ratelimit.Bucket) gin.HandlerFunc {
	return func(c *gin.Context) {
		if lim == nil || !bucket.Enabled() {
			c.Next()
			return
		}

		subject := BearerToken(c.GetHeader("Authorization"))
		if subject == "" {
			subject = c.ClientIP()
		}

		dec, err := lim.Allow(c.Request.Context(), "extract", subject, bucket)
		if err != nil {
			// Fail open to avoid turning Redis hiccups into outages.
			slog.Default().Warn("rate limit check failed", "err", err)
			c.Next()
			return
		}
		if dec.Allowed {
			c.Next()
			return
		}

		retryAfterSeconds := int(dec.RetryAfter.Seconds())
		if retryAfterSeconds <= 0 {
			retryAfterSeconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
		metrics.RateLimitHitsTotal.WithLabelValues("extract", "extract").Inc()
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":             "rate limit exceeded",
			"retryAfterSeconds": retryAfterSeconds,
		})
	}
}
