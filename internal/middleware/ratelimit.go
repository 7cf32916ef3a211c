// ratelimit.go provides Redis-backed per-client rate limiting using the GCRA
// algorithm, returning 429 when the configured requests-per-minute threshold
// is exceeded. Limits are shared across all replicas pointed at the same
// Redis instance.
package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// RateLimitConfig holds the parameters for one limiter instance.
type RateLimitConfig struct {
	// RequestsPerMinute is the sustained rate allowed per client key.
	RequestsPerMinute int
	// Burst is the maximum burst allowed above the sustained rate.
	Burst int
}

// RateLimiter wraps a redis_rate limiter with a fixed limit.
type RateLimiter struct {
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
}

// NewRateLimiter creates a limiter backed by the given Redis client.
func NewRateLimiter(rdb *redis.Client, cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		limiter: redis_rate.NewLimiter(rdb),
		limit: redis_rate.Limit{
			Rate:   cfg.RequestsPerMinute,
			Burst:  cfg.Burst,
			Period: time.Minute,
		},
	}
}

// RateLimitMiddleware enforces the limiter per client key: user identity when
// it is already in the context, client IP otherwise. In the standard chain the
// limiter runs before auth, so quotas are per-IP.
//
// Redis failures fail OPEN: a broken limiter must never take the API down
// with it. The failure is logged and the request proceeds.
func RateLimitMiddleware(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rateLimitKey(c)

		res, err := rl.limiter.Allow(c.Request.Context(), key, rl.limit)
		if err != nil {
			slog.Warn("rate limiter unavailable, allowing request", "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.limit.Rate))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

		if res.Allowed == 0 {
			retryAfter := int(res.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": retryAfter,
			})
			return
		}

		c.Next()
	}
}

// rateLimitKey picks the quota key: user identity when present, IP otherwise.
func rateLimitKey(c *gin.Context) string {
	if id := c.GetString(ContextUserIDKey); id != "" {
		return "user:" + id
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = c.Request.RemoteAddr
	}
	return "ip:" + ip
}
