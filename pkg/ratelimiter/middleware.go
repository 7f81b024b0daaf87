package ratelimiter

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// KeyFunc picks the rate limit bucket for a request
type KeyFunc func(c *gin.Context) string

// ClientIP buckets requests by client address
func ClientIP(c *gin.Context) string {
	return c.ClientIP()
}

// Middleware creates a Gin middleware for rate limiting
func (rl *RateLimiter) Middleware(key KeyFunc) gin.HandlerFunc {
	if key == nil {
		key = ClientIP
	}

	return func(c *gin.Context) {
		allowed, remaining, resetAt := rl.Allow(key(c))

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(time.Until(resetAt).Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"code":    "RATE_LIMIT_EXCEEDED",
					"message": "Too many requests. Rate limit exceeded.",
					"details": "Maximum " + strconv.Itoa(rl.limit) + " submissions per window allowed.",
				},
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
			return
		}

		c.Next()
	}
}
