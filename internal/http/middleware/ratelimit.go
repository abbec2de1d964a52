package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sendcertificates/server/internal/metrics"
	"github.com/sendcertificates/server/internal/ratelimit"
	log "github.com/sirupsen/logrus"
)

// RateLimit rejects requests above the manager's per-second limit, keyed
// by route and client IP.
func RateLimit(manager *ratelimit.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if manager == nil || manager.Limit() <= 0 {
			c.Next()
			return
		}
		route := c.FullPath()
		key := ratelimit.KeyForRequest(route, c.ClientIP())
		result, errAllow := manager.Allow(c.Request.Context(), key)
		if errAllow != nil {
			log.WithError(errAllow).Warn("rate limit check failed")
			c.Next()
			return
		}
		if !result.Allowed {
			metrics.IncrementRateLimited(route)
			if !result.Reset.IsZero() {
				c.Header("X-RateLimit-Reset", strconv.FormatInt(result.Reset.Unix(), 10))
			}
			c.Header("Retry-After", strconv.Itoa(result.RetryAfterSeconds()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Next()
	}
}
