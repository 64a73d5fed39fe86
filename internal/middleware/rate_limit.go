package middleware

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/otelcore/booking-backend/internal/services"
	"github.com/otelcore/booking-backend/internal/utils"
)

// PublicRateLimit throttles an unauthenticated endpoint per client IP.
// A limiter failure is logged and waved through: the public surface must not
// go dark because the rate limit store hiccupped.
func PublicRateLimit(limiter *services.RateLimitService, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := utils.GetRealIP(c)

		if err := limiter.Check(scope, ip); err != nil {
			var rateLimitErr *services.RateLimitError
			if errors.As(err, &rateLimitErr) {
				c.Header("Retry-After", rateLimitErr.RetryAfter.UTC().Format(http.TimeFormat))
				c.JSON(http.StatusTooManyRequests, gin.H{
					"error":   "rate_limited",
					"message": rateLimitErr.Message,
					"code":    "RATE_LIMITED",
				})
				c.Abort()
				return
			}
			log.Printf("ERROR: Rate limit check failed for scope %s: %v", scope, err)
		}

		if err := limiter.Record(scope, ip); err != nil {
			log.Printf("ERROR: Failed to record rate limit event for scope %s: %v", scope, err)
		}

		c.Next()
	}
}
