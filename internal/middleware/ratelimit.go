package middleware

import (
	"github.com/aman-churiwal/portfolio-api/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

// RateLimit enforces cfg per caller on one logical endpoint. Authenticated
// callers are keyed by user id, anonymous ones by client IP.
func RateLimit(limiter *ratelimit.Limiter, endpoint string, cfg ratelimit.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		identifier := c.GetString(ContextUserID)
		if identifier == "" {
			identifier = "ip:" + c.ClientIP()
		}

		result, rejection := limiter.Evaluate(c.Request.Context(), identifier, endpoint, cfg)
		if rejection != nil {
			for k, v := range rejection.Headers {
				c.Header(k, v)
			}
			c.AbortWithStatusJSON(rejection.Status, rejection.Body)
			return
		}

		for k, v := range ratelimit.Headers(result) {
			c.Header(k, v)
		}

		c.Next()
	}
}
