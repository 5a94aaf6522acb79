package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/aman-churiwal/portfolio-api/internal/circuitbreaker"
	"github.com/aman-churiwal/portfolio-api/internal/parcel"
	"github.com/aman-churiwal/portfolio-api/internal/quota"
	"github.com/aman-churiwal/portfolio-api/internal/repository"
	"github.com/aman-churiwal/portfolio-api/internal/service"
	"github.com/gin-gonic/gin"
)

// writeError maps known errors to a status and body. Anything else gets
// fallback with a generic message; details stay in the server log.
func writeError(c *gin.Context, err error, fallback int) {
	var quotaErr *service.QuotaError

	switch {
	case errors.As(err, &quotaErr):
		if quotaErr.Result.InvalidRequest {
			c.JSON(http.StatusBadRequest, gin.H{"error": quotaErr.Result.ErrorMessage})
			return
		}
		if quotaErr.Result.Unavailable() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": quotaErr.Result.ErrorMessage})
			return
		}
		c.JSON(http.StatusTooManyRequests, quota.CreateLimitExceededResponse(quotaErr.Result))
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, parcel.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "No matching parcel found"})
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Parcel provider temporarily unavailable"})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Upstream request timed out"})
	default:
		_ = c.Error(err)
		c.JSON(fallback, gin.H{"error": http.StatusText(fallback)})
	}
}
