package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/aman-churiwal/portfolio-api/internal/middleware"
	"github.com/aman-churiwal/portfolio-api/internal/models"
	"github.com/aman-churiwal/portfolio-api/internal/quota"
	"github.com/gin-gonic/gin"
)

type UsageService interface {
	Usage(ctx context.Context, userID string) quota.LimitResult
	SetTier(ctx context.Context, userID string, tier models.Tier) (quota.LimitResult, error)
}

type UsageHandler struct {
	quota UsageService
}

func NewUsageHandler(quota UsageService) *UsageHandler {
	return &UsageHandler{quota: quota}
}

func (h *UsageHandler) Get(c *gin.Context) {
	result := h.quota.Usage(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if result.Unavailable() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": result.ErrorMessage})
		return
	}

	c.JSON(http.StatusOK, result)
}

// SetTier is the admin/billing hook for plan changes.
func (h *UsageHandler) SetTier(c *gin.Context) {
	var req struct {
		Tier string `json:"tier" binding:"required,oneof=free pro"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.quota.SetTier(c.Request.Context(), c.Param("id"), models.Tier(req.Tier))
	if err != nil {
		if errors.Is(err, quota.ErrInvalidTier) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		writeError(c, err, http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, result)
}
