package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aman-churiwal/portfolio-api/internal/service"
	"github.com/gin-gonic/gin"
)

type AnalyticsHandler struct {
	service *service.AnalyticsService
}

func NewAnalyticsHandler(service *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{service: service}
}

// Handles GET /admin/analytics
func (h *AnalyticsHandler) GetSummary(c *gin.Context) {
	from, to, err := parseTimeRange(c, time.Now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	summary, err := h.service.GetSummary(c.Request.Context(), from, to)
	if err != nil {
		writeError(c, err, http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// Handles DELETE /admin/request-logs?older_than_days=N
func (h *AnalyticsHandler) Cleanup(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("older_than_days", "30"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "older_than_days must be an integer"})
		return
	}

	deleted, err := h.service.CleanupOldLogs(c.Request.Context(), days)
	if err != nil {
		writeError(c, err, http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// Parses 'from' and 'to' as RFC3339 or unix seconds. Defaults to the 24
// hours before now.
func parseTimeRange(c *gin.Context, now time.Time) (time.Time, time.Time, error) {
	to := now
	from := to.Add(-24 * time.Hour)

	if s := c.Query("from"); s != "" {
		parsed, err := parseTime(s)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = parsed
	}

	if s := c.Query("to"); s != "" {
		parsed, err := parseTime(s)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = parsed
	}

	return from, to, nil
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	ts, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(ts, 0), nil
}
