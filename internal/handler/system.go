package handler

import (
	"net/http"
	"time"

	"github.com/aman-churiwal/portfolio-api/internal/circuitbreaker"
	"github.com/aman-churiwal/portfolio-api/internal/healthcheck"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// HealthReporter is the last known state of the service's dependencies.
type HealthReporter interface {
	OverallHealth() healthcheck.HealthStatus
	GetAllStatus() map[string]healthcheck.Status
}

// Breaker is an upstream guard exposed on the admin status routes.
type Breaker interface {
	Name() string
	State() circuitbreaker.State
	Reset()
}

// Handles system-related endpoints
type SystemHandler struct {
	health    HealthReporter
	breakers  map[string]Breaker
	startTime time.Time
	logger    zerolog.Logger
}

func NewSystemHandler(health HealthReporter, breakers []Breaker, logger zerolog.Logger) *SystemHandler {
	byName := make(map[string]Breaker, len(breakers))
	for _, b := range breakers {
		byName[b.Name()] = b
	}

	return &SystemHandler{
		health:    health,
		breakers:  byName,
		startTime: time.Now(),
		logger:    logger,
	}
}

// Serves the checker's last results so probes never block on a dependency
func (h *SystemHandler) Health(c *gin.Context) {
	overall := h.health.OverallHealth()

	code := http.StatusOK
	if overall != healthcheck.Healthy {
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":    overall.String(),
		"service":   "portfolio-api",
		"timestamp": time.Now().Unix(),
		"checks":    h.health.GetAllStatus(),
	})
}

// Returns uptime and the state of all circuit breakers
func (h *SystemHandler) Status(c *gin.Context) {
	breakers := make(gin.H, len(h.breakers))
	for name, b := range h.breakers {
		breakers[name] = b.State().String()
	}

	c.JSON(http.StatusOK, gin.H{
		"uptime":    time.Since(h.startTime).Seconds(),
		"breakers":  breakers,
		"timestamp": time.Now().Unix(),
	})
}

// Manually resets a circuit breaker
func (h *SystemHandler) ResetBreaker(c *gin.Context) {
	name := c.Param("name")

	b, exists := h.breakers[name]
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "Breaker not found"})
		return
	}

	b.Reset()
	h.logger.Info().Str("breaker", name).Msg("Circuit breaker reset manually")

	c.JSON(http.StatusOK, gin.H{
		"message": "Circuit breaker reset successfully",
		"breaker": name,
	})
}
