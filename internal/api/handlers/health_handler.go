// internal/api/handlers/health_handler.go
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/stackvity/loan-verify/internal/resilience"
)

// HealthHandler serves GET /v1/health: database connectivity plus the
// current state of every external-service circuit breaker.
type HealthHandler struct {
	dbPool   *pgxpool.Pool
	breakers *resilience.Registry
	logger   *zap.Logger
}

// NewHealthHandler creates a new HealthHandler instance.
func NewHealthHandler(dbPool *pgxpool.Pool, breakers *resilience.Registry, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		dbPool:   dbPool,
		breakers: breakers,
		logger:   logger.Named("HealthHandler"),
	}
}

// HealthCheck reports 200 when the database is reachable, 503 otherwise.
// An open circuit breaker is surfaced in the response but does not by itself
// degrade the overall status: it reflects a deliberate trip protecting an
// external dependency, not an outage of this service.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	const operation = "HealthHandler.HealthCheck"

	healthStatus := gin.H{
		"status":           "OK",
		"database":         "OK",
		"circuit_breakers": h.breakers.States(),
		"timestamp":        timeNow(),
	}

	if err := h.dbPool.Ping(c); err != nil {
		h.logger.Warn("database health check failed", zap.String("operation", operation), zap.Error(err))

		healthStatus["database"] = "Degraded"
		healthStatus["status"] = "Degraded"
		c.JSON(http.StatusServiceUnavailable, healthStatus)
		return
	}

	c.JSON(http.StatusOK, healthStatus)
	h.logger.Debug("health check passed", zap.String("operation", operation))
}

func timeNow() string {
	return time.Now().UTC().Format(time.RFC3339)
}
