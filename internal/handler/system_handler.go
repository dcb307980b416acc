package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/testhub-backend/internal/response"
)

// HealthChecker is satisfied by *database.Health.
type HealthChecker interface {
	Check(ctx context.Context) (map[string]string, bool)
}

// SystemHandler reports process and dependency health.
type SystemHandler struct {
	health    HealthChecker
	startTime time.Time
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(health HealthChecker) *SystemHandler {
	return &SystemHandler{health: health, startTime: time.Now()}
}

// Health godoc
// GET /health
// 200 when PostgreSQL and Redis answer, 503 otherwise.
func (h *SystemHandler) Health(c *gin.Context) {
	deps, healthy := h.health.Check(c.Request.Context())

	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}

	response.Success(c, code, gin.H{
		"status":       status,
		"dependencies": deps,
		"uptime":       time.Since(h.startTime).Round(time.Second).String(),
		"goroutines":   runtime.NumGoroutine(),
	})
}
