package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/testhub-backend/internal/response"
	"github.com/stemsi/testhub-backend/internal/service"
)

// AdminHandler handles the administrator dashboard.
type AdminHandler struct {
	statsService *service.StatsService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(statsService *service.StatsService) *AdminHandler {
	return &AdminHandler{statsService: statsService}
}

// GetStats godoc
// GET /api/v1/admin/stats
// Returns platform totals, the average score and the most recent results.
func (h *AdminHandler) GetStats(c *gin.Context) {
	stats, err := h.statsService.AdminStats(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"stats": stats})
}
