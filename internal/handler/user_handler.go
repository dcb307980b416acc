package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/testhub-backend/internal/model"
	"github.com/stemsi/testhub-backend/internal/response"
	"github.com/stemsi/testhub-backend/internal/service"
	"github.com/stemsi/testhub-backend/internal/validator"
)

// UserHandler handles the signed-in user's profile.
type UserHandler struct {
	userService *service.UserService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// GetMe godoc
// GET /api/v1/users/me
func (h *UserHandler) GetMe(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}

	user, err := h.userService.GetByID(c.Request.Context(), who.UserID)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": user})
}

// UpdateMe godoc
// PUT /api/v1/users/me
// Replaces name, email, age and school.
func (h *UserHandler) UpdateMe(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}

	var req model.UpdateProfileRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	user, err := h.userService.UpdateProfile(c.Request.Context(), who.UserID, req)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": user})
}
