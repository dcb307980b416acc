package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/testhub-backend/internal/model"
	"github.com/stemsi/testhub-backend/internal/response"
	"github.com/stemsi/testhub-backend/internal/service"
	"github.com/stemsi/testhub-backend/internal/validator"
)

// AttemptHandler handles server-timed attempts.
type AttemptHandler struct {
	testService    *service.TestService
	attemptService *service.AttemptService
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(testService *service.TestService, attemptService *service.AttemptService) *AttemptHandler {
	return &AttemptHandler{
		testService:    testService,
		attemptService: attemptService,
	}
}

// StartAttempt godoc
// POST /api/v1/tests/:id/attempt
// Starts the timer, or returns the running attempt unchanged.
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}

	testID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	test, err := h.testService.Load(c.Request.Context(), testID)
	if err != nil {
		fail(c, err)
		return
	}
	if len(test.Questions) == 0 {
		fail(c, service.ErrNoQuestions)
		return
	}

	attempt, err := h.attemptService.Start(c.Request.Context(), who.UserID, test)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"attempt": attempt,
		"test":    test.Payload(),
	})
}

// GetAttempt godoc
// GET /api/v1/tests/:id/attempt
// Returns the autosaved answers and remaining seconds.
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}

	testID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	attempt, err := h.attemptService.State(c.Request.Context(), who.UserID, testID)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// SaveAnswer godoc
// PUT /api/v1/tests/:id/attempt/answers
// Autosaves one answer of the running attempt.
func (h *AttemptHandler) SaveAnswer(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}

	testID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.AutosaveRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	questionID := uuid.MustParse(req.QuestionID)

	if err := h.attemptService.Autosave(c.Request.Context(), who.UserID, testID, questionID, req.Option); err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "saved"})
}
