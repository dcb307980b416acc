package handler

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/testhub-backend/internal/model"
	"github.com/stemsi/testhub-backend/internal/response"
	"github.com/stemsi/testhub-backend/internal/service"
	"github.com/stemsi/testhub-backend/internal/spreadsheet"
	"github.com/stemsi/testhub-backend/internal/validator"
)

// maxImportBytes bounds an uploaded question sheet.
const maxImportBytes = 5 << 20

// TestHandler handles the test catalogue and its administration.
type TestHandler struct {
	testService *service.TestService
}

// NewTestHandler creates a new TestHandler.
func NewTestHandler(testService *service.TestService) *TestHandler {
	return &TestHandler{testService: testService}
}

// ListTests godoc
// GET /api/v1/tests?difficulty=&age_group=
// Lists tests with their question counts.
func (h *TestHandler) ListTests(c *gin.Context) {
	var filter model.TestFilter
	if fields := validator.BindQuery(c, &filter); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	tests, err := h.testService.List(c.Request.Context(), filter)
	if err != nil {
		fail(c, err)
		return
	}

	payloads := make([]model.TestPayload, len(tests))
	for i := range tests {
		payloads[i] = tests[i].Payload()
	}
	response.Success(c, http.StatusOK, gin.H{"tests": payloads})
}

// GetTest godoc
// GET /api/v1/tests/:id
// Returns a test with its questions. Correct options are only shown to administrators.
func (h *TestHandler) GetTest(c *gin.Context) {
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

	if who.IsAdmin() {
		response.Success(c, http.StatusOK, gin.H{"test": test})
		return
	}
	response.Success(c, http.StatusOK, gin.H{"test": test.Payload()})
}

// CreateTest godoc
// POST /api/v1/admin/tests
func (h *TestHandler) CreateTest(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}

	var req model.TestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	test, err := h.testService.Create(c.Request.Context(), who.UserID, req)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"test": test})
}

// UpdateTest godoc
// PUT /api/v1/admin/tests/:id
// Replaces the test attributes and its whole question list.
func (h *TestHandler) UpdateTest(c *gin.Context) {
	testID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.TestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	test, err := h.testService.Update(c.Request.Context(), testID, req)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"test": test})
}

// DeleteTest godoc
// DELETE /api/v1/admin/tests/:id
// Deletes the test together with all of its results.
func (h *TestHandler) DeleteTest(c *gin.Context) {
	testID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.testService.Delete(c.Request.Context(), testID); err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "test deleted"})
}

// ImportTest godoc
// POST /api/v1/admin/tests/import (multipart: file + test attributes)
// Creates a test from an xlsx question sheet.
func (h *TestHandler) ImportTest(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImportBytes)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".xlsx") {
		response.Fail(c, http.StatusBadRequest, response.ErrUnsupportedFile)
		return
	}

	var form model.ImportTestForm
	if fields := validator.BindForm(c, &form); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	questions, err := spreadsheet.ReadQuestions(file)
	if err != nil {
		switch {
		case errors.Is(err, spreadsheet.ErrNotWorkbook):
			response.Fail(c, http.StatusBadRequest, response.ErrUnsupportedFile)
		case errors.Is(err, spreadsheet.ErrEmptySheet), errors.Is(err, spreadsheet.ErrInvalidRow):
			response.FailWithFields(c, http.StatusBadRequest, response.ErrInvalidPayload, map[string]string{"file": err.Error()})
		default:
			fail(c, err)
		}
		return
	}

	test, err := h.testService.Create(c.Request.Context(), who.UserID, form.Request(questions))
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"test": test})
}
