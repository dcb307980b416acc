package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/testhub-backend/internal/model"
	"github.com/stemsi/testhub-backend/internal/response"
	"github.com/stemsi/testhub-backend/internal/service"
	"github.com/stemsi/testhub-backend/internal/spreadsheet"
	"github.com/stemsi/testhub-backend/internal/validator"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ResultHandler handles submissions and stored results.
type ResultHandler struct {
	resultService *service.ResultService
}

// NewResultHandler creates a new ResultHandler.
func NewResultHandler(resultService *service.ResultService) *ResultHandler {
	return &ResultHandler{resultService: resultService}
}

// Submit godoc
// POST /api/v1/test-results
// Grades the submitted answers and stores the result.
func (h *ResultHandler) Submit(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}

	var req model.SubmitTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.resultService.Submit(c.Request.Context(), who, req)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"result": result})
}

// ListMine godoc
// GET /api/v1/test-results
// Lists the caller's results, newest first.
func (h *ResultHandler) ListMine(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}

	results, err := h.resultService.ListMine(c.Request.Context(), who)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"results": results})
}

// GetResult godoc
// GET /api/v1/test-results/:id
// Owner or administrator only.
func (h *ResultHandler) GetResult(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}

	resultID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	detail, err := h.resultService.Get(c.Request.Context(), who, resultID)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": detail})
}

// ListByTest godoc
// GET /api/v1/admin/tests/:id/results?page=&per_page=
func (h *ResultHandler) ListByTest(c *gin.Context) {
	testID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	results, pagination, err := h.resultService.ListByTest(c.Request.Context(), testID, page, perPage)
	if err != nil {
		fail(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": results}, pagination)
}

// ExportByTest godoc
// GET /api/v1/admin/tests/:id/results/export
// Downloads every result of the test as an xlsx workbook.
func (h *ResultHandler) ExportByTest(c *gin.Context) {
	testID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	// Buffered so a failure can still be answered with a JSON error.
	var buf bytes.Buffer
	if err := h.resultService.ExportByTest(c.Request.Context(), testID, &buf); err != nil {
		fail(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, spreadsheet.ExportFilename(testID)))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// DeleteResult godoc
// DELETE /api/v1/admin/test-results/:id
func (h *ResultHandler) DeleteResult(c *gin.Context) {
	resultID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.resultService.Delete(c.Request.Context(), resultID); err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "result deleted"})
}
