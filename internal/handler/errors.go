package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/testhub-backend/internal/middleware"
	"github.com/stemsi/testhub-backend/internal/response"
	"github.com/stemsi/testhub-backend/internal/service"
)

// serviceErrors maps domain errors to their HTTP status and API code.
var serviceErrors = []struct {
	err    error
	status int
	code   response.ErrCode
}{
	{service.ErrNotFound, http.StatusNotFound, response.ErrNotFound},
	{service.ErrForbidden, http.StatusForbidden, response.ErrForbidden},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, response.ErrInvalidCredentials},
	{service.ErrEmailTaken, http.StatusConflict, response.ErrEmailTaken},
	{service.ErrInvalidTest, http.StatusBadRequest, response.ErrInvalidTest},
	{service.ErrNoQuestions, http.StatusUnprocessableEntity, response.ErrNoQuestions},
	{service.ErrInvalidSubmission, http.StatusBadRequest, response.ErrValidation},
	{service.ErrNoActiveAttempt, http.StatusConflict, response.ErrNoActiveAttempt},
	{service.ErrAttemptSubmitted, http.StatusConflict, response.ErrAttemptAlreadySubmitted},
}

// fail answers with the mapped error, or 500 for anything unexpected.
// The error is attached to the context so the request log shows it.
func fail(c *gin.Context, err error) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			response.Fail(c, m.status, m.code)
			return
		}
	}

	_ = c.Error(err)
	response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
}

// caller builds the service identity from the JWT claims, answering 401
// when the route was not behind RequireAuth.
func caller(c *gin.Context) (service.Caller, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return service.Caller{}, false
	}
	return claims.Caller(), true
}
