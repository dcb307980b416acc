package service

import (
	"errors"

	"github.com/stemsi/testhub-backend/internal/repository"
)

// Domain Errors
var (
	ErrNotFound           = repository.ErrNotFound
	ErrEmailTaken         = repository.ErrDuplicateEmail
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("access denied")
	ErrInvalidTest        = errors.New("correct option is not one of the question's options")
	ErrNoQuestions        = errors.New("test has no questions")
	ErrInvalidSubmission  = errors.New("answers reference an invalid question id")
	ErrNoActiveAttempt    = errors.New("no running attempt for this test")
	ErrAttemptSubmitted   = errors.New("attempt was already submitted automatically")
)
