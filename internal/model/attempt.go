package model

import (
	"time"

	"github.com/google/uuid"
)

// Attempt is a user's running, server-timed sitting of a test.
type Attempt struct {
	TestID           uuid.UUID         `json:"test_id"`
	UserID           int               `json:"user_id"`
	StartedAt        time.Time         `json:"started_at"`
	Deadline         time.Time         `json:"deadline"`
	RemainingSeconds int               `json:"remaining_seconds"`
	Answers          map[string]string `json:"answers"`
}

// ClosedAttempt is what is left of an attempt once it has been claimed:
// its start time and the answers autosaved while it ran.
type ClosedAttempt struct {
	UserID    int               `json:"user_id"`
	TestID    uuid.UUID         `json:"test_id"`
	StartedAt time.Time         `json:"started_at"`
	Deadline  time.Time         `json:"deadline"`
	Answers   map[string]string `json:"answers"`
	Retries   int               `json:"retries,omitempty"`
}

// AutosaveRequest is the payload for saving a single answer during an attempt.
type AutosaveRequest struct {
	QuestionID string `json:"question_id" binding:"required,uuid"`
	Option     string `json:"option" binding:"required,max=500"`
}
