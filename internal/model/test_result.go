package model

import (
	"time"

	"github.com/google/uuid"
)

// SubmissionMode records who triggered a submission.
type SubmissionMode string

const (
	SubmissionModeManual SubmissionMode = "MANUAL"
	SubmissionModeAuto   SubmissionMode = "AUTO"
)

// Submission maps question IDs to the option text the user selected.
// Unanswered questions are simply absent.
type Submission map[uuid.UUID]string

// AnswerOutcome is the graded outcome of one question.
// SelectedOption is nil when the question was not answered.
type AnswerOutcome struct {
	QuestionID     uuid.UUID `json:"question_id"`
	SelectedOption *string   `json:"selected_option"`
	IsCorrect      bool      `json:"is_correct"`
}

// TestResult is one scored submission. TotalQuestions is frozen at
// submission time and never follows later edits of the test.
type TestResult struct {
	ID             uuid.UUID       `json:"id"`
	TestID         uuid.UUID       `json:"test_id"`
	UserID         int             `json:"user_id"`
	Score          float64         `json:"score"`
	CorrectAnswers int             `json:"correct_answers"`
	TotalQuestions int             `json:"total_questions"`
	TimeTaken      int             `json:"time_taken"`
	Answers        []AnswerOutcome `json:"answers"`
	SubmissionMode SubmissionMode  `json:"submission_mode"`
	CreatedAt      time.Time       `json:"created_at"`
}

// TestResultWithTest is a result row joined with its test's title and description.
type TestResultWithTest struct {
	TestResult
	TestTitle       string `json:"test_title"`
	TestDescription string `json:"test_description"`
}

// TestResultWithUser is a result row joined with the user who submitted it.
type TestResultWithUser struct {
	TestResult
	User UserSummary `json:"user"`
}

// TestResultDetail is a single result with the full test and the user.
type TestResultDetail struct {
	TestResult
	Test *Test       `json:"test"`
	User UserSummary `json:"user"`
}

// SubmitTestRequest is the payload for POST /test-results.
type SubmitTestRequest struct {
	TestID    string            `json:"test_id" binding:"required,uuid"`
	Answers   map[string]string `json:"answers" binding:"required,dive,keys,uuid,endkeys"`
	TimeTaken int               `json:"time_taken" binding:"min=0,max=86400"`
}
