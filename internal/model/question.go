package model

import (
	"github.com/google/uuid"
)

// Question represents a single test question.
// CorrectOption holds the literal text of the right option.
type Question struct {
	ID            uuid.UUID    `json:"id"`
	TestID        uuid.UUID    `json:"test_id"`
	QuestionText  string       `json:"question_text"`
	QuestionType  QuestionType `json:"question_type"`
	Options       []string     `json:"options"`
	CorrectOption string       `json:"correct_option"`
	Points        int          `json:"points"`
	OrderNum      int          `json:"order_num"`
}

type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "MULTIPLE_CHOICE"
)

// QuestionForUser is a question without the correct answer.
type QuestionForUser struct {
	ID           uuid.UUID    `json:"id"`
	QuestionText string       `json:"question_text"`
	QuestionType QuestionType `json:"question_type"`
	Options      []string     `json:"options"`
	Points       int          `json:"points"`
	OrderNum     int          `json:"order_num"`
}

// QuestionInput is a question inside a TestRequest.
type QuestionInput struct {
	QuestionText  string   `json:"question_text" binding:"required,min=1,max=2000"`
	Options       []string `json:"options" binding:"required,min=2,max=10,dive,required,max=500"`
	CorrectOption string   `json:"correct_option" binding:"required,max=500"`
	Points        int      `json:"points" binding:"omitempty,min=1,max=100"`
}

// HasOption reports whether opt is one of the question's options, compared exactly.
func (q QuestionInput) HasOption(opt string) bool {
	for _, o := range q.Options {
		if o == opt {
			return true
		}
	}
	return false
}
