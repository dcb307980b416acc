package model

import (
	"time"

	"github.com/google/uuid"
)

// Difficulty enumerates the difficulty levels a test can be tagged with.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "BEGINNER"
	DifficultyIntermediate Difficulty = "INTERMEDIATE"
	DifficultyAdvanced     Difficulty = "ADVANCED"
)

// AgeGroup enumerates the audiences a test can target.
type AgeGroup string

const (
	AgeGroupKids7To9    AgeGroup = "KIDS_7_9"
	AgeGroupKids10To12  AgeGroup = "KIDS_10_12"
	AgeGroupTeens13To15 AgeGroup = "TEENS_13_15"
	AgeGroupTeens16To18 AgeGroup = "TEENS_16_18"
)

// Test is a timed multiple-choice test with its ordered questions.
type Test struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	DurationMinutes int        `json:"duration_minutes"`
	Difficulty      Difficulty `json:"difficulty"`
	AgeGroup        AgeGroup   `json:"age_group"`
	CreatedBy       *int       `json:"created_by,omitempty"`
	QuestionCount   int        `json:"question_count"`
	Questions       []Question `json:"questions,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TestFilter narrows the test catalogue listing.
type TestFilter struct {
	Difficulty string `form:"difficulty" binding:"omitempty,oneof=BEGINNER INTERMEDIATE ADVANCED"`
	AgeGroup   string `form:"age_group" binding:"omitempty,oneof=KIDS_7_9 KIDS_10_12 TEENS_13_15 TEENS_16_18"`
}

// TestRequest is the payload for creating a test or replacing an existing one.
type TestRequest struct {
	Title           string          `json:"title" binding:"required,min=1,max=255"`
	Description     string          `json:"description" binding:"max=2000"`
	DurationMinutes int             `json:"duration_minutes" binding:"required,min=1,max=480"`
	Difficulty      string          `json:"difficulty" binding:"required,oneof=BEGINNER INTERMEDIATE ADVANCED"`
	AgeGroup        string          `json:"age_group" binding:"required,oneof=KIDS_7_9 KIDS_10_12 TEENS_13_15 TEENS_16_18"`
	Questions       []QuestionInput `json:"questions" binding:"required,min=1,dive"`
}

// TestPayload is a test as shown to a test taker (no correct answers).
type TestPayload struct {
	ID              uuid.UUID         `json:"id"`
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	DurationMinutes int               `json:"duration_minutes"`
	Difficulty      Difficulty        `json:"difficulty"`
	AgeGroup        AgeGroup          `json:"age_group"`
	QuestionCount   int               `json:"question_count"`
	Questions       []QuestionForUser `json:"questions,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

// Payload strips the correct options from the test.
func (t *Test) Payload() TestPayload {
	p := TestPayload{
		ID:              t.ID,
		Title:           t.Title,
		Description:     t.Description,
		DurationMinutes: t.DurationMinutes,
		Difficulty:      t.Difficulty,
		AgeGroup:        t.AgeGroup,
		QuestionCount:   t.QuestionCount,
		CreatedAt:       t.CreatedAt,
	}
	if len(t.Questions) > 0 {
		p.Questions = make([]QuestionForUser, len(t.Questions))
		for i, q := range t.Questions {
			p.Questions[i] = QuestionForUser{
				ID:           q.ID,
				QuestionText: q.QuestionText,
				QuestionType: q.QuestionType,
				Options:      q.Options,
				Points:       q.Points,
				OrderNum:     q.OrderNum,
			}
		}
	}
	return p
}

// ImportTestForm carries the test attributes sent along an xlsx question sheet.
type ImportTestForm struct {
	Title           string `form:"title" binding:"required,min=1,max=255"`
	Description     string `form:"description" binding:"max=2000"`
	DurationMinutes int    `form:"duration_minutes" binding:"required,min=1,max=480"`
	Difficulty      string `form:"difficulty" binding:"required,oneof=BEGINNER INTERMEDIATE ADVANCED"`
	AgeGroup        string `form:"age_group" binding:"required,oneof=KIDS_7_9 KIDS_10_12 TEENS_13_15 TEENS_16_18"`
}

// Request combines the form with the questions read from the sheet.
func (f ImportTestForm) Request(questions []QuestionInput) TestRequest {
	return TestRequest{
		Title:           f.Title,
		Description:     f.Description,
		DurationMinutes: f.DurationMinutes,
		Difficulty:      f.Difficulty,
		AgeGroup:        f.AgeGroup,
		Questions:       questions,
	}
}
