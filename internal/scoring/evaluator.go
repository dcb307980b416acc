// Package scoring grades a submission against a test's answer key.
//
// Evaluate is a pure function: it holds no state, touches no storage and
// does not know who submitted or how the submission was triggered.
package scoring

import (
	"errors"

	"github.com/stemsi/testhub-backend/internal/model"
)

// ErrInvalidInput is returned when there is nothing to grade.
var ErrInvalidInput = errors.New("scoring: test has no questions")

// Result is the graded outcome of one submission.
type Result struct {
	Answers        []model.AnswerOutcome
	CorrectCount   int
	TotalQuestions int
	Score          float64
}

// Evaluate grades submission against questions, in question order.
//
// A question counts as correct only when the submitted text equals the
// stored correct option byte for byte. No trimming or case folding is
// applied. Missing and empty selections are recorded as unanswered and
// score as incorrect. Score is CorrectCount / TotalQuestions * 100 and
// is not rounded.
func Evaluate(questions []model.Question, submission model.Submission) (*Result, error) {
	if len(questions) == 0 {
		return nil, ErrInvalidInput
	}

	res := &Result{
		Answers:        make([]model.AnswerOutcome, 0, len(questions)),
		TotalQuestions: len(questions),
	}

	for _, q := range questions {
		outcome := model.AnswerOutcome{QuestionID: q.ID}

		if selected, ok := submission[q.ID]; ok && selected != "" {
			outcome.SelectedOption = &selected
			outcome.IsCorrect = selected == q.CorrectOption
		}

		if outcome.IsCorrect {
			res.CorrectCount++
		}
		res.Answers = append(res.Answers, outcome)
	}

	res.Score = float64(res.CorrectCount) / float64(res.TotalQuestions) * 100
	return res, nil
}
