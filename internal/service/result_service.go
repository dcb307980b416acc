package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/testhub-backend/internal/model"
	"github.com/stemsi/testhub-backend/internal/response"
	"github.com/stemsi/testhub-backend/internal/scoring"
	"github.com/stemsi/testhub-backend/internal/spreadsheet"
)

// ResultService grades submissions and manages stored results.
type ResultService struct {
	tests    TestLoader
	results  ResultStore
	users    UserStore
	attempts *AttemptService
	log      zerolog.Logger
	now      func() time.Time
}

// NewResultService creates a new ResultService.
func NewResultService(
	tests TestLoader,
	results ResultStore,
	users UserStore,
	attempts *AttemptService,
	log zerolog.Logger,
) *ResultService {
	return &ResultService{
		tests:    tests,
		results:  results,
		users:    users,
		attempts: attempts,
		log:      log.With().Str("component", "result_service").Logger(),
		now:      time.Now,
	}
}

// Submit grades a manual submission and stores the result.
//
// If the caller has a running attempt on the test it is closed here: its
// autosaved answers fill in whatever the request leaves out, and the time
// taken is measured by the server instead of trusted from the client.
func (s *ResultService) Submit(ctx context.Context, caller Caller, req model.SubmitTestRequest) (*model.TestResult, error) {
	testID, err := uuid.Parse(req.TestID)
	if err != nil {
		return nil, ErrNotFound
	}

	submission := make(model.Submission, len(req.Answers))
	for k, v := range req.Answers {
		qid, err := uuid.Parse(k)
		if err != nil {
			return nil, ErrInvalidSubmission
		}
		if v != "" {
			submission[qid] = v
		}
	}

	test, err := s.tests.Load(ctx, testID)
	if err != nil {
		return nil, err
	}
	if len(test.Questions) == 0 {
		return nil, ErrNoQuestions
	}

	timeTaken := req.TimeTaken
	closed, err := s.attempts.Finish(ctx, caller.UserID, testID)
	if err != nil {
		return nil, err
	}
	if closed != nil {
		for k, v := range closed.Answers {
			qid, err := uuid.Parse(k)
			if err != nil {
				continue
			}
			if _, given := submission[qid]; !given {
				submission[qid] = v
			}
		}
		if !closed.StartedAt.IsZero() {
			timeTaken = elapsedSeconds(closed.StartedAt, s.now(), test.DurationMinutes)
		}
	}

	res, err := s.grade(ctx, test, caller.UserID, submission, timeTaken, model.SubmissionModeManual)
	if err != nil && closed != nil {
		if rerr := s.attempts.Restore(ctx, closed); rerr != nil {
			s.log.Error().Err(rerr).
				Int("user_id", caller.UserID).
				Str("test_id", testID.String()).
				Msg("Failed to restore attempt after failed submit")
		}
	}
	return res, err
}

// SubmitExpired grades an attempt the sweeper closed after its deadline.
func (s *ResultService) SubmitExpired(ctx context.Context, closed model.ClosedAttempt) (*model.TestResult, error) {
	test, err := s.tests.Load(ctx, closed.TestID)
	if err != nil {
		return nil, err
	}

	submission := make(model.Submission, len(closed.Answers))
	for k, v := range closed.Answers {
		qid, err := uuid.Parse(k)
		if err != nil {
			continue
		}
		submission[qid] = v
	}

	return s.grade(ctx, test, closed.UserID, submission, test.DurationMinutes*60, model.SubmissionModeAuto)
}

func (s *ResultService) grade(
	ctx context.Context,
	test *model.Test,
	userID int,
	submission model.Submission,
	timeTaken int,
	mode model.SubmissionMode,
) (*model.TestResult, error) {
	graded, err := scoring.Evaluate(test.Questions, submission)
	if err != nil {
		if errors.Is(err, scoring.ErrInvalidInput) {
			return nil, ErrNoQuestions
		}
		return nil, err
	}

	res := &model.TestResult{
		TestID:         test.ID,
		UserID:         userID,
		Score:          graded.Score,
		CorrectAnswers: graded.CorrectCount,
		TotalQuestions: graded.TotalQuestions,
		TimeTaken:      timeTaken,
		Answers:        graded.Answers,
		SubmissionMode: mode,
	}
	if err := s.results.Create(ctx, res); err != nil {
		return nil, fmt.Errorf("persist result: %w", err)
	}

	s.log.Info().
		Int("user_id", userID).
		Str("test_id", test.ID.String()).
		Str("mode", string(mode)).
		Float64("score", res.Score).
		Int("correct", res.CorrectAnswers).
		Int("total", res.TotalQuestions).
		Msg("Test submitted and graded")

	return res, nil
}

// ListMine returns the caller's own results, newest first.
func (s *ResultService) ListMine(ctx context.Context, caller Caller) ([]model.TestResultWithTest, error) {
	return s.results.ListByUser(ctx, caller.UserID)
}

// Get returns a result with its test and user. Only the owner or an
// administrator may read it.
func (s *ResultService) Get(ctx context.Context, caller Caller, id uuid.UUID) (*model.TestResultDetail, error) {
	res, err := s.results.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.UserID != caller.UserID && !caller.IsAdmin() {
		return nil, ErrForbidden
	}

	test, err := s.tests.Load(ctx, res.TestID)
	if err != nil {
		return nil, fmt.Errorf("load test: %w", err)
	}
	user, err := s.users.GetByID(ctx, res.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	return &model.TestResultDetail{
		TestResult: *res,
		Test:       test,
		User: model.UserSummary{
			ID:     user.ID,
			Name:   user.Name,
			Email:  user.Email,
			School: user.School,
		},
	}, nil
}

// ListByTest returns one page of a test's results.
func (s *ResultService) ListByTest(ctx context.Context, testID uuid.UUID, page, perPage int) ([]model.TestResultWithUser, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}

	if _, err := s.tests.Load(ctx, testID); err != nil {
		return nil, nil, err
	}

	results, total, err := s.results.ListByTestPaginated(ctx, testID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, err
	}

	return results, response.NewPagination(page, perPage, total), nil
}

// ExportByTest writes every result of a test as an xlsx workbook.
func (s *ResultService) ExportByTest(ctx context.Context, testID uuid.UUID, w io.Writer) error {
	test, err := s.tests.Load(ctx, testID)
	if err != nil {
		return err
	}

	results, err := s.results.ListAllByTest(ctx, testID)
	if err != nil {
		return fmt.Errorf("list results: %w", err)
	}

	return spreadsheet.WriteResults(w, test, results)
}

// Delete removes a single result.
func (s *ResultService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.results.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("result_id", id.String()).Msg("Result deleted")
	return nil
}

// elapsedSeconds is the time between start and now, capped at the test duration.
func elapsedSeconds(start, now time.Time, durationMinutes int) int {
	elapsed := int(now.Sub(start).Seconds())
	if elapsed < 0 {
		return 0
	}
	if limit := durationMinutes * 60; elapsed > limit {
		return limit
	}
	return elapsed
}
