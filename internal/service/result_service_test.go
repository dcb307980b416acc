package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/testhub-backend/internal/model"
)

type resultFixture struct {
	tests    *fakeTestStore
	results  *fakeResultStore
	users    *fakeUserStore
	attempts *AttemptService
	svc      *ResultService
	clock    *fakeClock
}

func newResultFixture(t *testing.T) *resultFixture {
	t.Helper()
	_, rdb := newRedis(t)
	clock := newFakeClock()
	cfg := testConfig()

	tests := newFakeTestStore()
	results := &fakeResultStore{}
	users := newFakeUserStore()

	attempts := NewAttemptService(rdb, cfg, nopLog)
	attempts.now = clock.Now

	loader := NewTestService(tests, rdb, cfg, nopLog)
	svc := NewResultService(loader, results, users, attempts, nopLog)
	svc.now = clock.Now

	return &resultFixture{tests: tests, results: results, users: users, attempts: attempts, svc: svc, clock: clock}
}

func answers(pairs ...interface{}) map[string]string {
	m := make(map[string]string)
	for i := 0; i < len(pairs); i += 2 {
		m[pairs[i].(uuid.UUID).String()] = pairs[i+1].(string)
	}
	return m
}

func TestSubmit_GradesAndPersists(t *testing.T) {
	f := newResultFixture(t)
	test := f.tests.add(10, "A", "B", "C", "D")
	q := test.Questions

	res, err := f.svc.Submit(context.Background(), Caller{UserID: 3, Role: model.RoleUser}, model.SubmitTestRequest{
		TestID:    test.ID.String(),
		Answers:   answers(q[0].ID, "A", q[1].ID, "X", q[3].ID, "D"),
		TimeTaken: 321,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if res.Score != 50.0 || res.CorrectAnswers != 2 || res.TotalQuestions != 4 {
		t.Errorf("got score=%v correct=%d total=%d", res.Score, res.CorrectAnswers, res.TotalQuestions)
	}
	if res.TimeTaken != 321 {
		t.Errorf("time taken = %d, want client value 321", res.TimeTaken)
	}
	if res.SubmissionMode != model.SubmissionModeManual || res.UserID != 3 {
		t.Errorf("mode=%s user=%d", res.SubmissionMode, res.UserID)
	}
	if res.Answers[2].SelectedOption != nil {
		t.Error("unanswered question should be recorded as nil")
	}
	if f.results.count() != 1 {
		t.Errorf("stored results = %d, want 1", f.results.count())
	}
}

func TestSubmit_EmptyAnswers(t *testing.T) {
	f := newResultFixture(t)
	test := f.tests.add(10, "A", "B", "C")

	res, err := f.svc.Submit(context.Background(), Caller{UserID: 1}, model.SubmitTestRequest{
		TestID:  test.ID.String(),
		Answers: map[string]string{},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Score != 0 || res.CorrectAnswers != 0 || res.TotalQuestions != 3 {
		t.Errorf("got %+v", res)
	}
}

func TestSubmit_UnknownTest(t *testing.T) {
	f := newResultFixture(t)

	_, err := f.svc.Submit(context.Background(), Caller{UserID: 1}, model.SubmitTestRequest{
		TestID:  uuid.NewString(),
		Answers: map[string]string{},
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if f.results.count() != 0 {
		t.Error("no result should be stored")
	}
}

func TestSubmit_TestWithoutQuestions(t *testing.T) {
	f := newResultFixture(t)
	test := f.tests.add(10)

	_, err := f.svc.Submit(context.Background(), Caller{UserID: 1}, model.SubmitTestRequest{
		TestID:  test.ID.String(),
		Answers: map[string]string{},
	})
	if !errors.Is(err, ErrNoQuestions) {
		t.Fatalf("err = %v, want ErrNoQuestions", err)
	}
	if f.results.count() != 0 {
		t.Error("no result should be stored")
	}
}

func TestSubmit_InvalidAnswerKey(t *testing.T) {
	f := newResultFixture(t)
	test := f.tests.add(10, "A")

	_, err := f.svc.Submit(context.Background(), Caller{UserID: 1}, model.SubmitTestRequest{
		TestID:  test.ID.String(),
		Answers: map[string]string{"not-a-uuid": "A"},
	})
	if !errors.Is(err, ErrInvalidSubmission) {
		t.Fatalf("err = %v, want ErrInvalidSubmission", err)
	}
}

func TestSubmit_MergesRunningAttempt(t *testing.T) {
	f := newResultFixture(t)
	ctx := context.Background()
	test := f.tests.add(5, "A", "B", "C")
	q := test.Questions

	if _, err := f.attempts.Start(ctx, 9, test); err != nil {
		t.Fatalf("Start: %v", err)
	}
	_ = f.attempts.Autosave(ctx, 9, test.ID, q[0].ID, "A")
	_ = f.attempts.Autosave(ctx, 9, test.ID, q[1].ID, "wrong")
	f.clock.Advance(90 * time.Second)

	res, err := f.svc.Submit(ctx, Caller{UserID: 9}, model.SubmitTestRequest{
		TestID:    test.ID.String(),
		Answers:   answers(q[1].ID, "B", q[2].ID, ""),
		TimeTaken: 5,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if res.CorrectAnswers != 2 {
		t.Errorf("correct = %d, want 2 (autosaved q1 + request q2)", res.CorrectAnswers)
	}
	if res.TimeTaken != 90 {
		t.Errorf("time taken = %d, want server-measured 90", res.TimeTaken)
	}
	if _, err := f.attempts.State(ctx, 9, test.ID); !errors.Is(err, ErrNoActiveAttempt) {
		t.Errorf("attempt should be closed, got %v", err)
	}
}

func TestSubmit_TimeTakenCappedAtDuration(t *testing.T) {
	f := newResultFixture(t)
	ctx := context.Background()
	test := f.tests.add(1, "A")

	if _, err := f.attempts.Start(ctx, 2, test); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.clock.Advance(65 * time.Second)

	res, err := f.svc.Submit(ctx, Caller{UserID: 2}, model.SubmitTestRequest{
		TestID:  test.ID.String(),
		Answers: answers(test.Questions[0].ID, "A"),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.TimeTaken != 60 {
		t.Errorf("time taken = %d, want 60", res.TimeTaken)
	}
}

func TestSubmit_AfterAutoSubmitRejected(t *testing.T) {
	f := newResultFixture(t)
	ctx := context.Background()
	test := f.tests.add(1, "A")

	if _, err := f.attempts.Start(ctx, 4, test); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.clock.Advance(2 * time.Minute)

	claimed, err := f.attempts.ClaimExpired(ctx, 10)
	if err != nil || len(claimed) != 1 {
		t.Fatalf("ClaimExpired = %d, %v", len(claimed), err)
	}
	if _, err := f.svc.SubmitExpired(ctx, claimed[0]); err != nil {
		t.Fatalf("SubmitExpired: %v", err)
	}

	_, err = f.svc.Submit(ctx, Caller{UserID: 4}, model.SubmitTestRequest{
		TestID:  test.ID.String(),
		Answers: answers(test.Questions[0].ID, "A"),
	})
	if !errors.Is(err, ErrAttemptSubmitted) {
		t.Fatalf("err = %v, want ErrAttemptSubmitted", err)
	}
	if f.results.count() != 1 {
		t.Errorf("stored results = %d, want exactly 1", f.results.count())
	}
}

func TestSubmitExpired(t *testing.T) {
	f := newResultFixture(t)
	test := f.tests.add(3, "A", "B")

	res, err := f.svc.SubmitExpired(context.Background(), model.ClosedAttempt{
		UserID:  5,
		TestID:  test.ID,
		Answers: answers(test.Questions[1].ID, "B"),
	})
	if err != nil {
		t.Fatalf("SubmitExpired: %v", err)
	}
	if res.SubmissionMode != model.SubmissionModeAuto {
		t.Errorf("mode = %s, want AUTO", res.SubmissionMode)
	}
	if res.TimeTaken != 180 {
		t.Errorf("time taken = %d, want 180", res.TimeTaken)
	}
	if res.Score != 50 {
		t.Errorf("score = %v, want 50", res.Score)
	}
}

func TestGet_OwnerOrAdmin(t *testing.T) {
	f := newResultFixture(t)
	ctx := context.Background()
	owner := &model.User{Name: "Owner", Email: "owner@example.com", Role: model.RoleUser}
	_ = f.users.Create(ctx, owner)
	test := f.tests.add(10, "A")

	res, err := f.svc.Submit(ctx, Caller{UserID: owner.ID}, model.SubmitTestRequest{
		TestID:  test.ID.String(),
		Answers: answers(test.Questions[0].ID, "A"),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	detail, err := f.svc.Get(ctx, Caller{UserID: owner.ID, Role: model.RoleUser}, res.ID)
	if err != nil {
		t.Fatalf("owner Get: %v", err)
	}
	if detail.User.Email != "owner@example.com" || detail.Test == nil || len(detail.Test.Questions) != 1 {
		t.Errorf("detail = %+v", detail)
	}

	if _, err := f.svc.Get(ctx, Caller{UserID: owner.ID + 1, Role: model.RoleUser}, res.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("stranger Get err = %v, want ErrForbidden", err)
	}
	if _, err := f.svc.Get(ctx, Caller{UserID: 999, Role: model.RoleAdmin}, res.ID); err != nil {
		t.Errorf("admin Get: %v", err)
	}
	if _, err := f.svc.Get(ctx, Caller{UserID: owner.ID}, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing Get err = %v, want ErrNotFound", err)
	}
}

func TestListByTest_Paginates(t *testing.T) {
	f := newResultFixture(t)
	ctx := context.Background()
	test := f.tests.add(10, "A")

	for i := 0; i < 5; i++ {
		if _, err := f.svc.Submit(ctx, Caller{UserID: i + 1}, model.SubmitTestRequest{
			TestID:  test.ID.String(),
			Answers: map[string]string{},
		}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	page, pagination, err := f.svc.ListByTest(ctx, test.ID, 2, 2)
	if err != nil {
		t.Fatalf("ListByTest: %v", err)
	}
	if len(page) != 2 || pagination.TotalItems != 5 || pagination.TotalPages != 3 {
		t.Errorf("page=%d pagination=%+v", len(page), pagination)
	}

	if _, _, err := f.svc.ListByTest(ctx, uuid.New(), 1, 10); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown test err = %v, want ErrNotFound", err)
	}
}

func TestExportByTest(t *testing.T) {
	f := newResultFixture(t)
	ctx := context.Background()
	test := f.tests.add(10, "A")

	if _, err := f.svc.Submit(ctx, Caller{UserID: 1}, model.SubmitTestRequest{
		TestID:  test.ID.String(),
		Answers: answers(test.Questions[0].ID, "A"),
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	var buf bytes.Buffer
	if err := f.svc.ExportByTest(ctx, test.ID, &buf); err != nil {
		t.Fatalf("ExportByTest: %v", err)
	}
	if buf.Len() == 0 {
		t.Error("empty workbook")
	}
}

func TestStoredResultSurvivesTestEdit(t *testing.T) {
	f := newResultFixture(t)
	ctx := context.Background()
	test := f.tests.add(10, "A", "B")

	res, err := f.svc.Submit(ctx, Caller{UserID: 1}, model.SubmitTestRequest{
		TestID:  test.ID.String(),
		Answers: answers(test.Questions[0].ID, "A"),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	loader := NewTestService(f.tests, f.attempts.rdb, testConfig(), nopLog)
	if _, err := loader.Update(ctx, test.ID, model.TestRequest{
		Title: "Edited", DurationMinutes: 10, Difficulty: "BEGINNER", AgeGroup: "KIDS_7_9",
		Questions: []model.QuestionInput{{QuestionText: "only", Options: []string{"x", "y"}, CorrectOption: "x"}},
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	stored, err := f.results.GetByID(ctx, res.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.TotalQuestions != 2 || stored.Score != 50 {
		t.Errorf("stored result changed: %+v", stored)
	}
}

func TestSubmit_FailedPersistKeepsAttempt(t *testing.T) {
	f := newResultFixture(t)
	ctx := context.Background()
	test := f.tests.add(10, "A", "B")
	q := test.Questions

	if _, err := f.attempts.Start(ctx, 4, test); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := f.attempts.Autosave(ctx, 4, test.ID, q[0].ID, "A"); err != nil {
		t.Fatalf("Autosave: %v", err)
	}
	f.clock.Advance(30 * time.Second)

	f.results.createErr = errors.New("db down")
	if _, err := f.svc.Submit(ctx, Caller{UserID: 4}, model.SubmitTestRequest{
		TestID:  test.ID.String(),
		Answers: map[string]string{},
	}); err == nil {
		t.Fatal("expected persist error")
	}

	state, err := f.attempts.State(ctx, 4, test.ID)
	if err != nil {
		t.Fatalf("attempt should still be running: %v", err)
	}
	if state.Answers[q[0].ID.String()] != "A" {
		t.Errorf("answers = %v, autosaved answer lost", state.Answers)
	}
	if state.RemainingSeconds != 570 {
		t.Errorf("remaining = %d, want 570", state.RemainingSeconds)
	}

	f.results.createErr = nil
	f.clock.Advance(10 * time.Second)
	res, err := f.svc.Submit(ctx, Caller{UserID: 4}, model.SubmitTestRequest{
		TestID:  test.ID.String(),
		Answers: map[string]string{},
	})
	if err != nil {
		t.Fatalf("retry Submit: %v", err)
	}
	if res.CorrectAnswers != 1 || res.TimeTaken != 40 {
		t.Errorf("correct=%d time_taken=%d, want 1 and 40", res.CorrectAnswers, res.TimeTaken)
	}
}
