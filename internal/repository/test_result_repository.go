package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/testhub-backend/internal/model"
)

// TestResultRepository handles test result data access.
// Results are insert-only; there is no update path.
type TestResultRepository struct {
	pool *pgxpool.Pool
}

// NewTestResultRepository creates a new TestResultRepository.
func NewTestResultRepository(pool *pgxpool.Pool) *TestResultRepository {
	return &TestResultRepository{pool: pool}
}

const resultColumns = `r.id, r.test_id, r.user_id, r.score, r.correct_answers, r.total_questions,
	r.time_taken, r.answers, r.submission_mode, r.created_at`

// Create inserts a new result.
func (r *TestResultRepository) Create(ctx context.Context, res *model.TestResult) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO test_results
		     (test_id, user_id, score, correct_answers, total_questions, time_taken, answers, submission_mode)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at`,
		res.TestID, res.UserID, res.Score, res.CorrectAnswers, res.TotalQuestions,
		res.TimeTaken, res.Answers, res.SubmissionMode,
	).Scan(&res.ID, &res.CreatedAt)
}

// GetByID retrieves a single result.
func (r *TestResultRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.TestResult, error) {
	res := &model.TestResult{}
	err := r.pool.QueryRow(ctx,
		`SELECT `+resultColumns+` FROM test_results r WHERE r.id = $1`, id,
	).Scan(&res.ID, &res.TestID, &res.UserID, &res.Score, &res.CorrectAnswers, &res.TotalQuestions,
		&res.TimeTaken, &res.Answers, &res.SubmissionMode, &res.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return res, nil
}

// ListByUser returns a user's results with test title and description, newest first.
func (r *TestResultRepository) ListByUser(ctx context.Context, userID int) ([]model.TestResultWithTest, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+resultColumns+`, t.title, t.description
		 FROM test_results r
		 JOIN tests t ON t.id = r.test_id
		 WHERE r.user_id = $1
		 ORDER BY r.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []model.TestResultWithTest{}
	for rows.Next() {
		var res model.TestResultWithTest
		if err := rows.Scan(&res.ID, &res.TestID, &res.UserID, &res.Score, &res.CorrectAnswers, &res.TotalQuestions,
			&res.TimeTaken, &res.Answers, &res.SubmissionMode, &res.CreatedAt,
			&res.TestTitle, &res.TestDescription); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// ListByTestPaginated returns one page of a test's results with the submitting users.
func (r *TestResultRepository) ListByTestPaginated(ctx context.Context, testID uuid.UUID, limit, offset int) ([]model.TestResultWithUser, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM test_results WHERE test_id = $1`, testID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	results, err := r.listByTest(ctx, testID, limit, offset)
	return results, total, err
}

// ListAllByTest returns every result of a test, for exports.
func (r *TestResultRepository) ListAllByTest(ctx context.Context, testID uuid.UUID) ([]model.TestResultWithUser, error) {
	return r.listByTest(ctx, testID, -1, 0)
}

// listByTest pages through a test's results; a negative limit means no limit.
func (r *TestResultRepository) listByTest(ctx context.Context, testID uuid.UUID, limit, offset int) ([]model.TestResultWithUser, error) {
	var lim *int
	if limit >= 0 {
		lim = &limit
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+resultColumns+`, u.id, u.name, u.email, u.school
		 FROM test_results r
		 JOIN users u ON u.id = r.user_id
		 WHERE r.test_id = $1
		 ORDER BY r.created_at DESC
		 LIMIT $2 OFFSET $3`, testID, lim, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []model.TestResultWithUser{}
	for rows.Next() {
		var res model.TestResultWithUser
		if err := rows.Scan(&res.ID, &res.TestID, &res.UserID, &res.Score, &res.CorrectAnswers, &res.TotalQuestions,
			&res.TimeTaken, &res.Answers, &res.SubmissionMode, &res.CreatedAt,
			&res.User.ID, &res.User.Name, &res.User.Email, &res.User.School); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// Delete removes a single result.
func (r *TestResultRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM test_results WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
