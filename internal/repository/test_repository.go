package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/testhub-backend/internal/model"
)

// TestRepository handles test and question data access.
type TestRepository struct {
	pool *pgxpool.Pool
}

// NewTestRepository creates a new TestRepository.
func NewTestRepository(pool *pgxpool.Pool) *TestRepository {
	return &TestRepository{pool: pool}
}

// List returns tests matching the filter, newest first, with their question counts.
func (r *TestRepository) List(ctx context.Context, filter model.TestFilter) ([]model.Test, error) {
	query := `SELECT t.id, t.title, t.description, t.duration_minutes, t.difficulty, t.age_group,
	                 t.created_by, t.created_at, t.updated_at,
	                 (SELECT COUNT(*) FROM questions q WHERE q.test_id = t.id)
	          FROM tests t
	          WHERE ($1::text = '' OR t.difficulty = $1::text)
	            AND ($2::text = '' OR t.age_group = $2::text)
	          ORDER BY t.created_at DESC`

	rows, err := r.pool.Query(ctx, query, filter.Difficulty, filter.AgeGroup)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tests := []model.Test{}
	for rows.Next() {
		var t model.Test
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.DurationMinutes, &t.Difficulty, &t.AgeGroup,
			&t.CreatedBy, &t.CreatedAt, &t.UpdatedAt, &t.QuestionCount); err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	return tests, rows.Err()
}

// GetByID retrieves a test with its questions in order.
func (r *TestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Test, error) {
	t := &model.Test{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, description, duration_minutes, difficulty, age_group, created_by, created_at, updated_at
		 FROM tests WHERE id = $1`, id,
	).Scan(&t.ID, &t.Title, &t.Description, &t.DurationMinutes, &t.Difficulty, &t.AgeGroup,
		&t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, test_id, question_text, question_type, options, correct_option, points, order_num
		 FROM questions WHERE test_id = $1
		 ORDER BY order_num ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("get questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.TestID, &q.QuestionText, &q.QuestionType, &q.Options,
			&q.CorrectOption, &q.Points, &q.OrderNum); err != nil {
			return nil, err
		}
		t.Questions = append(t.Questions, q)
	}
	t.QuestionCount = len(t.Questions)
	return t, rows.Err()
}

// Create inserts a test and its questions in one transaction.
func (r *TestRepository) Create(ctx context.Context, t *model.Test) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO tests (title, description, duration_minutes, difficulty, age_group, created_by)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id, created_at, updated_at`,
			t.Title, t.Description, t.DurationMinutes, t.Difficulty, t.AgeGroup, t.CreatedBy,
		).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert test: %w", err)
		}
		return insertQuestions(ctx, tx, t)
	})
}

// Update replaces a test's attributes and its entire question list.
// Stored results keep their own copy of the question count and are not touched.
func (r *TestRepository) Update(ctx context.Context, t *model.Test) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`UPDATE tests
			 SET title = $1, description = $2, duration_minutes = $3, difficulty = $4, age_group = $5,
			     updated_at = NOW()
			 WHERE id = $6
			 RETURNING created_by, created_at, updated_at`,
			t.Title, t.Description, t.DurationMinutes, t.Difficulty, t.AgeGroup, t.ID,
		).Scan(&t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
		if err != nil {
			return notFound(err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE test_id = $1`, t.ID); err != nil {
			return fmt.Errorf("delete questions: %w", err)
		}
		return insertQuestions(ctx, tx, t)
	})
}

// Delete removes a test together with every result recorded against it.
func (r *TestRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM test_results WHERE test_id = $1`, id); err != nil {
			return fmt.Errorf("purge results: %w", err)
		}

		tag, err := tx.Exec(ctx, `DELETE FROM tests WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete test: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// insertQuestions assigns IDs and order numbers and bulk-inserts t.Questions.
func insertQuestions(ctx context.Context, tx pgx.Tx, t *model.Test) error {
	for i := range t.Questions {
		q := &t.Questions[i]
		q.ID = uuid.New()
		q.TestID = t.ID
		q.OrderNum = i
		if q.QuestionType == "" {
			q.QuestionType = model.QuestionTypeMultipleChoice
		}
		if q.Points == 0 {
			q.Points = 1
		}
	}
	t.QuestionCount = len(t.Questions)

	_, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"questions"},
		[]string{"id", "test_id", "question_text", "question_type", "options", "correct_option", "points", "order_num"},
		pgx.CopyFromSlice(len(t.Questions), func(i int) ([]interface{}, error) {
			q := t.Questions[i]
			return []interface{}{q.ID, q.TestID, q.QuestionText, q.QuestionType, q.Options, q.CorrectOption, q.Points, q.OrderNum}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("insert questions: %w", err)
	}
	return nil
}
