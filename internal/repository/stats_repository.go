package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/testhub-backend/internal/model"
)

// StatsRepository handles admin dashboard data access.
type StatsRepository struct {
	pool *pgxpool.Pool
}

// NewStatsRepository creates a new StatsRepository.
func NewStatsRepository(pool *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{pool: pool}
}

// AdminStats retrieves the dashboard totals and the latest submissions.
func (r *StatsRepository) AdminStats(ctx context.Context, recent int) (*model.AdminStats, error) {
	s := &model.AdminStats{}
	err := r.pool.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM tests),
			(SELECT COUNT(*) FROM test_results),
			(SELECT COALESCE(AVG(score), 0) FROM test_results)`,
	).Scan(&s.TotalUsers, &s.TotalTests, &s.TotalTestResults, &s.AverageScore)
	if err != nil {
		return nil, fmt.Errorf("summary counts: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT r.id, r.score, r.created_at, u.name, u.email, t.title
		 FROM test_results r
		 JOIN users u ON u.id = r.user_id
		 JOIN tests t ON t.id = r.test_id
		 ORDER BY r.created_at DESC
		 LIMIT $1`, recent)
	if err != nil {
		return nil, fmt.Errorf("recent results: %w", err)
	}
	defer rows.Close()

	s.RecentResults = []model.RecentResult{}
	for rows.Next() {
		var rr model.RecentResult
		if err := rows.Scan(&rr.ID, &rr.Score, &rr.CreatedAt, &rr.UserName, &rr.UserEmail, &rr.TestTitle); err != nil {
			return nil, err
		}
		s.RecentResults = append(s.RecentResults, rr)
	}
	return s, rows.Err()
}
