package service

import (
	"context"

	"github.com/stemsi/testhub-backend/internal/model"
)

// recentResultsLimit is how many submissions the dashboard lists.
const recentResultsLimit = 10

// StatsService builds the administrator dashboard.
type StatsService struct {
	store StatsStore
}

// NewStatsService creates a new StatsService.
func NewStatsService(store StatsStore) *StatsService {
	return &StatsService{store: store}
}

// AdminStats returns platform totals and the latest submissions.
func (s *StatsService) AdminStats(ctx context.Context) (*model.AdminStats, error) {
	return s.store.AdminStats(ctx, recentResultsLimit)
}
