package model

import (
	"time"

	"github.com/google/uuid"
)

// AdminStats is the administrator dashboard summary.
type AdminStats struct {
	TotalUsers       int            `json:"total_users"`
	TotalTests       int            `json:"total_tests"`
	TotalTestResults int            `json:"total_test_results"`
	AverageScore     float64        `json:"average_score"`
	RecentResults    []RecentResult `json:"recent_results"`
}

// RecentResult is one row of the dashboard's latest submissions.
type RecentResult struct {
	ID        uuid.UUID `json:"id"`
	Score     float64   `json:"score"`
	CreatedAt time.Time `json:"created_at"`
	UserName  string    `json:"user_name"`
	UserEmail string    `json:"user_email"`
	TestTitle string    `json:"test_title"`
}
