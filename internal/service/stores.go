package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/stemsi/testhub-backend/internal/model"
)

// Caller identifies who is performing an operation.
type Caller struct {
	UserID int
	Role   model.Role
}

// IsAdmin reports whether the caller holds the administrator role.
func (c Caller) IsAdmin() bool {
	return c.Role == model.RoleAdmin
}

// The store interfaces below are satisfied by the pgx repositories.

type UserStore interface {
	GetByID(ctx context.Context, id int) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Create(ctx context.Context, u *model.User) error
	Update(ctx context.Context, u *model.User) error
}

type TestStore interface {
	List(ctx context.Context, filter model.TestFilter) ([]model.Test, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Test, error)
	Create(ctx context.Context, t *model.Test) error
	Update(ctx context.Context, t *model.Test) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type ResultStore interface {
	Create(ctx context.Context, res *model.TestResult) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.TestResult, error)
	ListByUser(ctx context.Context, userID int) ([]model.TestResultWithTest, error)
	ListByTestPaginated(ctx context.Context, testID uuid.UUID, limit, offset int) ([]model.TestResultWithUser, int, error)
	ListAllByTest(ctx context.Context, testID uuid.UUID) ([]model.TestResultWithUser, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type StatsStore interface {
	AdminStats(ctx context.Context, recent int) (*model.AdminStats, error)
}

// TestLoader resolves a test with its questions and answer key.
type TestLoader interface {
	Load(ctx context.Context, id uuid.UUID) (*model.Test, error)
}
