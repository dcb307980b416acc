package service

import (
	"context"
	"strings"

	"github.com/stemsi/testhub-backend/internal/model"
)

// UserService handles profile reads and updates.
type UserService struct {
	users UserStore
}

// NewUserService creates a new UserService.
func NewUserService(users UserStore) *UserService {
	return &UserService{users: users}
}

// GetByID retrieves a user by ID.
func (s *UserService) GetByID(ctx context.Context, id int) (*model.User, error) {
	return s.users.GetByID(ctx, id)
}

// UpdateProfile changes a user's name, email, age and school.
// The new email must not belong to another account.
func (s *UserService) UpdateProfile(ctx context.Context, id int, req model.UpdateProfileRequest) (*model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email != u.Email {
		other, err := s.users.GetByEmail(ctx, email)
		if err == nil && other.ID != u.ID {
			return nil, ErrEmailTaken
		}
	}

	u.Name = strings.TrimSpace(req.Name)
	u.Email = email
	u.Age = req.Age
	u.School = optionalString(req.School)

	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}
