package storage

import (
	"context"

	"github.com/lib/pq"

	"bloodlink/backend/internal/models"
)

// CreateUser stores a new account.
func (s *Service) CreateUser(ctx context.Context, user *models.User) error {
	return wrapErr(s.DB.WithContext(ctx).Create(user).Error, "user")
}

// GetUserByID returns NotFound for unknown ids. Ids that are not UUIDs make
// Postgres reject the query, which surfaces as a StoreFailure.
func (s *Service) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, wrapErr(err, "user")
	}
	return &user, nil
}

// GetUserByEmail expects email already lower-cased.
func (s *Service) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, wrapErr(err, "user")
	}
	return &user, nil
}

// UpdateUserRoles replaces the role list of a user.
func (s *Service) UpdateUserRoles(ctx context.Context, id string, roles []string) error {
	result := s.DB.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Update("roles", pq.StringArray(roles))
	if result.Error != nil {
		return wrapErr(result.Error, "user")
	}
	if result.RowsAffected == 0 {
		return wrapErr(gormNotFound, "user")
	}
	return nil
}
