package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/covenantlab/contract-notary/internal/models"
)

// UserService resolves opaque user identifiers. It is the core's user
// directory; account management beyond creation lives elsewhere.
type UserService interface {
	CreateUser(ctx context.Context, name, email string) (*models.User, error)
	GetUserByUUID(ctx context.Context, userUUID string) (*models.User, error)
	GetUsersByUUIDs(ctx context.Context, userUUIDs []string) ([]models.User, error)
}

type userService struct {
	db *gorm.DB
}

// NewUserService creates a new UserService
func NewUserService(db *gorm.DB) UserService {
	return &userService{db: db}
}

// CreateUser registers a user under a freshly generated UUID.
func (s *userService) CreateUser(ctx context.Context, name, email string) (*models.User, error) {
	user := &models.User{
		UUID:  uuid.New().String(),
		Name:  name,
		Email: email,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByUUID returns the user with the given UUID or ErrUserNotFound.
func (s *userService) GetUserByUUID(ctx context.Context, userUUID string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("uuid = ?", userUUID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userUUID)
		}
		return nil, err
	}
	return &user, nil
}

// GetUsersByUUIDs resolves every UUID or fails with ErrUserNotFound naming
// the first identifier that does not resolve.
func (s *userService) GetUsersByUUIDs(ctx context.Context, userUUIDs []string) ([]models.User, error) {
	users := make([]models.User, 0, len(userUUIDs))
	for _, id := range userUUIDs {
		user, err := s.GetUserByUUID(ctx, id)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, nil
}
