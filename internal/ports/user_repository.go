package ports

import (
	"context"
	"nearme-service/internal/domain"
)

// Port: a boundary for user accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user domain.User) error
	// Return domain.ErrNotFound when the user does not exist.
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	UpdateDisplayName(ctx context.Context, userID string, displayName string) error
}
