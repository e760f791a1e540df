package services

import (
	"context"
	"errors"
	"fmt"
	"nearme-service/internal/domain"
	"nearme-service/internal/platform/obs"
	"nearme-service/internal/ports"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const MaxDisplayNameLength = 50

type UserService struct {
	users ports.UserRepository
	now   func() time.Time
}

func NewUserService(users ports.UserRepository) *UserService {
	return &UserService{users: users, now: time.Now}
}

// SignInAnonymously creates a fresh anonymous user without a display name.
func (s *UserService) SignInAnonymously(ctx context.Context) (user *domain.User, err error) {
	defer obs.Time(ctx, "users.sign_in_anonymously")(&err)

	u := domain.User{
		ID:        uuid.NewString(),
		Anonymous: true,
		CreatedAt: s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("sign in anonymously: create user: %w", err)
	}
	return &u, nil
}

func (s *UserService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user %q: %w", userID, err)
	}
	return u, nil
}

// UpdateDisplayName trims name and stores it if it is 1..MaxDisplayNameLength characters.
func (s *UserService) UpdateDisplayName(ctx context.Context, userID string, name string) (user *domain.User, err error) {
	defer obs.Time(ctx, "users.update_display_name")(&err)

	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > MaxDisplayNameLength {
		return nil, fmt.Errorf(
			"update display name: %w: name must be 1..%d characters",
			domain.ErrInvalidInput, MaxDisplayNameLength,
		)
	}

	if err := s.users.UpdateDisplayName(ctx, userID, name); err != nil {
		return nil, fmt.Errorf("update display name: %w", err)
	}
	return s.GetUser(ctx, userID)
}

// DisplayName returns the user's chosen name or domain.AnonymousName when
// the user has none or is unknown.
func (s *UserService) DisplayName(ctx context.Context, userID string) (string, error) {
	u, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.AnonymousName, nil
	}
	if err != nil {
		return "", fmt.Errorf("display name %q: %w", userID, err)
	}
	return u.Name(), nil
}
