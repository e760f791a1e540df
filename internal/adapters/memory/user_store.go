package memory

import (
	"context"
	"fmt"
	"nearme-service/internal/domain"
	"sync"
)

type UserStore struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]domain.User)}
}

func (s *UserStore) CreateUser(ctx context.Context, user domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return fmt.Errorf("memory user store: create user %q: %w: duplicate id", user.ID, domain.ErrInvalidInput)
	}
	s.users[user.ID] = user
	return nil
}

func (s *UserStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("memory user store: get user %q: %w", userID, domain.ErrNotFound)
	}
	return &u, nil
}

func (s *UserStore) UpdateDisplayName(ctx context.Context, userID string, displayName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("memory user store: update display name %q: %w", userID, domain.ErrNotFound)
	}
	u.DisplayName = displayName
	s.users[userID] = u
	return nil
}
