package memory

import (
	"context"
	"nearme-service/internal/domain"
	"sync"
)

// LocationStore keeps the last fix per user without expiry.
type LocationStore struct {
	mu    sync.RWMutex
	fixes map[string]domain.LocationFix
}

func NewLocationStore() *LocationStore {
	return &LocationStore{fixes: make(map[string]domain.LocationFix)}
}

func (s *LocationStore) SetObserverLocation(ctx context.Context, userID string, fix domain.LocationFix) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fixes[userID] = fix
	return nil
}

func (s *LocationStore) GetObserverLocation(ctx context.Context, userID string) (*domain.LocationFix, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fix, ok := s.fixes[userID]
	if !ok {
		return nil, nil
	}
	return &fix, nil
}
