package ports

import (
	"context"
	"nearme-service/internal/domain"
)

// Port: last known observer location per user.
type LocationStore interface {
	SetObserverLocation(ctx context.Context, userID string, fix domain.LocationFix) error
	// Return nil when no fix is known for the user.
	GetObserverLocation(ctx context.Context, userID string) (*domain.LocationFix, error)
}
