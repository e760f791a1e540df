package ports

import (
	"context"
	"nearme-service/internal/domain"
)

// Receives either a complete snapshot of recent posts or a subscription error.
// Each snapshot replaces the previous one.
type SnapshotFunc func(posts []domain.Post, err error)

// Port: a live query over the most recent posts.
type PostSnapshotSource interface {
	// Deliver the most recent posts (newest first, at most limit) to fn now and
	// again whenever the underlying store changes, until the subscription is released.
	WatchRecentPosts(ctx context.Context, limit int, fn SnapshotFunc) (Subscription, error)
}
