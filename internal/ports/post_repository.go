package ports

import (
	"context"
	"nearme-service/internal/domain"
)

// Port: a boundary for persisting and reading Post entities.
type PostRepository interface {
	// Persist a new post.
	CreatePost(ctx context.Context, post domain.Post) error
	// Return the most recent posts, newest first, at most limit entries.
	ListRecentPosts(ctx context.Context, limit int) ([]domain.Post, error)
	// Return all posts written by authorID, newest first.
	ListUserPosts(ctx context.Context, authorID string) ([]domain.Post, error)
}
