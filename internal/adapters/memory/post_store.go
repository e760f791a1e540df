package memory

import (
	"cmp"
	"context"
	"fmt"
	"nearme-service/internal/domain"
	"nearme-service/internal/ports"
	"slices"
	"sync"
)

type postWatcher struct {
	limit int
	fn    ports.SnapshotFunc
}

// PostStore keeps posts in process and pushes a fresh snapshot of recent
// posts to every watcher after each write.
type PostStore struct {
	mu       sync.Mutex
	posts    []domain.Post
	watchers map[uint64]postWatcher
	nextID   uint64

	// Serializes snapshot delivery so watchers never see an older snapshot
	// after a newer one.
	notifyMu sync.Mutex
}

func NewPostStore(seed ...domain.Post) *PostStore {
	return &PostStore{
		posts:    slices.Clone(seed),
		watchers: make(map[uint64]postWatcher),
	}
}

func (s *PostStore) CreatePost(ctx context.Context, post domain.Post) error {
	s.mu.Lock()
	for _, p := range s.posts {
		if p.ID == post.ID {
			s.mu.Unlock()
			return fmt.Errorf("memory post store: create post %q: %w: duplicate id", post.ID, domain.ErrInvalidInput)
		}
	}
	post.DistanceMeters = nil
	s.posts = append(s.posts, post)
	s.mu.Unlock()

	s.broadcast()
	return nil
}

func (s *PostStore) ListRecentPosts(ctx context.Context, limit int) ([]domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.recentLocked(limit), nil
}

func (s *PostStore) ListUserPosts(ctx context.Context, authorID string) ([]domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Post
	for _, p := range s.recentLocked(len(s.posts)) {
		if p.AuthorID == authorID {
			out = append(out, p)
		}
	}
	return out, nil
}

// WatchRecentPosts delivers the current snapshot before returning. The
// subscription is also released when ctx is done.
func (s *PostStore) WatchRecentPosts(ctx context.Context, limit int, fn ports.SnapshotFunc) (ports.Subscription, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("memory post store: watch recent posts: %w: limit must be positive", domain.ErrInvalidInput)
	}

	s.notifyMu.Lock()
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = postWatcher{limit: limit, fn: fn}
	initial := s.recentLocked(limit)
	s.mu.Unlock()

	fn(initial, nil)
	s.notifyMu.Unlock()

	sub := ports.NewSubscription(func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	})
	context.AfterFunc(ctx, sub.Unsubscribe)

	return sub, nil
}

func (s *PostStore) broadcast() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	type delivery struct {
		fn    ports.SnapshotFunc
		posts []domain.Post
	}

	s.mu.Lock()
	deliveries := make([]delivery, 0, len(s.watchers))
	for _, w := range s.watchers {
		deliveries = append(deliveries, delivery{fn: w.fn, posts: s.recentLocked(w.limit)})
	}
	s.mu.Unlock()

	for _, d := range deliveries {
		d.fn(d.posts, nil)
	}
}

// recentLocked returns up to limit posts, newest first. Posts sharing a
// timestamp are ordered latest-inserted first.
func (s *PostStore) recentLocked(limit int) []domain.Post {
	out := slices.Clone(s.posts)
	slices.Reverse(out)
	slices.SortStableFunc(out, func(a, b domain.Post) int {
		return cmp.Compare(b.CreatedAt, a.CreatedAt)
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
