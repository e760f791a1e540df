package memory

import (
	"context"
	"errors"
	"nearme-service/internal/domain"
	"testing"
	"time"
)

func post(id, author string, createdAt int64) domain.Post {
	return domain.Post{
		ID:        id,
		Content:   "hello " + id,
		AuthorID:  author,
		Location:  &domain.Coordinates{Lat: 1, Lon: 1},
		CreatedAt: createdAt,
	}
}

func TestPostStoreListRecentNewestFirst(t *testing.T) {
	s := NewPostStore(post("a", "u1", 100), post("b", "u2", 300), post("c", "u1", 200))

	got, err := s.ListRecentPosts(context.Background(), 2)
	if err != nil {
		t.Fatalf("ListRecentPosts: %v", err)
	}
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "c" {
		t.Fatalf("recent = %+v, want b, c", got)
	}
}

func TestPostStoreListUserPosts(t *testing.T) {
	s := NewPostStore(post("a", "u1", 100), post("b", "u2", 300), post("c", "u1", 200))

	got, _ := s.ListUserPosts(context.Background(), "u1")
	if len(got) != 2 || got[0].ID != "c" || got[1].ID != "a" {
		t.Fatalf("user posts = %+v, want c, a", got)
	}
}

func TestPostStoreRejectsDuplicateID(t *testing.T) {
	s := NewPostStore(post("a", "u1", 100))

	err := s.CreatePost(context.Background(), post("a", "u1", 200))
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestPostStoreWatchDeliversInitialAndUpdates(t *testing.T) {
	s := NewPostStore(post("a", "u1", 100))

	var snapshots [][]domain.Post
	sub, err := s.WatchRecentPosts(context.Background(), 2, func(posts []domain.Post, err error) {
		if err != nil {
			t.Errorf("snapshot error: %v", err)
		}
		snapshots = append(snapshots, posts)
	})
	if err != nil {
		t.Fatalf("WatchRecentPosts: %v", err)
	}

	if len(snapshots) != 1 || len(snapshots[0]) != 1 {
		t.Fatalf("initial snapshots = %+v, want one snapshot with one post", snapshots)
	}

	_ = s.CreatePost(context.Background(), post("b", "u1", 200))
	_ = s.CreatePost(context.Background(), post("c", "u1", 300))

	if len(snapshots) != 3 {
		t.Fatalf("snapshots = %d, want 3", len(snapshots))
	}
	last := snapshots[2]
	if len(last) != 2 || last[0].ID != "c" || last[1].ID != "b" {
		t.Fatalf("last snapshot = %+v, want c, b", last)
	}

	sub.Unsubscribe()
	_ = s.CreatePost(context.Background(), post("d", "u1", 400))
	if len(snapshots) != 3 {
		t.Fatalf("snapshots after unsubscribe = %d, want 3", len(snapshots))
	}
}

func TestPostStoreWatchReleasedOnContextCancel(t *testing.T) {
	s := NewPostStore()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	calls := 0
	_, err := s.WatchRecentPosts(ctx, 10, func([]domain.Post, error) { calls++ })
	if err != nil {
		t.Fatalf("WatchRecentPosts: %v", err)
	}

	context.AfterFunc(ctx, func() { close(done) })
	cancel()
	<-done

	// AfterFunc callbacks run in their own goroutines; wait for the store's to land.
	for i := 0; i < 1000; i++ {
		s.mu.Lock()
		n := len(s.watchers)
		s.mu.Unlock()
		if n == 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	_ = s.CreatePost(context.Background(), post("a", "u1", 1))
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}
