package repositories

import (
	"context"
	"fmt"
	"nearme-service/internal/domain"
	"nearme-service/internal/ports"
	"slices"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type postWatch struct {
	limit int
	fn    ports.SnapshotFunc
}

// PostWatcher turns Postgres LISTEN/NOTIFY on the posts table into live
// snapshots of recent posts.
//
// Run holds one dedicated connection listening on PostsChangedChannel. Every
// notification triggers a single recent-posts query whose result is fanned
// out to all watchers, each trimmed to its own limit.
type PostWatcher struct {
	databaseURL string
	posts       ports.PostRepository
	log         *zap.Logger

	MinBackoff time.Duration
	MaxBackoff time.Duration

	mu       sync.Mutex
	watchers map[uint64]postWatch
	nextID   uint64

	// Serializes snapshot delivery so a watcher never sees an older snapshot
	// after a newer one.
	notifyMu sync.Mutex
}

func NewPostWatcher(databaseURL string, posts ports.PostRepository, log *zap.Logger) *PostWatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &PostWatcher{
		databaseURL: databaseURL,
		posts:       posts,
		log:         log,
		MinBackoff:  500 * time.Millisecond,
		MaxBackoff:  30 * time.Second,
		watchers:    make(map[uint64]postWatch),
	}
}

// WatchRecentPosts queries the current snapshot, delivers it to fn and keeps
// fn registered for later changes. The subscription is also released when
// ctx is done.
func (w *PostWatcher) WatchRecentPosts(ctx context.Context, limit int, fn ports.SnapshotFunc) (ports.Subscription, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("watch recent posts: %w: limit must be positive", domain.ErrInvalidInput)
	}

	w.notifyMu.Lock()
	defer w.notifyMu.Unlock()

	posts, err := w.posts.ListRecentPosts(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("watch recent posts: initial snapshot: %w", err)
	}

	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.watchers[id] = postWatch{limit: limit, fn: fn}
	w.mu.Unlock()

	fn(posts, nil)

	sub := ports.NewSubscription(func() {
		w.mu.Lock()
		delete(w.watchers, id)
		w.mu.Unlock()
	})
	context.AfterFunc(ctx, sub.Unsubscribe)

	return sub, nil
}

// Watchers returns the number of registered watchers.
func (w *PostWatcher) Watchers() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.watchers)
}

// Refresh re-queries recent posts and delivers the result, or the query
// error, to every watcher.
func (w *PostWatcher) Refresh(ctx context.Context) {
	w.notifyMu.Lock()
	defer w.notifyMu.Unlock()

	watchers := w.snapshotWatchers()
	if len(watchers) == 0 {
		return
	}

	maxLimit := 0
	for _, wt := range watchers {
		maxLimit = max(maxLimit, wt.limit)
	}

	posts, err := w.posts.ListRecentPosts(ctx, maxLimit)
	if err != nil {
		w.log.Warn("refresh recent posts failed", zap.Error(err))
		for _, wt := range watchers {
			wt.fn(nil, err)
		}
		return
	}

	for _, wt := range watchers {
		n := min(wt.limit, len(posts))
		wt.fn(slices.Clone(posts[:n]), nil)
	}
}

func (w *PostWatcher) fail(err error) {
	w.notifyMu.Lock()
	defer w.notifyMu.Unlock()

	for _, wt := range w.snapshotWatchers() {
		wt.fn(nil, err)
	}
}

func (w *PostWatcher) snapshotWatchers() []postWatch {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]postWatch, 0, len(w.watchers))
	for _, wt := range w.watchers {
		out = append(out, wt)
	}
	return out
}

// Run listens for post changes until ctx is done. Connection failures are
// reported to watchers and retried with capped exponential back-off.
func (w *PostWatcher) Run(ctx context.Context) error {
	backoff := w.MinBackoff
	for {
		connected, err := w.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			backoff = w.MinBackoff
		}

		w.log.Warn("post watcher disconnected", zap.Error(err), zap.Duration("retry_in", backoff))
		w.fail(fmt.Errorf("post watcher: %w", err))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, w.MaxBackoff)
	}
}

func (w *PostWatcher) listen(ctx context.Context) (connected bool, err error) {
	conn, err := pgx.Connect(ctx, w.databaseURL)
	if err != nil {
		return false, fmt.Errorf("connect: %w", err)
	}
	defer func() { _ = conn.Close(context.Background()) }()

	if _, err := conn.Exec(ctx, "LISTEN "+PostsChangedChannel); err != nil {
		return false, fmt.Errorf("listen %s: %w", PostsChangedChannel, err)
	}
	w.log.Info("post watcher listening", zap.String("channel", PostsChangedChannel))

	// Changes may have happened while disconnected.
	w.Refresh(ctx)

	for {
		if _, err := conn.WaitForNotification(ctx); err != nil {
			return true, fmt.Errorf("wait for notification: %w", err)
		}
		w.Refresh(ctx)
	}
}
