package services

import (
	"context"
	"fmt"
	"nearme-service/internal/domain"
	"nearme-service/internal/feed"
	"nearme-service/internal/platform/obs"
	"nearme-service/internal/ports"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const MaxPostLength = 500

type PostServiceConfig struct {
	// Number of recent posts considered for nearby ranking.
	FeedLimit int
	// Minimum spacing between posts by one author, and the burst allowed.
	RateInterval time.Duration
	RateBurst    int
}

type PostService struct {
	posts  ports.PostRepository
	users  *UserService
	events ports.EventPublisher
	cfg    PostServiceConfig
	log    *zap.Logger
	now    func() time.Time

	mu        sync.Mutex
	limiters  map[string]*authorLimiter
	lastSweep time.Time
}

type authorLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

func NewPostService(
	posts ports.PostRepository,
	users *UserService,
	events ports.EventPublisher,
	cfg PostServiceConfig,
	log *zap.Logger,
) *PostService {
	if cfg.FeedLimit <= 0 || cfg.FeedLimit > feed.MaxCandidates {
		cfg.FeedLimit = feed.MaxCandidates
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 1
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &PostService{
		posts:    posts,
		users:    users,
		events:   events,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
		limiters: make(map[string]*authorLimiter),
	}
}

// CreatePost publishes a post at location on behalf of authorID.
func (s *PostService) CreatePost(
	ctx context.Context,
	authorID string,
	content string,
	location domain.Coordinates,
) (post *domain.Post, err error) {
	defer obs.Time(ctx, "posts.create")(&err)

	content = strings.TrimSpace(content)
	if content == "" || utf8.RuneCountInString(content) > MaxPostLength {
		return nil, fmt.Errorf("create post: %w: content must be 1..%d characters", domain.ErrInvalidInput, MaxPostLength)
	}
	if !location.Valid() {
		return nil, fmt.Errorf("create post: %w: location out of range", domain.ErrInvalidInput)
	}
	if now := s.now(); !s.limiter(authorID, now).AllowN(now, 1) {
		return nil, fmt.Errorf("create post: author %q: %w", authorID, domain.ErrRateLimited)
	}

	authorName, err := s.users.DisplayName(ctx, authorID)
	if err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}

	loc := location
	p := domain.Post{
		ID:         uuid.NewString(),
		Content:    content,
		AuthorID:   authorID,
		AuthorName: authorName,
		Location:   &loc,
		CreatedAt:  s.now().UnixMilli(),
	}
	if err := s.posts.CreatePost(ctx, p); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}

	evt := PostCreatedEvent{
		PostID:    p.ID,
		AuthorID:  p.AuthorID,
		Lat:       loc.Lat,
		Lon:       loc.Lon,
		CreatedAt: p.CreatedAt,
	}
	if err := s.events.Publish(ctx, ports.EventPostCreated, evt); err != nil {
		s.log.Warn("publish post created failed", zap.String("post_id", p.ID), zap.Error(err))
	}

	return &p, nil
}

func (s *PostService) ListUserPosts(ctx context.Context, userID string) (posts []domain.Post, err error) {
	defer obs.Time(ctx, "posts.list_user")(&err)

	posts, err = s.posts.ListUserPosts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user posts: %w", err)
	}
	return posts, nil
}

// NearbyPosts ranks the most recent posts against observer once.
func (s *PostService) NearbyPosts(
	ctx context.Context,
	observer domain.Coordinates,
	radiusKm float64,
) (posts []domain.Post, err error) {
	defer obs.Time(ctx, "posts.nearby")(&err)

	if !observer.Valid() {
		return nil, fmt.Errorf("nearby posts: %w: observer out of range", domain.ErrInvalidInput)
	}

	recent, err := s.posts.ListRecentPosts(ctx, s.cfg.FeedLimit)
	if err != nil {
		return nil, fmt.Errorf("nearby posts: list recent: %w", err)
	}
	return feed.Rank(observer, recent, radiusKm), nil
}

// limiter returns the author's token bucket. A zero RateInterval disables
// limiting. Buckets idle long enough to have refilled are dropped, since a
// fresh one behaves the same.
func (s *PostService) limiter(authorID string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	idle := s.limiterIdle()
	if now.Sub(s.lastSweep) >= idle {
		for id, l := range s.limiters {
			if now.Sub(l.seen) >= idle {
				delete(s.limiters, id)
			}
		}
		s.lastSweep = now
	}

	l, ok := s.limiters[authorID]
	if !ok {
		limit := rate.Inf
		if s.cfg.RateInterval > 0 {
			limit = rate.Every(s.cfg.RateInterval)
		}
		l = &authorLimiter{lim: rate.NewLimiter(limit, s.cfg.RateBurst)}
		s.limiters[authorID] = l
	}
	l.seen = now
	return l.lim
}

// limiterIdle is how long a bucket takes to refill completely, at least a
// minute.
func (s *PostService) limiterIdle() time.Duration {
	return max(s.cfg.RateInterval*time.Duration(s.cfg.RateBurst), time.Minute)
}

// Limiters reports how many author buckets are held.
func (s *PostService) Limiters() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}
