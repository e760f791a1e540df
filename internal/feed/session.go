package feed

import (
	"context"
	"errors"
	"fmt"
	"nearme-service/internal/domain"
	"nearme-service/internal/ports"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Messages shown to clients. Details stay in the logs.
const (
	ErrLocationUnavailable = "location unavailable"
	ErrLoadPosts           = "failed to load nearby posts"
)

// errorSource records which input put the view into StatusError, so that
// only a matching recovery clears it.
type errorSource int

const (
	errorNone errorSource = iota
	errorSnapshot
	errorLocation
)

// View is what a rendering client sees of a session.
type View struct {
	Status        Status
	State         State
	Posts         []domain.Post
	Error         string
	CurrentUserID string
}

type SessionConfig struct {
	RadiusKm float64
	Limit    int
}

// Session owns one Engine for one user and feeds it from a post snapshot
// source and from the user's positioning reports.
//
// Callbacks registered with OnChange are invoked while the session lock is
// held; they must not block or call back into the Session.
type Session struct {
	userID    string
	source    ports.PostSnapshotSource
	locations ports.LocationStore
	engine    *Engine
	log       *zap.Logger

	// Held across every engine input so a cached candidate set is never
	// pushed after a newer snapshot replaced it. Taken before mu.
	inputMu sync.Mutex

	mu            sync.Mutex
	errSource     errorSource
	radiusKm      float64
	limit         int
	candidates    []domain.Post
	hasCandidates bool
	lastFix       *domain.LocationFix
	view          View
	onChange      []func(View)
	sourceSub     ports.Subscription
	engineSub     ports.Subscription
	closed        bool
}

// NewSession creates a session for userID. locations may be nil, in which
// case fixes are kept in memory only.
func NewSession(
	userID string,
	source ports.PostSnapshotSource,
	locations ports.LocationStore,
	cfg SessionConfig,
	log *zap.Logger,
) *Session {
	if cfg.RadiusKm <= 0 {
		cfg.RadiusKm = DefaultRadiusKm
	}
	if cfg.Limit <= 0 || cfg.Limit > MaxCandidates {
		cfg.Limit = MaxCandidates
	}
	if log == nil {
		log = zap.NewNop()
	}

	s := &Session{
		userID:    userID,
		source:    source,
		locations: locations,
		engine:    NewEngine(),
		log:       log.With(zap.String("user_id", userID)),
		radiusKm:  cfg.RadiusKm,
		limit:     cfg.Limit,
		view: View{
			Status:        StatusLoading,
			State:         StateAwaitingLocation,
			CurrentUserID: userID,
		},
	}
	s.engineSub = s.engine.Subscribe(s.onPublish)

	return s
}

// Start subscribes to the post snapshot source.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("feed session: start: session closed")
	}
	limit := s.limit
	s.mu.Unlock()

	sub, err := s.source.WatchRecentPosts(ctx, limit, s.onSnapshot)
	if err != nil {
		s.log.Warn("watch recent posts failed", zap.Error(err))
		s.setError(errorSnapshot, ErrLoadPosts)
		return fmt.Errorf("feed session: watch recent posts: %w", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sub.Unsubscribe()
		return nil
	}
	s.sourceSub = sub
	s.mu.Unlock()

	return nil
}

func (s *Session) onSnapshot(posts []domain.Post, err error) {
	if err != nil {
		s.log.Warn("post snapshot failed", zap.Error(err))
		s.setError(errorSnapshot, ErrLoadPosts)
		return
	}

	s.inputMu.Lock()
	defer s.inputMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.candidates = slices.Clone(posts)
	s.hasCandidates = true
	radius := s.radiusKm
	s.mu.Unlock()

	s.update(func(v *View) {
		if s.errSource != errorSnapshot {
			return
		}
		s.errSource = errorNone
		v.Error = ""
		v.Status = StatusLoading
		if v.State == StateReady {
			v.Status = StatusReady
		}
	})

	s.engine.OnCandidateSetReceived(posts, radius)
}

func (s *Session) onPublish(posts []domain.Post) {
	s.update(func(v *View) {
		v.State = StateReady
		v.Posts = posts
		// Posts ranked from the last good snapshot; the fetch error stands.
		if s.errSource == errorSnapshot {
			return
		}
		s.errSource = errorNone
		v.Status = StatusReady
		v.Error = ""
	})
}

// UpdateLocation forwards a positioning fix to the engine and remembers it.
func (s *Session) UpdateLocation(ctx context.Context, fix domain.LocationFix) error {
	if !fix.Valid() {
		return fmt.Errorf("feed session: update location: %w: coordinates out of range", domain.ErrInvalidInput)
	}
	if fix.At.IsZero() {
		fix.At = time.Now().UTC()
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	stored := fix
	s.lastFix = &stored
	s.mu.Unlock()

	s.inputMu.Lock()
	s.engine.SetObserverLocation(fix.Coordinates)
	s.inputMu.Unlock()

	s.update(func(v *View) {
		// Clears a previous positioning error while candidates are pending.
		if v.State == StateAwaitingLocation && s.errSource != errorSnapshot {
			s.errSource = errorNone
			v.Status = StatusLoading
			v.Error = ""
		}
	})

	if s.locations != nil {
		if err := s.locations.SetObserverLocation(ctx, s.userID, fix); err != nil {
			s.log.Warn("persist observer location failed", zap.Error(err))
		}
	}

	return nil
}

// ReportLocationError records a positioning failure. The last published
// posts stay visible.
func (s *Session) ReportLocationError(message string) {
	if message == "" {
		message = ErrLocationUnavailable
	}
	s.setError(errorLocation, message)
}

// Refresh re-ranks against the last known location. When the session has not
// seen one yet, the last persisted fix for the user is used.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	var fix *domain.LocationFix
	if s.lastFix != nil {
		f := *s.lastFix
		fix = &f
	}
	s.mu.Unlock()

	s.update(func(v *View) {
		if s.errSource == errorSnapshot {
			return
		}
		s.errSource = errorNone
		v.Status = StatusLoading
		v.Error = ""
	})

	if fix == nil && s.locations != nil {
		stored, err := s.locations.GetObserverLocation(ctx, s.userID)
		if err != nil {
			s.setError(errorLocation, ErrLocationUnavailable)
			return fmt.Errorf("feed session: refresh: %w", err)
		}
		fix = stored
	}
	if fix == nil {
		s.setError(errorLocation, ErrLocationUnavailable)
		return nil
	}

	s.mu.Lock()
	s.lastFix = fix
	s.mu.Unlock()

	s.inputMu.Lock()
	s.engine.SetObserverLocation(fix.Coordinates)
	s.inputMu.Unlock()
	return nil
}

// SetRadius changes the radius and re-ranks the cached candidates.
func (s *Session) SetRadius(radiusKm float64) {
	if radiusKm <= 0 {
		radiusKm = DefaultRadiusKm
	}

	s.inputMu.Lock()
	defer s.inputMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.radiusKm = radiusKm
	candidates, ok := s.candidates, s.hasCandidates
	s.mu.Unlock()

	if ok {
		s.engine.OnCandidateSetReceived(candidates, radiusKm)
	}
}

// RadiusKm returns the radius applied to incoming snapshots.
func (s *Session) RadiusKm() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.radiusKm
}

// View returns the current view.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// OnChange registers fn to receive the view after every change.
func (s *Session) OnChange(fn func(View)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// Close releases the snapshot and engine subscriptions. It is safe to call
// more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	sourceSub, engineSub := s.sourceSub, s.engineSub
	s.onChange = nil
	s.mu.Unlock()

	if sourceSub != nil {
		sourceSub.Unsubscribe()
	}
	if engineSub != nil {
		engineSub.Unsubscribe()
	}
}

func (s *Session) setError(source errorSource, message string) {
	s.update(func(v *View) {
		s.errSource = source
		v.Status = StatusError
		v.Error = message
	})
}

func (s *Session) update(apply func(v *View)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	apply(&s.view)

	v := s.snapshot()
	for _, fn := range s.onChange {
		fn(v)
	}
}

func (s *Session) snapshot() View {
	v := s.view
	v.Posts = slices.Clone(v.Posts)
	return v
}
