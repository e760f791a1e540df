package feed

import (
	"context"
	"errors"
	"fmt"
	"nearme-service/internal/domain"
	"nearme-service/internal/ports"
	"strings"
	"sync"
	"testing"
)

type fakeSource struct {
	fn           ports.SnapshotFunc
	limit        int
	unsubscribed int
	err          error
}

func (f *fakeSource) WatchRecentPosts(ctx context.Context, limit int, fn ports.SnapshotFunc) (ports.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.fn = fn
	f.limit = limit
	return ports.NewSubscription(func() { f.unsubscribed++ }), nil
}

func (f *fakeSource) emit(posts []domain.Post) { f.fn(posts, nil) }

func (f *fakeSource) fail(err error) { f.fn(nil, err) }

type fakeLocations struct {
	fixes map[string]domain.LocationFix
	err   error
}

func newFakeLocations() *fakeLocations {
	return &fakeLocations{fixes: make(map[string]domain.LocationFix)}
}

func (f *fakeLocations) SetObserverLocation(ctx context.Context, userID string, fix domain.LocationFix) error {
	if f.err != nil {
		return f.err
	}
	f.fixes[userID] = fix
	return nil
}

func (f *fakeLocations) GetObserverLocation(ctx context.Context, userID string) (*domain.LocationFix, error) {
	if f.err != nil {
		return nil, f.err
	}
	fix, ok := f.fixes[userID]
	if !ok {
		return nil, nil
	}
	return &fix, nil
}

func fixAt(c domain.Coordinates) domain.LocationFix {
	return domain.LocationFix{Coordinates: c, AccuracyMeters: 5}
}

func startSession(t *testing.T, locations ports.LocationStore) (*Session, *fakeSource) {
	t.Helper()

	src := &fakeSource{}
	s := NewSession("user-1", src, locations, SessionConfig{RadiusKm: 50, Limit: 100}, nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(s.Close)
	return s, src
}

func TestSessionInitialView(t *testing.T) {
	s, src := startSession(t, nil)

	v := s.View()
	if v.Status != StatusLoading || v.State != StateAwaitingLocation {
		t.Fatalf("view = %v/%v, want loading/awaiting_location", v.Status, v.State)
	}
	if v.CurrentUserID != "user-1" {
		t.Fatalf("CurrentUserID = %q, want %q", v.CurrentUserID, "user-1")
	}
	if src.limit != 100 {
		t.Fatalf("watch limit = %d, want 100", src.limit)
	}
}

func TestSessionPublishesWhenBothInputsKnown(t *testing.T) {
	s, src := startSession(t, nil)

	var changes []View
	s.OnChange(func(v View) { changes = append(changes, v) })

	src.emit(boundaryCandidates())
	if s.View().Status != StatusLoading {
		t.Fatalf("status = %v before location, want loading", s.View().Status)
	}

	if err := s.UpdateLocation(context.Background(), fixAt(origin)); err != nil {
		t.Fatalf("UpdateLocation: %v", err)
	}

	v := s.View()
	if v.Status != StatusReady || v.State != StateReady {
		t.Fatalf("view = %v/%v, want ready/ready", v.Status, v.State)
	}
	equalIDs(t, v.Posts, "here", "close", "edge")
	if len(changes) == 0 || changes[len(changes)-1].Status != StatusReady {
		t.Fatalf("last change = %+v, want ready", changes)
	}
}

func TestSessionRejectsInvalidLocation(t *testing.T) {
	s, src := startSession(t, nil)
	src.emit(boundaryCandidates())

	err := s.UpdateLocation(context.Background(), fixAt(domain.Coordinates{Lat: 91, Lon: 0}))
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	if s.View().State != StateAwaitingLocation {
		t.Fatalf("invalid location reached the engine")
	}
}

func TestSessionSnapshotErrorKeepsLastPosts(t *testing.T) {
	s, src := startSession(t, nil)
	src.emit(boundaryCandidates())
	_ = s.UpdateLocation(context.Background(), fixAt(origin))

	src.fail(errors.New("connection reset"))

	v := s.View()
	if v.Status != StatusError {
		t.Fatalf("status = %v, want error", v.Status)
	}
	if v.Error != ErrLoadPosts {
		t.Fatalf("error = %q, want %q", v.Error, ErrLoadPosts)
	}
	equalIDs(t, v.Posts, "here", "close", "edge")

	// The next good snapshot recovers.
	src.emit([]domain.Post{postAt("fresh", 5)})
	v = s.View()
	if v.Status != StatusReady {
		t.Fatalf("status = %v after recovery, want ready", v.Status)
	}
	equalIDs(t, v.Posts, "fresh")
}

func TestSessionLocationErrorDoesNotResetEngine(t *testing.T) {
	s, src := startSession(t, nil)
	src.emit(boundaryCandidates())
	_ = s.UpdateLocation(context.Background(), fixAt(origin))

	s.ReportLocationError("permission denied")

	v := s.View()
	if v.Status != StatusError || v.Error != "permission denied" {
		t.Fatalf("view = %v %q, want error %q", v.Status, v.Error, "permission denied")
	}
	if v.State != StateReady {
		t.Fatalf("state = %v, want ready", v.State)
	}
	equalIDs(t, v.Posts, "here", "close", "edge")
}

func TestSessionSetRadiusReranksCachedCandidates(t *testing.T) {
	s, src := startSession(t, nil)
	src.emit(boundaryCandidates())
	_ = s.UpdateLocation(context.Background(), fixAt(origin))

	s.SetRadius(1)
	equalIDs(t, s.View().Posts, "here", "close")

	s.SetRadius(60)
	equalIDs(t, s.View().Posts, "here", "close", "edge", "far")

	if s.RadiusKm() != 60 {
		t.Fatalf("RadiusKm = %f, want 60", s.RadiusKm())
	}
}

func TestSessionPersistsLocation(t *testing.T) {
	locations := newFakeLocations()
	s, _ := startSession(t, locations)

	_ = s.UpdateLocation(context.Background(), fixAt(domain.Coordinates{Lat: 10, Lon: 20}))

	fix, ok := locations.fixes["user-1"]
	if !ok {
		t.Fatalf("fix was not persisted")
	}
	if fix.Lat != 10 || fix.Lon != 20 {
		t.Fatalf("fix = %+v, want 10,20", fix.Coordinates)
	}
	if fix.At.IsZero() {
		t.Fatalf("fix timestamp not set")
	}
}

func TestSessionPersistFailureIsNotFatal(t *testing.T) {
	locations := newFakeLocations()
	locations.err = errors.New("redis down")
	s, src := startSession(t, locations)
	src.emit(boundaryCandidates())

	if err := s.UpdateLocation(context.Background(), fixAt(origin)); err != nil {
		t.Fatalf("UpdateLocation: %v", err)
	}
	if s.View().Status != StatusReady {
		t.Fatalf("status = %v, want ready", s.View().Status)
	}
}

func TestSessionRefreshUsesStoredFix(t *testing.T) {
	locations := newFakeLocations()
	locations.fixes["user-1"] = fixAt(origin)
	s, src := startSession(t, locations)
	src.emit(boundaryCandidates())

	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	v := s.View()
	if v.Status != StatusReady {
		t.Fatalf("status = %v, want ready", v.Status)
	}
	equalIDs(t, v.Posts, "here", "close", "edge")
}

func TestSessionRefreshWithoutLocation(t *testing.T) {
	s, _ := startSession(t, newFakeLocations())

	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	v := s.View()
	if v.Status != StatusError || v.Error != ErrLocationUnavailable {
		t.Fatalf("view = %v %q, want error %q", v.Status, v.Error, ErrLocationUnavailable)
	}
}

func TestSessionStartError(t *testing.T) {
	src := &fakeSource{err: errors.New("db down")}
	s := NewSession("user-1", src, nil, SessionConfig{}, nil)
	defer s.Close()

	if err := s.Start(context.Background()); err == nil {
		t.Fatalf("Start: expected error")
	}
	if s.View().Status != StatusError {
		t.Fatalf("status = %v, want error", s.View().Status)
	}
}

func TestSessionCloseReleasesSubscription(t *testing.T) {
	src := &fakeSource{}
	s := NewSession("user-1", src, nil, SessionConfig{}, nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	calls := 0
	s.OnChange(func(View) { calls++ })

	s.Close()
	s.Close()

	if src.unsubscribed != 1 {
		t.Fatalf("unsubscribed = %d, want 1", src.unsubscribed)
	}

	// Late deliveries are ignored.
	src.emit(boundaryCandidates())
	_ = s.UpdateLocation(context.Background(), fixAt(origin))
	if calls != 0 {
		t.Fatalf("OnChange calls after Close = %d, want 0", calls)
	}
}

func TestSessionSnapshotErrorHidesDetails(t *testing.T) {
	s, src := startSession(t, nil)

	src.fail(errors.New("dial tcp 10.0.0.7:5432: user=nearme password authentication failed"))

	v := s.View()
	if v.Status != StatusError || v.Error != ErrLoadPosts {
		t.Fatalf("view = %v %q, want error %q", v.Status, v.Error, ErrLoadPosts)
	}
	if strings.Contains(v.Error, "10.0.0.7") {
		t.Fatalf("error leaks source details: %q", v.Error)
	}
}

func TestSessionLocationDoesNotHideSnapshotError(t *testing.T) {
	s, src := startSession(t, nil)
	src.fail(errors.New("connection reset"))

	if err := s.UpdateLocation(context.Background(), fixAt(origin)); err != nil {
		t.Fatalf("UpdateLocation: %v", err)
	}

	v := s.View()
	if v.Status != StatusError || v.Error != ErrLoadPosts {
		t.Fatalf("view = %v %q, want error %q", v.Status, v.Error, ErrLoadPosts)
	}
	if v.State != StateAwaitingLocation {
		t.Fatalf("state = %v, want awaiting_location", v.State)
	}
}

func TestSessionRerankKeepsSnapshotError(t *testing.T) {
	s, src := startSession(t, nil)
	src.emit(boundaryCandidates())
	_ = s.UpdateLocation(context.Background(), fixAt(origin))
	src.fail(errors.New("connection reset"))

	s.SetRadius(1)

	v := s.View()
	if v.Status != StatusError || v.Error != ErrLoadPosts {
		t.Fatalf("view = %v %q, want error %q", v.Status, v.Error, ErrLoadPosts)
	}
	equalIDs(t, v.Posts, "here", "close")
}

func TestSessionSnapshotBeforeLocationClearsError(t *testing.T) {
	s, src := startSession(t, nil)
	src.fail(errors.New("connection reset"))

	src.emit(boundaryCandidates())

	v := s.View()
	if v.Status != StatusLoading || v.Error != "" {
		t.Fatalf("view = %v %q, want loading without error", v.Status, v.Error)
	}

	_ = s.UpdateLocation(context.Background(), fixAt(origin))
	if got := s.View().Status; got != StatusReady {
		t.Fatalf("status = %v, want ready", got)
	}
}

func TestSessionSnapshotKeepsLocationError(t *testing.T) {
	s, src := startSession(t, nil)
	s.ReportLocationError("permission denied")

	src.emit(boundaryCandidates())

	v := s.View()
	if v.Status != StatusError || v.Error != "permission denied" {
		t.Fatalf("view = %v %q, want error %q", v.Status, v.Error, "permission denied")
	}
}

// SetRadius and snapshot delivery race on the live feed: the reader
// goroutine changes the radius while the watcher delivers. The engine must
// always end up ranking the newest snapshot.
func TestSessionSetRadiusConcurrentWithSnapshot(t *testing.T) {
	s, src := startSession(t, nil)
	src.emit([]domain.Post{postAt("p0", 100)})
	_ = s.UpdateLocation(context.Background(), fixAt(origin))

	for i := 1; i <= 500; i++ {
		id := fmt.Sprintf("p%d", i)
		radius := float64(1 + i%2)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.SetRadius(radius)
		}()
		go func() {
			defer wg.Done()
			src.emit([]domain.Post{postAt(id, 100)})
		}()
		wg.Wait()

		equalIDs(t, s.View().Posts, id)
	}
}
