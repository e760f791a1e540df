package feed

import (
	"math"
	"nearme-service/internal/domain"
	"nearme-service/internal/geo"
	"sync"
	"testing"
)

var origin = domain.Coordinates{Lat: 0, Lon: 0}

// postAt places a post on the equator, meters east of origin.
func postAt(id string, meters float64) domain.Post {
	lon := meters / geo.EarthRadiusMeters * 180 / math.Pi
	return domain.Post{
		ID:       id,
		Content:  "post " + id,
		AuthorID: "author",
		Location: &domain.Coordinates{Lat: 0, Lon: lon},
	}
}

func ids(posts []domain.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}

func equalIDs(t *testing.T, got []domain.Post, want ...string) {
	t.Helper()

	g := ids(got)
	if len(g) != len(want) {
		t.Fatalf("ids = %v, want %v", g, want)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Fatalf("ids = %v, want %v", g, want)
		}
	}
}

func boundaryCandidates() []domain.Post {
	return []domain.Post{
		postAt("far", 50001),
		postAt("edge", 49999),
		postAt("here", 0),
		postAt("close", 500),
	}
}

func TestRankFiltersByRadiusAndSortsAscending(t *testing.T) {
	got := Rank(origin, boundaryCandidates(), 50)

	equalIDs(t, got, "here", "close", "edge")

	prev := -1.0
	for _, p := range got {
		if p.DistanceMeters == nil {
			t.Fatalf("post %s has no distance", p.ID)
		}
		d := *p.DistanceMeters
		if d < 0 || d > 50000 {
			t.Fatalf("post %s distance = %f, want within [0, 50000]", p.ID, d)
		}
		if d < prev {
			t.Fatalf("post %s distance %f sorted after %f", p.ID, d, prev)
		}
		prev = d
	}
}

func TestRankLeavesInputUntouched(t *testing.T) {
	in := boundaryCandidates()

	_ = Rank(origin, in, 50)

	for _, p := range in {
		if p.DistanceMeters != nil {
			t.Fatalf("input post %s was enriched", p.ID)
		}
	}
	if in[0].ID != "far" {
		t.Fatalf("input reordered: first = %s", in[0].ID)
	}
}

func TestRankIsStableForEqualDistances(t *testing.T) {
	in := []domain.Post{
		postAt("b", 1000),
		postAt("tie-1", 300),
		postAt("a", 10),
		postAt("tie-2", 300),
		postAt("tie-3", 300),
	}

	got := Rank(origin, in, 50)

	equalIDs(t, got, "a", "tie-1", "tie-2", "tie-3", "b")
}

func TestRankDefaultRadius(t *testing.T) {
	in := []domain.Post{postAt("in", 49000), postAt("out", 51000)}

	for _, radius := range []float64{0, -3} {
		got := Rank(origin, in, radius)
		equalIDs(t, got, "in")
	}
}

func TestRankSkipsPostsWithoutLocation(t *testing.T) {
	unset := domain.Post{ID: "unset"}
	gulf := domain.Post{ID: "gulf", Location: &domain.Coordinates{Lat: 0, Lon: 0}}

	got := Rank(domain.Coordinates{Lat: 0.01, Lon: 0.01}, []domain.Post{unset, gulf}, 50)

	equalIDs(t, got, "gulf")
}

func TestEngineEmptyBeforeObserverLocation(t *testing.T) {
	e := NewEngine()

	calls := 0
	sub := e.Subscribe(func([]domain.Post) { calls++ })
	defer sub.Unsubscribe()

	for i := 0; i < 3; i++ {
		e.OnCandidateSetReceived(boundaryCandidates(), 50)
	}

	if calls != 0 {
		t.Fatalf("listener calls = %d, want 0", calls)
	}
	if _, ok := e.Current(); ok {
		t.Fatalf("Current() published before any observer location")
	}
	if e.State() != StateAwaitingLocation {
		t.Fatalf("state = %v, want %v", e.State(), StateAwaitingLocation)
	}
}

func TestEngineLocationWithoutCandidatesStaysAwaiting(t *testing.T) {
	e := NewEngine()

	calls := 0
	sub := e.Subscribe(func([]domain.Post) { calls++ })
	defer sub.Unsubscribe()

	e.SetObserverLocation(origin)

	if calls != 0 {
		t.Fatalf("listener calls = %d, want 0", calls)
	}
	if e.State() != StateAwaitingLocation {
		t.Fatalf("state = %v, want %v", e.State(), StateAwaitingLocation)
	}

	e.OnCandidateSetReceived(boundaryCandidates(), 50)

	if calls != 1 {
		t.Fatalf("listener calls = %d, want 1", calls)
	}
	if e.State() != StateReady {
		t.Fatalf("state = %v, want %v", e.State(), StateReady)
	}
}

func TestEngineFiltersBoundaryCandidates(t *testing.T) {
	e := NewEngine()

	var last []domain.Post
	sub := e.Subscribe(func(posts []domain.Post) { last = posts })
	defer sub.Unsubscribe()

	e.OnCandidateSetReceived(boundaryCandidates(), 50)
	e.SetObserverLocation(origin)

	equalIDs(t, last, "here", "close", "edge")
}

func TestEngineSetObserverLocationIsIdempotent(t *testing.T) {
	once := NewEngine()
	once.OnCandidateSetReceived(boundaryCandidates(), 50)
	once.SetObserverLocation(origin)

	twice := NewEngine()
	twice.OnCandidateSetReceived(boundaryCandidates(), 50)
	twice.SetObserverLocation(origin)
	twice.SetObserverLocation(origin)

	a, _ := once.Current()
	b, _ := twice.Current()

	equalIDs(t, b, ids(a)...)
	for i := range a {
		if *a[i].DistanceMeters != *b[i].DistanceMeters {
			t.Fatalf("distance[%d] = %f, want %f", i, *b[i].DistanceMeters, *a[i].DistanceMeters)
		}
	}
}

func TestEngineOrderIndependence(t *testing.T) {
	observer := domain.Coordinates{Lat: 0, Lon: 0.001}

	candidatesFirst := NewEngine()
	candidatesFirst.OnCandidateSetReceived(boundaryCandidates(), 50)
	candidatesFirst.SetObserverLocation(observer)

	locationFirst := NewEngine()
	locationFirst.SetObserverLocation(observer)
	locationFirst.OnCandidateSetReceived(boundaryCandidates(), 50)

	a, okA := candidatesFirst.Current()
	b, okB := locationFirst.Current()
	if !okA || !okB {
		t.Fatalf("published = %v/%v, want true/true", okA, okB)
	}

	equalIDs(t, b, ids(a)...)
	for i := range a {
		if *a[i].DistanceMeters != *b[i].DistanceMeters {
			t.Fatalf("distance[%d] = %f, want %f", i, *b[i].DistanceMeters, *a[i].DistanceMeters)
		}
	}
}

func TestEngineRecomputesOnLocationChange(t *testing.T) {
	e := NewEngine()
	e.OnCandidateSetReceived([]domain.Post{postAt("west", 0), postAt("east", 40000)}, 50)

	e.SetObserverLocation(origin)
	got, _ := e.Current()
	equalIDs(t, got, "west", "east")

	// Move just past the eastern post.
	e.SetObserverLocation(domain.Coordinates{Lat: 0, Lon: 0.4})
	got, _ = e.Current()
	equalIDs(t, got, "east", "west")
}

func TestEngineCandidateSetReplacedWholesale(t *testing.T) {
	e := NewEngine()
	e.SetObserverLocation(origin)

	e.OnCandidateSetReceived([]domain.Post{postAt("old", 10)}, 50)
	e.OnCandidateSetReceived([]domain.Post{postAt("new", 20)}, 50)

	got, _ := e.Current()
	equalIDs(t, got, "new")
}

func TestEngineDefaultRadiusWhenUnspecified(t *testing.T) {
	e := NewEngine()
	e.SetObserverLocation(origin)
	e.OnCandidateSetReceived([]domain.Post{postAt("in", 49000), postAt("out", 51000)}, 0)

	got, _ := e.Current()
	equalIDs(t, got, "in")
}

func TestEngineCapsCandidateSet(t *testing.T) {
	posts := make([]domain.Post, 0, MaxCandidates+5)
	for i := 0; i < MaxCandidates+5; i++ {
		posts = append(posts, postAt("p", 10))
	}

	e := NewEngine()
	e.SetObserverLocation(origin)
	e.OnCandidateSetReceived(posts, 50)

	got, _ := e.Current()
	if len(got) != MaxCandidates {
		t.Fatalf("len(output) = %d, want %d", len(got), MaxCandidates)
	}
}

func TestEngineLateSubscriberReceivesCurrent(t *testing.T) {
	e := NewEngine()
	e.SetObserverLocation(origin)
	e.OnCandidateSetReceived(boundaryCandidates(), 50)

	var got []domain.Post
	sub := e.Subscribe(func(posts []domain.Post) { got = posts })
	defer sub.Unsubscribe()

	equalIDs(t, got, "here", "close", "edge")
}

func TestEngineUnsubscribeStopsDelivery(t *testing.T) {
	e := NewEngine()
	e.SetObserverLocation(origin)

	calls := 0
	sub := e.Subscribe(func([]domain.Post) { calls++ })

	e.OnCandidateSetReceived(boundaryCandidates(), 50)
	sub.Unsubscribe()
	sub.Unsubscribe()
	e.OnCandidateSetReceived(boundaryCandidates(), 50)

	if calls != 1 {
		t.Fatalf("listener calls = %d, want 1", calls)
	}
}

func TestEngineConcurrentInputsConverge(t *testing.T) {
	e := NewEngine()
	final := domain.Coordinates{Lat: 0, Lon: 0}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				e.SetObserverLocation(final)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				e.OnCandidateSetReceived(boundaryCandidates(), 50)
			}
		}()
	}
	wg.Wait()

	got, ok := e.Current()
	if !ok {
		t.Fatalf("engine never published")
	}
	equalIDs(t, got, "here", "close", "edge")
}
