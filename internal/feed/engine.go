package feed

import (
	"nearme-service/internal/domain"
	"nearme-service/internal/platform/obs"
	"nearme-service/internal/ports"
	"slices"
	"sync"
)

// Engine keeps the ranked nearby-post list for one observer.
//
// It caches the latest candidate set and the latest observer location, both
// replaced wholesale, and publishes a freshly ranked list to its listeners
// whenever either input changes once both are known. Nothing is published
// before the first observer location arrives.
//
// Engine is safe for concurrent use. Listeners run outside the state lock but
// one at a time; they may read Current and State but must not feed inputs
// back into the engine.
type Engine struct {
	mu            sync.Mutex
	candidates    []domain.Post
	hasCandidates bool
	radiusKm      float64
	observer      domain.Coordinates
	hasObserver   bool

	version   uint64
	output    []domain.Post
	published bool

	listeners map[uint64]func([]domain.Post)
	nextID    uint64

	deliverMu sync.Mutex
	delivered uint64
}

func NewEngine() *Engine {
	return &Engine{
		radiusKm:  DefaultRadiusKm,
		listeners: make(map[uint64]func([]domain.Post)),
	}
}

// SetObserverLocation replaces the observer location and re-ranks the cached
// candidate set, if any.
func (e *Engine) SetObserverLocation(c domain.Coordinates) {
	e.mu.Lock()
	e.observer = c
	e.hasObserver = true
	e.recomputeAndDeliver()
}

// OnCandidateSetReceived replaces the candidate set and the radius used to
// filter it, then re-ranks against the cached observer location, if any.
// radiusKm <= 0 selects DefaultRadiusKm. Only the first MaxCandidates posts
// are kept.
func (e *Engine) OnCandidateSetReceived(posts []domain.Post, radiusKm float64) {
	if radiusKm <= 0 {
		radiusKm = DefaultRadiusKm
	}
	if len(posts) > MaxCandidates {
		posts = posts[:MaxCandidates]
	}

	e.mu.Lock()
	e.candidates = slices.Clone(posts)
	e.hasCandidates = true
	e.radiusKm = radiusKm
	e.recomputeAndDeliver()
}

// recomputeAndDeliver must be called with e.mu held; it releases it.
func (e *Engine) recomputeAndDeliver() {
	if !e.hasObserver || !e.hasCandidates {
		e.mu.Unlock()
		return
	}

	out := Rank(e.observer, e.candidates, e.radiusKm)
	e.version++
	version := e.version
	e.output = out
	e.published = true

	listeners := make([]func([]domain.Post), 0, len(e.listeners))
	for _, fn := range e.listeners {
		listeners = append(listeners, fn)
	}
	e.mu.Unlock()

	obs.FeedRecomputations.Inc()
	obs.FeedOutputSize.Observe(float64(len(out)))

	e.deliverMu.Lock()
	defer e.deliverMu.Unlock()

	// A newer ranking was already delivered while this one waited.
	if version <= e.delivered {
		return
	}
	e.delivered = version

	for _, fn := range listeners {
		fn(out)
	}
}

// State reports whether the engine has published output.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.published {
		return StateReady
	}
	return StateAwaitingLocation
}

// Current returns a copy of the last published list. The boolean is false
// while the engine is still awaiting its inputs.
func (e *Engine) Current() ([]domain.Post, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.published {
		return nil, false
	}
	return slices.Clone(e.output), true
}

// Subscribe registers fn to receive every published list. When output already
// exists fn receives it immediately. The list passed to fn must not be
// modified.
func (e *Engine) Subscribe(fn func([]domain.Post)) ports.Subscription {
	e.deliverMu.Lock()
	defer e.deliverMu.Unlock()

	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.listeners[id] = fn
	out, published := e.output, e.published
	e.mu.Unlock()

	if published {
		fn(out)
	}

	return ports.NewSubscription(func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	})
}
