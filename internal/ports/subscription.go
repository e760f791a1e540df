package ports

import "sync"

// Handle on a live subscription. Unsubscribe is safe to call more than once.
type Subscription interface {
	Unsubscribe()
}

type subscriptionFunc struct {
	once sync.Once
	fn   func()
}

func (s *subscriptionFunc) Unsubscribe() {
	s.once.Do(s.fn)
}

// NewSubscription wraps a release function so that it runs at most once.
func NewSubscription(release func()) Subscription {
	return &subscriptionFunc{fn: release}
}
