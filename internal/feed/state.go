package feed

// Lifecycle of an Engine.
type State int

const (
	// No observer location has been received, or no candidate set has.
	StateAwaitingLocation State = iota
	// Both inputs are known and output has been published.
	StateReady
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	default:
		return "awaiting_location"
	}
}

// Display status of a feed session.
type Status int

const (
	StatusLoading Status = iota
	StatusReady
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusError:
		return "error"
	default:
		return "loading"
	}
}
