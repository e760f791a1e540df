package domain

// Represents a short message pinned to a geographic location.
//
// Location is nil when the author's position was never recorded; such a post
// is never ranked by distance. DistanceMeters is only populated by the
// proximity feed and always refers to the observer location used for the
// latest ranking.
type Post struct {
	ID             string
	Content        string
	AuthorID       string
	AuthorName     string
	Location       *Coordinates
	CreatedAt      int64 // epoch milliseconds
	DistanceMeters *float64
}

// WithDistance returns a copy of the post carrying the given distance.
func (p Post) WithDistance(meters float64) Post {
	p.DistanceMeters = &meters
	return p
}
