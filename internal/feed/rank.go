package feed

import (
	"cmp"
	"nearme-service/internal/domain"
	"nearme-service/internal/geo"
	"slices"
)

const (
	// Radius applied when the caller does not specify one.
	DefaultRadiusKm = 50.0

	// Upper bound on the candidate set considered by a single ranking.
	MaxCandidates = 100
)

// Rank returns the posts within radiusKm of observer, closest first.
//
// Every returned post is a copy carrying its freshly computed distance; the
// input slice is left untouched. Posts without a location are skipped. Posts
// at equal distance keep their relative input order. radiusKm <= 0 selects
// DefaultRadiusKm.
func Rank(observer domain.Coordinates, posts []domain.Post, radiusKm float64) []domain.Post {
	if radiusKm <= 0 {
		radiusKm = DefaultRadiusKm
	}
	maxMeters := radiusKm * 1000

	out := make([]domain.Post, 0, len(posts))
	for _, p := range posts {
		if p.Location == nil {
			continue
		}
		d := geo.Distance(observer, *p.Location)
		if d <= maxMeters {
			out = append(out, p.WithDistance(d))
		}
	}

	slices.SortStableFunc(out, func(a, b domain.Post) int {
		return cmp.Compare(*a.DistanceMeters, *b.DistanceMeters)
	})

	return out
}
