// Package geo holds spherical-earth geometry helpers.
package geo

import (
	"math"

	"nearme-service/internal/domain"
)

// Mean earth radius used by Distance.
const EarthRadiusMeters = 6_371_000.0

// Distance returns the great-circle surface distance in meters between two
// coordinates using the haversine formula on a spherical earth.
//
// Inputs are not validated; out-of-range coordinates produce a finite but
// meaningless result.
func Distance(from, to domain.Coordinates) float64 {
	lat1 := toRadians(from.Lat)
	lat2 := toRadians(to.Lat)
	dLat := toRadians(to.Lat - from.Lat)
	dLon := toRadians(to.Lon - from.Lon)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)

	a := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }
