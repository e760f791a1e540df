package domain

import "time"

// Geographic coordinates in degrees.
type Coordinates struct {
	Lat float64
	Lon float64
}

// Valid reports whether the coordinates fall inside the latitude/longitude ranges.
func (c Coordinates) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// A single reading reported by a client's positioning service.
type LocationFix struct {
	Coordinates
	AccuracyMeters float64
	At             time.Time
}
