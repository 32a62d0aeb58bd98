package geo

import (
	"math"

	"github.com/twpayne/go-geom"
)

// BoundingBox returns lng/lat bounds (X = longitude, Y = latitude) that fully
// enclose the circle of radiusMeters around (lat, lng). Stores use it as a cheap
// index prefilter; callers still apply DistanceMeters for the exact cut.
func BoundingBox(lat, lng, radiusMeters float64) *geom.Bounds {
	delta := radiusMeters / EarthRadiusMeters
	dLat := delta * 180 / math.Pi

	// Widest longitude extent of the circle, reached slightly poleward of lat.
	dLng := 180.0
	if s, c := math.Sin(delta), math.Cos(toRad(lat)); s < c {
		dLng = math.Asin(s/c) * 180 / math.Pi
	}

	minLat := math.Max(-90, lat-dLat)
	maxLat := math.Min(90, lat+dLat)
	// Circles touching a pole cover every longitude.
	if minLat == -90 || maxLat == 90 {
		dLng = 180
	}

	return geom.NewBounds(geom.XY).Set(lng-dLng, minLat, lng+dLng, maxLat)
}

// Point returns a go-geom point for a lat/lng pair.
func Point(lat, lng float64) *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{lng, lat})
}

// WithinRadius reports whether (lat, lng) lies within radiusMeters of the center.
func WithinRadius(centerLat, centerLng, radiusMeters, lat, lng float64) bool {
	return DistanceMeters(centerLat, centerLng, lat, lng) <= radiusMeters
}
