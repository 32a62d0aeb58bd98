// Package geo provides great-circle distance helpers and radius bounding boxes.
package geo

import (
	"fmt"
	"math"
)

// EarthRadiusMeters is the mean Earth radius used by DistanceMeters.
const EarthRadiusMeters = 6371000.0

// MetersPerMile converts between miles and meters.
const MetersPerMile = 1609.34

// Search radius limits offered during onboarding.
const (
	MinRadiusMiles = 0.25
	MaxRadiusMiles = 2.0
)

// DistanceMeters returns the haversine distance between two lat/lng points.
func DistanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// MetersToMiles converts meters to miles.
func MetersToMiles(m float64) float64 {
	return m / MetersPerMile
}

// MilesToMeters converts miles to meters.
func MilesToMeters(mi float64) float64 {
	return mi * MetersPerMile
}

// FormatDistance renders whole meters under a tenth of a mile, else miles to one decimal.
func FormatDistance(meters float64) string {
	miles := MetersToMiles(meters)
	if miles < 0.1 {
		return fmt.Sprintf("%d m", int64(math.Round(meters)))
	}
	return fmt.Sprintf("%.1f mi", miles)
}

// ClampRadiusMeters bounds a search radius to the supported mile range.
func ClampRadiusMeters(meters int) int {
	lo := int(math.Round(MilesToMeters(MinRadiusMiles)))
	hi := int(math.Round(MilesToMeters(MaxRadiusMiles)))
	switch {
	case meters < lo:
		return lo
	case meters > hi:
		return hi
	default:
		return meters
	}
}
