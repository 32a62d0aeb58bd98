package model

import "time"

// DefaultRadiusMeters is the search radius given to new profiles (about half a mile).
const DefaultRadiusMeters = 805

// User is a local review profile.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PINHash      *string   `json:"-"`
	HomeLat      *float64  `json:"home_lat,omitempty"`
	HomeLng      *float64  `json:"home_lng,omitempty"`
	RadiusMeters int       `json:"radius_meters"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasHome reports whether onboarding set a home location. Both coordinates
// are written together, so checking both guards against partial rows.
func (u User) HasHome() bool {
	return u.HomeLat != nil && u.HomeLng != nil
}

// HasPIN reports whether the profile is gated by a PIN.
func (u User) HasPIN() bool {
	return u.PINHash != nil && *u.PINHash != ""
}
