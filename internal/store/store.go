// Package store persists businesses, user profiles, and visits.
package store

import (
	"context"
	"errors"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/locale-cli/internal/model"
)

var (
	// ErrNotFound is returned when a keyed lookup matches no row.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned when an insert violates a unique key.
	ErrConflict = errors.New("store: unique constraint violated")
)

// BusinessQuery narrows ListBusinesses.
type BusinessQuery struct {
	// Bounds limits results to a lng (X) / lat (Y) box. Nil means everything.
	Bounds *geom.Bounds
}

// Store defines the keyed persistence the engine runs on. Businesses are
// unique on OSMID, users on lower(username), visits on (UserID, BusinessID).
// IDs are assigned on insert, increase monotonically, and are never reused.
type Store interface {
	// Businesses
	UpsertBusiness(ctx context.Context, b *model.Business) (inserted bool, err error)
	GetBusiness(ctx context.Context, id int64) (*model.Business, error)
	GetBusinessByOSMID(ctx context.Context, osmID string) (*model.Business, error)
	ListBusinesses(ctx context.Context, q BusinessQuery) ([]model.Business, error)

	// Users
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id int64) (*model.User, error)
	FindUserByUsername(ctx context.Context, username string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	UpdateUserLocation(ctx context.Context, id int64, lat, lng float64, radiusMeters int) error

	// Visits
	UpsertVisit(ctx context.Context, v *model.Visit) (inserted bool, err error)
	ListVisits(ctx context.Context, userID int64) ([]model.Visit, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// lngRange returns the longitude filter for a bounding box. ok is false when
// the box crosses the antimeridian, in which case longitude is not filtered.
func lngRange(b *geom.Bounds) (lo, hi float64, ok bool) {
	lo, hi = b.Min(0), b.Max(0)
	if lo < -180 || hi > 180 {
		return 0, 0, false
	}
	return lo, hi, true
}
