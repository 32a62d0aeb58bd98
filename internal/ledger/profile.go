package ledger

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/sells-group/locale-cli/internal/geo"
	"github.com/sells-group/locale-cli/internal/model"
	"github.com/sells-group/locale-cli/internal/store"
)

var (
	// ErrUsernameTaken is returned when a username already exists, ignoring case.
	ErrUsernameTaken = errors.New("ledger: username already taken")
	// ErrEmptyUsername is returned for a blank username.
	ErrEmptyUsername = errors.New("ledger: username is required")
	// ErrInvalidPIN is returned when a PIN is not exactly four digits.
	ErrInvalidPIN = errors.New("ledger: PIN must be exactly 4 digits")
	// ErrProfileNotFound is returned for an unknown profile.
	ErrProfileNotFound = errors.New("ledger: profile not found")
	// ErrInvalidLocation is returned for coordinates outside WGS84 bounds.
	ErrInvalidLocation = errors.New("ledger: coordinates out of range")
)

// CreateProfile adds a user with the default radius and no home location.
// pin may be empty, in which case the profile is unprotected.
func (l *Ledger) CreateProfile(ctx context.Context, username, pin string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrEmptyUsername
	}

	var pinHash *string
	if pin != "" {
		if !validPIN(pin) {
			return nil, ErrInvalidPIN
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
		if err != nil {
			return nil, eris.Wrap(err, "ledger: hash pin")
		}
		h := string(hash)
		pinHash = &h
	}

	now := l.now()
	u := &model.User{
		Username:     username,
		PINHash:      pinHash,
		RadiusMeters: model.DefaultRadiusMeters,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := l.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrUsernameTaken
		}
		return nil, eris.Wrapf(err, "ledger: create profile %s", username)
	}
	zap.L().Info("ledger: profile created", zap.Int64("user_id", u.ID), zap.String("username", username))
	return u, nil
}

// VerifyPIN reports whether pin unlocks u. Profiles without a PIN always unlock.
func VerifyPIN(u *model.User, pin string) bool {
	if !u.HasPIN() {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(*u.PINHash), []byte(pin)) == nil
}

// SetLocation sets home coordinates and radius together. The radius is
// clamped to the supported range.
func (l *Ledger) SetLocation(ctx context.Context, userID int64, lat, lng float64, radiusMeters int) (*model.User, error) {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil, eris.Wrapf(ErrInvalidLocation, "ledger: set location (%v, %v)", lat, lng)
	}
	radius := geo.ClampRadiusMeters(radiusMeters)
	if err := l.store.UpdateUserLocation(ctx, userID, lat, lng, radius); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, eris.Wrapf(err, "ledger: set location user=%d", userID)
	}
	return l.Get(ctx, userID)
}

// Get returns the profile with the given ID.
func (l *Ledger) Get(ctx context.Context, userID int64) (*model.User, error) {
	u, err := l.store.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "ledger: get profile %d", userID)
	}
	return u, nil
}

// Find looks a profile up by username, ignoring case.
func (l *Ledger) Find(ctx context.Context, username string) (*model.User, error) {
	u, err := l.store.FindUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "ledger: find profile %s", username)
	}
	return u, nil
}

// List returns every profile.
func (l *Ledger) List(ctx context.Context) ([]model.User, error) {
	users, err := l.store.ListUsers(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: list profiles")
	}
	return users, nil
}

func validPIN(pin string) bool {
	if len(pin) != 4 {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
