// Package view loads the businesses a profile can see joined with that
// profile's review statuses.
package view

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/locale-cli/internal/geo"
	"github.com/sells-group/locale-cli/internal/model"
	"github.com/sells-group/locale-cli/internal/store"
)

// View is the joined read model handed to the filter, stats, and exporters.
type View struct {
	User       *model.User
	Businesses []model.Business
	Visits     map[int64]model.VisitStatus
}

// Load reads businesses and visits for u concurrently. When u has a home
// location only businesses within its radius are kept; otherwise every
// stored business is returned.
func Load(ctx context.Context, st store.Store, u *model.User) (*View, error) {
	var q store.BusinessQuery
	if u.HasHome() {
		q.Bounds = geo.BoundingBox(*u.HomeLat, *u.HomeLng, float64(u.RadiusMeters))
	}

	v := &View{User: u}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		businesses, err := st.ListBusinesses(gctx, q)
		if err != nil {
			return eris.Wrap(err, "view: list businesses")
		}
		v.Businesses = WithinRadius(u, businesses)
		return nil
	})
	g.Go(func() error {
		visits, err := st.ListVisits(gctx, u.ID)
		if err != nil {
			return eris.Wrap(err, "view: list visits")
		}
		m := make(map[int64]model.VisitStatus, len(visits))
		for _, visit := range visits {
			m[visit.BusinessID] = visit.Status
		}
		v.Visits = m
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return v, nil
}

// WithinRadius keeps businesses within u's radius of home, preserving order.
// Without a home location the input is returned as is.
func WithinRadius(u *model.User, businesses []model.Business) []model.Business {
	if !u.HasHome() {
		return businesses
	}
	radius := float64(u.RadiusMeters)
	out := make([]model.Business, 0, len(businesses))
	for _, b := range businesses {
		if geo.WithinRadius(*u.HomeLat, *u.HomeLng, radius, b.Lat, b.Lng) {
			out = append(out, b)
		}
	}
	return out
}

// Distance returns the distance from u's home to b, and false when u has no home.
func Distance(u *model.User, b model.Business) (float64, bool) {
	if !u.HasHome() {
		return 0, false
	}
	return geo.DistanceMeters(*u.HomeLat, *u.HomeLng, b.Lat, b.Lng), true
}
