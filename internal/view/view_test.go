package view

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/locale-cli/internal/model"
	"github.com/sells-group/locale-cli/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seed(t *testing.T, st store.Store) []model.Business {
	t.Helper()
	ctx := context.Background()
	var out []model.Business
	for _, b := range []model.Business{
		{OSMID: "node/1", Category: "A", Subcategory: "a", Lat: 39.9500, Lng: -75.1600},
		{OSMID: "node/2", Category: "A", Subcategory: "a", Lat: 39.9540, Lng: -75.1600}, // ~445 m north
		{OSMID: "node/3", Category: "B", Subcategory: "b", Lat: 39.9600, Lng: -75.1600}, // ~1.1 km north
		{OSMID: "node/4", Category: "B", Subcategory: "b", Lat: 40.5000, Lng: -74.0000},
	} {
		b.FetchedAt = time.Now()
		_, err := st.UpsertBusiness(ctx, &b)
		require.NoError(t, err)
		out = append(out, b)
	}
	return out
}

func TestLoad_WithHome(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	bs := seed(t, st)

	lat, lng := 39.95, -75.16
	u := &model.User{ID: 1, HomeLat: &lat, HomeLng: &lng, RadiusMeters: 805}
	_, err := st.UpsertVisit(ctx, &model.Visit{UserID: 1, BusinessID: bs[1].ID, Status: model.StatusVisited, Timestamp: time.Now()})
	require.NoError(t, err)
	_, err = st.UpsertVisit(ctx, &model.Visit{UserID: 2, BusinessID: bs[0].ID, Status: model.StatusClosed, Timestamp: time.Now()})
	require.NoError(t, err)

	v, err := Load(ctx, st, u)
	require.NoError(t, err)
	require.Len(t, v.Businesses, 2)
	assert.Equal(t, "node/1", v.Businesses[0].OSMID)
	assert.Equal(t, "node/2", v.Businesses[1].OSMID)
	assert.Equal(t, map[int64]model.VisitStatus{bs[1].ID: model.StatusVisited}, v.Visits)
}

func TestLoad_WithoutHomeReturnsAll(t *testing.T) {
	st := newTestStore(t)
	seed(t, st)

	v, err := Load(context.Background(), st, &model.User{ID: 1, RadiusMeters: 805})
	require.NoError(t, err)
	assert.Len(t, v.Businesses, 4)
	assert.Empty(t, v.Visits)
}

func TestDistance(t *testing.T) {
	lat, lng := 39.95, -75.16
	u := &model.User{HomeLat: &lat, HomeLng: &lng}

	d, ok := Distance(u, model.Business{Lat: 39.95, Lng: -75.16})
	assert.True(t, ok)
	assert.Zero(t, d)

	_, ok = Distance(&model.User{}, model.Business{})
	assert.False(t, ok)
}
