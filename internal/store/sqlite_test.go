package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/locale-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func strPtr(s string) *string { return &s }

func testBusiness(osmID string, lat, lng float64) *model.Business {
	return &model.Business{
		OSMID:       osmID,
		Name:        strPtr("Bean There"),
		Category:    "Food & Drink",
		Subcategory: "Cafe",
		Lat:         lat,
		Lng:         lng,
		Address:     strPtr("12 Main St"),
		Tags:        map[string]string{"amenity": "cafe", "name": "Bean There"},
		FetchedAt:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

// --- Businesses ---

func TestSQLite_UpsertBusiness_InsertThenUpdate(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	b := testBusiness("node/1", 39.95, -75.16)
	inserted, err := st.UpsertBusiness(ctx, b)
	require.NoError(t, err)
	assert.True(t, inserted)
	firstID := b.ID
	assert.Positive(t, firstID)

	again := testBusiness("node/1", 39.951, -75.161)
	again.Name = nil
	again.Subcategory = "Coffee Shop"
	inserted, err = st.UpsertBusiness(ctx, again)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, firstID, again.ID, "id is stable across refreshes")

	got, err := st.GetBusiness(ctx, firstID)
	require.NoError(t, err)
	assert.Nil(t, got.Name)
	assert.Equal(t, "Coffee Shop", got.Subcategory)
	assert.Equal(t, 39.951, got.Lat)
	assert.Equal(t, "cafe", got.Tags["amenity"])
	assert.True(t, got.FetchedAt.Equal(again.FetchedAt))

	all, err := st.ListBusinesses(ctx, BusinessQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSQLite_UpsertBusiness_IDsIncrease(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a := testBusiness("node/1", 1, 1)
	b := testBusiness("way/1", 2, 2)
	_, err := st.UpsertBusiness(ctx, a)
	require.NoError(t, err)
	_, err = st.UpsertBusiness(ctx, b)
	require.NoError(t, err)
	assert.Greater(t, b.ID, a.ID)
}

func TestSQLite_GetBusinessByOSMID(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	b := testBusiness("relation/9", 1, 1)
	b.Tags = nil
	_, err := st.UpsertBusiness(ctx, b)
	require.NoError(t, err)

	got, err := st.GetBusinessByOSMID(ctx, "relation/9")
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
	assert.Empty(t, got.Tags)

	_, err = st.GetBusinessByOSMID(ctx, "node/404")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = st.GetBusiness(ctx, 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_ListBusinesses_Bounds(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for _, b := range []*model.Business{
		testBusiness("node/1", 10, 10),
		testBusiness("node/2", 10.5, 10.5),
		testBusiness("node/3", 20, 20),
	} {
		_, err := st.UpsertBusiness(ctx, b)
		require.NoError(t, err)
	}

	bounds := geom.NewBounds(geom.XY).Set(9, 9, 11, 11)
	got, err := st.ListBusinesses(ctx, BusinessQuery{Bounds: bounds})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "node/1", got[0].OSMID)
	assert.Equal(t, "node/2", got[1].OSMID)
}

func TestSQLite_ListBusinesses_AntimeridianSkipsLng(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.UpsertBusiness(ctx, testBusiness("node/1", 0, 179.9))
	require.NoError(t, err)
	_, err = st.UpsertBusiness(ctx, testBusiness("node/2", 0, -179.9))
	require.NoError(t, err)

	bounds := geom.NewBounds(geom.XY).Set(179.5, -1, 180.5, 1)
	got, err := st.ListBusinesses(ctx, BusinessQuery{Bounds: bounds})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

// --- Users ---

func TestSQLite_CreateUser(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	u := &model.User{Username: "Alice", RadiusMeters: model.DefaultRadiusMeters, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, st.CreateUser(ctx, u))
	assert.Positive(t, u.ID)

	dup := &model.User{Username: "alice", RadiusMeters: 805, CreatedAt: now, UpdatedAt: now}
	assert.ErrorIs(t, st.CreateUser(ctx, dup), ErrConflict)

	got, err := st.FindUserByUsername(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "Alice", got.Username)
	assert.False(t, got.HasHome())
	assert.False(t, got.HasPIN())

	_, err = st.FindUserByUsername(ctx, "bob")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_UpdateUserLocation(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	hash := "$2a$10$abc"
	u := &model.User{Username: "bob", PINHash: &hash, RadiusMeters: 805, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, st.CreateUser(ctx, u))

	require.NoError(t, st.UpdateUserLocation(ctx, u.ID, 39.95, -75.16, 1609))

	got, err := st.GetUser(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, got.HasHome())
	assert.Equal(t, 39.95, *got.HomeLat)
	assert.Equal(t, -75.16, *got.HomeLng)
	assert.Equal(t, 1609, got.RadiusMeters)
	require.NotNil(t, got.PINHash)
	assert.Equal(t, hash, *got.PINHash)

	assert.ErrorIs(t, st.UpdateUserLocation(ctx, 999, 1, 1, 805), ErrNotFound)
}

func TestSQLite_ListUsers(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, st.CreateUser(ctx, &model.User{Username: name, RadiusMeters: 805, CreatedAt: now, UpdatedAt: now}))
	}
	users, err := st.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "a", users[0].Username)
	assert.Equal(t, "c", users[2].Username)
}

// --- Visits ---

func TestSQLite_UpsertVisit_LatestWins(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	t0 := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	v := &model.Visit{UserID: 1, BusinessID: 7, Status: model.StatusVisited, Timestamp: t0}
	inserted, err := st.UpsertVisit(ctx, v)
	require.NoError(t, err)
	assert.True(t, inserted)

	v2 := &model.Visit{UserID: 1, BusinessID: 7, Status: model.StatusClosed, Timestamp: t0.Add(time.Hour)}
	inserted, err = st.UpsertVisit(ctx, v2)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, v.ID, v2.ID)

	other := &model.Visit{UserID: 2, BusinessID: 7, Status: model.StatusSkipped, Timestamp: t0}
	_, err = st.UpsertVisit(ctx, other)
	require.NoError(t, err)

	visits, err := st.ListVisits(ctx, 1)
	require.NoError(t, err)
	require.Len(t, visits, 1)
	assert.Equal(t, model.StatusClosed, visits[0].Status)
	assert.True(t, visits[0].Timestamp.Equal(t0.Add(time.Hour)))

	none, err := st.ListVisits(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, none)
}

// --- Concurrency ---

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t,
		"a.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_txlock=immediate",
		sqliteDSN("a.db"))
	assert.Equal(t,
		"file:a.db?mode=rwc&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_txlock=immediate",
		sqliteDSN("file:a.db?mode=rwc"))
}

func TestSQLite_EveryConnectionWaitsForLock(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	// Hold several connections open at once so the pool cannot reuse one.
	for i := 0; i < 3; i++ {
		conn, err := st.db.Conn(ctx)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() }) //nolint:errcheck

		var timeout int
		require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout))
		assert.Equal(t, 5000, timeout, "connection %d", i)

		var mode string
		require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode))
		assert.Equal(t, "wal", mode, "connection %d", i)
	}
}

func TestSQLite_VisitsDuringIngest(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	const n = 200

	var wg sync.WaitGroup
	errs := make(chan error, 2*n)

	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			b := testBusiness(fmt.Sprintf("node/%d", i%50), 39.95, -75.16)
			if _, err := st.UpsertBusiness(ctx, b); err != nil {
				errs <- err
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			v := &model.Visit{
				UserID:     1,
				BusinessID: int64(i%25 + 1),
				Status:     model.StatusVisited,
				Timestamp:  time.Now().UTC(),
			}
			if _, err := st.UpsertVisit(ctx, v); err != nil {
				errs <- err
			}
		}
	}()
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	visits, err := st.ListVisits(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, visits, 25)
	all, err := st.ListBusinesses(ctx, BusinessQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 50)
}

func TestSQLite_Migrate_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))
}
