package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/locale-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS businesses`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertBusiness(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`(?s)INSERT INTO businesses .* ON CONFLICT \(osm_id\) DO UPDATE`).
		WithArgs(anyArgs(9)...).
		WillReturnRows(pgxmock.NewRows([]string{"id", "inserted"}).AddRow(int64(7), true))
	mock.ExpectQuery(`INSERT INTO businesses`).
		WithArgs(anyArgs(9)...).
		WillReturnRows(pgxmock.NewRows([]string{"id", "inserted"}).AddRow(int64(7), false))

	b := testBusiness("node/1", 1, 2)
	inserted, err := s.UpsertBusiness(context.Background(), b)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, int64(7), b.ID)

	inserted, err = s.UpsertBusiness(context.Background(), b)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetBusiness_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, osm_id, name, .* FROM businesses WHERE id = \$1`).
		WithArgs(int64(42)).
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetBusiness(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListBusinesses_Bounds(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	fetched := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	name := "Bean"

	mock.ExpectQuery(`FROM businesses WHERE lat BETWEEN \$1 AND \$2 AND lng BETWEEN \$3 AND \$4 ORDER BY id`).
		WithArgs(9.0, 11.0, 8.0, 12.0).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "osm_id", "name", "category", "subcategory", "lat", "lng", "address", "tags", "fetched_at",
		}).AddRow(int64(1), "node/1", &name, "Food & Drink", "Cafe", 10.0, 10.0, (*string)(nil),
			[]byte(`{"amenity":"cafe"}`), fetched))

	bounds := geom.NewBounds(geom.XY).Set(8, 9, 12, 11)
	got, err := s.ListBusinesses(context.Background(), BusinessQuery{Bounds: bounds})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "node/1", got[0].OSMID)
	assert.Equal(t, "Bean", got[0].NameOrEmpty())
	assert.Nil(t, got[0].Address)
	assert.Equal(t, "cafe", got[0].Tags["amenity"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateUser_Conflict(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(anyArgs(7)...).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key"})

	now := time.Now()
	err := s.CreateUser(context.Background(), &model.User{Username: "alice", RadiusMeters: 805, CreatedAt: now, UpdatedAt: now})
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateUser(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`(?s)INSERT INTO users .* RETURNING id`).
		WithArgs(anyArgs(7)...).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(3)))

	now := time.Now()
	u := &model.User{Username: "alice", RadiusMeters: 805, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.CreateUser(context.Background(), u))
	assert.Equal(t, int64(3), u.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateUserLocation_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE users SET home_lat = \$1`).
		WithArgs(1.0, 2.0, 805, pgxmock.AnyArg(), int64(9)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateUserLocation(context.Background(), 9, 1, 2, 805)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertVisit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`(?s)INSERT INTO visits .* ON CONFLICT \(user_id, business_id\)`).
		WithArgs(int64(1), int64(2), "visited", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "inserted"}).AddRow(int64(5), true))

	v := &model.Visit{UserID: 1, BusinessID: 2, Status: model.StatusVisited, Timestamp: time.Now()}
	inserted, err := s.UpsertVisit(context.Background(), v)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, int64(5), v.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListVisits(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ts := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, user_id, business_id, status, timestamp FROM visits WHERE user_id = \$1`).
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "business_id", "status", "timestamp"}).
			AddRow(int64(1), int64(1), int64(10), "closed", ts).
			AddRow(int64(2), int64(1), int64(11), "visited", ts))

	visits, err := s.ListVisits(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, visits, 2)
	assert.Equal(t, model.StatusClosed, visits[0].Status)
	assert.Equal(t, int64(11), visits[1].BusinessID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
