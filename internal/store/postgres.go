package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"

	"github.com/sells-group/locale-cli/internal/db"
	"github.com/sells-group/locale-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres connects to Postgres and returns a store over the pool.
func NewPostgres(ctx context.Context, connString string, poolCfg db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Open(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS businesses (
	id          BIGSERIAL PRIMARY KEY,
	osm_id      TEXT NOT NULL UNIQUE,
	name        TEXT,
	category    TEXT NOT NULL,
	subcategory TEXT NOT NULL,
	lat         DOUBLE PRECISION NOT NULL,
	lng         DOUBLE PRECISION NOT NULL,
	address     TEXT,
	tags        JSONB NOT NULL DEFAULT '{}'::jsonb,
	fetched_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	id            BIGSERIAL PRIMARY KEY,
	username      TEXT NOT NULL,
	pin_hash      TEXT,
	home_lat      DOUBLE PRECISION,
	home_lng      DOUBLE PRECISION,
	radius_meters INTEGER NOT NULL DEFAULT 805,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL,
	CHECK ((home_lat IS NULL) = (home_lng IS NULL))
);

CREATE TABLE IF NOT EXISTS visits (
	id          BIGSERIAL PRIMARY KEY,
	user_id     BIGINT NOT NULL,
	business_id BIGINT NOT NULL,
	status      TEXT NOT NULL,
	timestamp   TIMESTAMPTZ NOT NULL,
	UNIQUE (user_id, business_id)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username ON users (lower(username));
CREATE INDEX IF NOT EXISTS idx_businesses_category ON businesses (category);
CREATE INDEX IF NOT EXISTS idx_businesses_lat_lng ON businesses (lat, lng);
CREATE INDEX IF NOT EXISTS idx_visits_user_id ON visits (user_id);
`

// Migrate creates tables and indexes if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// UpsertBusiness relies on xmax = 0 to tell a fresh insert from a conflict update.
func (s *PostgresStore) UpsertBusiness(ctx context.Context, b *model.Business) (bool, error) {
	tagsJSON, err := marshalTags(b.Tags)
	if err != nil {
		return false, err
	}
	var inserted bool
	err = s.pool.QueryRow(ctx,
		`INSERT INTO businesses (osm_id, name, category, subcategory, lat, lng, address, tags, fetched_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9)
		 ON CONFLICT (osm_id) DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			subcategory = EXCLUDED.subcategory,
			lat = EXCLUDED.lat,
			lng = EXCLUDED.lng,
			address = EXCLUDED.address,
			tags = EXCLUDED.tags,
			fetched_at = EXCLUDED.fetched_at
		 RETURNING id, (xmax = 0) AS inserted`,
		b.OSMID, b.Name, b.Category, b.Subcategory, b.Lat, b.Lng, b.Address, tagsJSON, b.FetchedAt.UTC(),
	).Scan(&b.ID, &inserted)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: upsert business %s", b.OSMID)
	}
	return inserted, nil
}

// GetBusiness returns the business with the given surrogate ID.
func (s *PostgresStore) GetBusiness(ctx context.Context, id int64) (*model.Business, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+businessColumns+` FROM businesses WHERE id = $1`, id)
	return scanPgBusiness(row)
}

// GetBusinessByOSMID returns the business with the given OSM identifier.
func (s *PostgresStore) GetBusinessByOSMID(ctx context.Context, osmID string) (*model.Business, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+businessColumns+` FROM businesses WHERE osm_id = $1`, osmID)
	return scanPgBusiness(row)
}

// ListBusinesses returns businesses in insertion order.
func (s *PostgresStore) ListBusinesses(ctx context.Context, q BusinessQuery) ([]model.Business, error) {
	query := `SELECT ` + businessColumns + ` FROM businesses`
	var args []any
	if q.Bounds != nil {
		query += ` WHERE lat BETWEEN $1 AND $2`
		args = append(args, q.Bounds.Min(1), q.Bounds.Max(1))
		if lo, hi, ok := lngRange(q.Bounds); ok {
			query += ` AND lng BETWEEN $` + strconv.Itoa(len(args)+1) + ` AND $` + strconv.Itoa(len(args)+2)
			args = append(args, lo, hi)
		}
	}
	query += ` ORDER BY id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list businesses")
	}
	defer rows.Close()

	var out []model.Business
	for rows.Next() {
		b, err := scanPgBusiness(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list businesses iterate")
}

// CreateUser inserts u and sets u.ID.
func (s *PostgresStore) CreateUser(ctx context.Context, u *model.User) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (username, pin_hash, home_lat, home_lng, radius_meters, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		u.Username, u.PINHash, u.HomeLat, u.HomeLng, u.RadiusMeters, u.CreatedAt.UTC(), u.UpdatedAt.UTC(),
	).Scan(&u.ID)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return eris.Wrapf(err, "postgres: insert user %s", u.Username)
}

// GetUser returns the user with the given ID.
func (s *PostgresStore) GetUser(ctx context.Context, id int64) (*model.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanPgUser(row)
}

// FindUserByUsername matches usernames case-insensitively.
func (s *PostgresStore) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(username) = lower($1)`, username)
	return scanPgUser(row)
}

// ListUsers returns all profiles in creation order.
func (s *PostgresStore) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list users")
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		u, err := scanPgUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list users iterate")
}

// UpdateUserLocation sets the home coordinates and radius together.
func (s *PostgresStore) UpdateUserLocation(ctx context.Context, id int64, lat, lng float64, radiusMeters int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET home_lat = $1, home_lng = $2, radius_meters = $3, updated_at = $4 WHERE id = $5`,
		lat, lng, radiusMeters, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update user location %d", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertVisit keeps one row per (user, business); the latest status wins.
func (s *PostgresStore) UpsertVisit(ctx context.Context, v *model.Visit) (bool, error) {
	var inserted bool
	err := s.pool.QueryRow(ctx,
		`INSERT INTO visits (user_id, business_id, status, timestamp)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, business_id) DO UPDATE SET
			status = EXCLUDED.status,
			timestamp = EXCLUDED.timestamp
		 RETURNING id, (xmax = 0) AS inserted`,
		v.UserID, v.BusinessID, string(v.Status), v.Timestamp.UTC(),
	).Scan(&v.ID, &inserted)
	if err != nil {
		return false, eris.Wrap(err, "postgres: upsert visit")
	}
	return inserted, nil
}

// ListVisits returns every visit row for a user.
func (s *PostgresStore) ListVisits(ctx context.Context, userID int64) ([]model.Visit, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, business_id, status, timestamp FROM visits WHERE user_id = $1 ORDER BY id`, userID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list visits")
	}
	defer rows.Close()

	var out []model.Visit
	for rows.Next() {
		var v model.Visit
		var status string
		if err := rows.Scan(&v.ID, &v.UserID, &v.BusinessID, &status, &v.Timestamp); err != nil {
			return nil, eris.Wrap(err, "postgres: scan visit")
		}
		v.Status = model.VisitStatus(status)
		out = append(out, v)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list visits iterate")
}

func scanPgBusiness(row scannable) (*model.Business, error) {
	var b model.Business
	var tagsJSON []byte
	err := row.Scan(&b.ID, &b.OSMID, &b.Name, &b.Category, &b.Subcategory,
		&b.Lat, &b.Lng, &b.Address, &tagsJSON, &b.FetchedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan business")
	}
	if b.Tags, err = unmarshalTags(tagsJSON); err != nil {
		return nil, err
	}
	return &b, nil
}

func scanPgUser(row scannable) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.PINHash, &u.HomeLat, &u.HomeLng,
		&u.RadiusMeters, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan user")
	}
	if u.HomeLat == nil || u.HomeLng == nil {
		u.HomeLat, u.HomeLng = nil, nil
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Compile-time interface checks.
var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
