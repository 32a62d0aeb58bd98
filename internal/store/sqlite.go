package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/locale-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// sqlitePragmas are applied by the driver to every pooled connection.
var sqlitePragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
}

// sqliteDSN adds the connection pragmas to path. Transactions begin
// IMMEDIATE so a read-then-write upsert takes the write lock up front and
// waits on busy_timeout instead of failing with SQLITE_BUSY on upgrade.
func sqliteDSN(path string) string {
	params := make([]string, 0, len(sqlitePragmas)+1)
	for _, p := range sqlitePragmas {
		params = append(params, "_pragma="+p)
	}
	params = append(params, "_txlock=immediate")

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(params, "&")
}

// NewSQLite opens a SQLite database at the given path in WAL mode. Every
// connection waits up to five seconds for the write lock, so ledger writes
// can run while ingestion is upserting businesses.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	if err := db.Ping(); err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "sqlite: ping")
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS businesses (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	osm_id      TEXT NOT NULL UNIQUE,
	name        TEXT,
	category    TEXT NOT NULL,
	subcategory TEXT NOT NULL,
	lat         REAL NOT NULL,
	lng         REAL NOT NULL,
	address     TEXT,
	tags        TEXT NOT NULL DEFAULT '{}',
	fetched_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT NOT NULL,
	pin_hash      TEXT,
	home_lat      REAL,
	home_lng      REAL,
	radius_meters INTEGER NOT NULL DEFAULT 805,
	created_at    DATETIME NOT NULL,
	updated_at    DATETIME NOT NULL,
	CHECK ((home_lat IS NULL) = (home_lng IS NULL))
);

CREATE TABLE IF NOT EXISTS visits (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id     INTEGER NOT NULL,
	business_id INTEGER NOT NULL,
	status      TEXT NOT NULL,
	timestamp   DATETIME NOT NULL,
	UNIQUE (user_id, business_id)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username ON users(lower(username));
CREATE INDEX IF NOT EXISTS idx_businesses_category ON businesses(category);
CREATE INDEX IF NOT EXISTS idx_businesses_lat_lng ON businesses(lat, lng);
CREATE INDEX IF NOT EXISTS idx_visits_user_id ON visits(user_id);
`

// Migrate creates tables and indexes if they do not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const businessColumns = `id, osm_id, name, category, subcategory, lat, lng, address, tags, fetched_at`

// UpsertBusiness inserts b, or overwrites the mutable fields of the row with
// the same OSMID. b.ID is set either way.
func (s *SQLiteStore) UpsertBusiness(ctx context.Context, b *model.Business) (bool, error) {
	tagsJSON, err := marshalTags(b.Tags)
	if err != nil {
		return false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: begin upsert business")
	}
	defer tx.Rollback() //nolint:errcheck

	var id int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM businesses WHERE osm_id = ?`, b.OSMID).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.ExecContext(ctx,
			`INSERT INTO businesses (osm_id, name, category, subcategory, lat, lng, address, tags, fetched_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			b.OSMID, b.Name, b.Category, b.Subcategory, b.Lat, b.Lng, b.Address, tagsJSON, b.FetchedAt.UTC(),
		)
		if err != nil {
			return false, eris.Wrapf(err, "sqlite: insert business %s", b.OSMID)
		}
		if id, err = res.LastInsertId(); err != nil {
			return false, eris.Wrap(err, "sqlite: last insert id")
		}
		if err := tx.Commit(); err != nil {
			return false, eris.Wrap(err, "sqlite: commit insert business")
		}
		b.ID = id
		return true, nil
	case err != nil:
		return false, eris.Wrapf(err, "sqlite: lookup business %s", b.OSMID)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE businesses SET name = ?, category = ?, subcategory = ?, lat = ?, lng = ?,
		 address = ?, tags = ?, fetched_at = ? WHERE id = ?`,
		b.Name, b.Category, b.Subcategory, b.Lat, b.Lng, b.Address, tagsJSON, b.FetchedAt.UTC(), id,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: update business %s", b.OSMID)
	}
	if err := tx.Commit(); err != nil {
		return false, eris.Wrap(err, "sqlite: commit update business")
	}
	b.ID = id
	return false, nil
}

// GetBusiness returns the business with the given surrogate ID.
func (s *SQLiteStore) GetBusiness(ctx context.Context, id int64) (*model.Business, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+businessColumns+` FROM businesses WHERE id = ?`, id)
	return scanBusiness(row)
}

// GetBusinessByOSMID returns the business with the given OSM identifier.
func (s *SQLiteStore) GetBusinessByOSMID(ctx context.Context, osmID string) (*model.Business, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+businessColumns+` FROM businesses WHERE osm_id = ?`, osmID)
	return scanBusiness(row)
}

// ListBusinesses returns businesses in insertion order.
func (s *SQLiteStore) ListBusinesses(ctx context.Context, q BusinessQuery) ([]model.Business, error) {
	query := `SELECT ` + businessColumns + ` FROM businesses WHERE 1=1`
	var args []any
	if q.Bounds != nil {
		query += ` AND lat BETWEEN ? AND ?`
		args = append(args, q.Bounds.Min(1), q.Bounds.Max(1))
		if lo, hi, ok := lngRange(q.Bounds); ok {
			query += ` AND lng BETWEEN ? AND ?`
			args = append(args, lo, hi)
		}
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list businesses")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Business
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list businesses iterate")
}

const userColumns = `id, username, pin_hash, home_lat, home_lng, radius_meters, created_at, updated_at`

// CreateUser inserts u and sets u.ID. A case-insensitive username collision
// returns ErrConflict.
func (s *SQLiteStore) CreateUser(ctx context.Context, u *model.User) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, pin_hash, home_lat, home_lng, radius_meters, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.Username, u.PINHash, u.HomeLat, u.HomeLng, u.RadiusMeters, u.CreatedAt.UTC(), u.UpdatedAt.UTC(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrConflict
		}
		return eris.Wrapf(err, "sqlite: insert user %s", u.Username)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return eris.Wrap(err, "sqlite: last insert id")
	}
	u.ID = id
	return nil
}

// GetUser returns the user with the given ID.
func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// FindUserByUsername matches usernames case-insensitively.
func (s *SQLiteStore) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE lower(username) = lower(?)`, username)
	return scanUser(row)
}

// ListUsers returns all profiles in creation order.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list users")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list users iterate")
}

// UpdateUserLocation sets the home coordinates and radius together.
func (s *SQLiteStore) UpdateUserLocation(ctx context.Context, id int64, lat, lng float64, radiusMeters int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET home_lat = ?, home_lng = ?, radius_meters = ?, updated_at = ? WHERE id = ?`,
		lat, lng, radiusMeters, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update user location %d", id)
	}
	return checkRowsAffected(res)
}

// UpsertVisit inserts v, or overwrites status and timestamp of the existing
// (UserID, BusinessID) row. v.ID is set either way.
func (s *SQLiteStore) UpsertVisit(ctx context.Context, v *model.Visit) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: begin upsert visit")
	}
	defer tx.Rollback() //nolint:errcheck

	var id int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM visits WHERE user_id = ? AND business_id = ?`, v.UserID, v.BusinessID,
	).Scan(&id)
	inserted := errors.Is(err, sql.ErrNoRows)
	switch {
	case inserted:
		res, err := tx.ExecContext(ctx,
			`INSERT INTO visits (user_id, business_id, status, timestamp) VALUES (?, ?, ?, ?)`,
			v.UserID, v.BusinessID, string(v.Status), v.Timestamp.UTC(),
		)
		if err != nil {
			return false, eris.Wrap(err, "sqlite: insert visit")
		}
		if id, err = res.LastInsertId(); err != nil {
			return false, eris.Wrap(err, "sqlite: last insert id")
		}
	case err != nil:
		return false, eris.Wrap(err, "sqlite: lookup visit")
	default:
		if _, err := tx.ExecContext(ctx,
			`UPDATE visits SET status = ?, timestamp = ? WHERE id = ?`,
			string(v.Status), v.Timestamp.UTC(), id,
		); err != nil {
			return false, eris.Wrap(err, "sqlite: update visit")
		}
	}

	if err := tx.Commit(); err != nil {
		return false, eris.Wrap(err, "sqlite: commit visit")
	}
	v.ID = id
	return inserted, nil
}

// ListVisits returns every visit row for a user.
func (s *SQLiteStore) ListVisits(ctx context.Context, userID int64) ([]model.Visit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, business_id, status, timestamp FROM visits WHERE user_id = ? ORDER BY id`, userID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list visits")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Visit
	for rows.Next() {
		var v model.Visit
		var status string
		if err := rows.Scan(&v.ID, &v.UserID, &v.BusinessID, &status, &v.Timestamp); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan visit")
		}
		v.Status = model.VisitStatus(status)
		out = append(out, v)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list visits iterate")
}

// helpers

func checkRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanBusiness(row scannable) (*model.Business, error) {
	var b model.Business
	var name, address sql.NullString
	var tagsJSON string

	err := row.Scan(&b.ID, &b.OSMID, &name, &b.Category, &b.Subcategory,
		&b.Lat, &b.Lng, &address, &tagsJSON, &b.FetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan business")
	}
	if name.Valid {
		b.Name = &name.String
	}
	if address.Valid {
		b.Address = &address.String
	}
	if b.Tags, err = unmarshalTags([]byte(tagsJSON)); err != nil {
		return nil, err
	}
	return &b, nil
}

func scanUser(row scannable) (*model.User, error) {
	var u model.User
	var pinHash sql.NullString
	var homeLat, homeLng sql.NullFloat64

	err := row.Scan(&u.ID, &u.Username, &pinHash, &homeLat, &homeLng,
		&u.RadiusMeters, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan user")
	}
	if pinHash.Valid {
		u.PINHash = &pinHash.String
	}
	if homeLat.Valid && homeLng.Valid {
		u.HomeLat = &homeLat.Float64
		u.HomeLng = &homeLng.Float64
	}
	return &u, nil
}

func marshalTags(tags map[string]string) (string, error) {
	if tags == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(tags)
	if err != nil {
		return "", eris.Wrap(err, "store: marshal tags")
	}
	return string(raw), nil
}

func unmarshalTags(raw []byte) (map[string]string, error) {
	tags := map[string]string{}
	if len(raw) == 0 {
		return tags, nil
	}
	if err := json.Unmarshal(raw, &tags); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal tags")
	}
	return tags, nil
}
