package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO needed)
)

// ErrNotFound is returned when a lookup by id matches no row.
var ErrNotFound = errors.New("not found")

// Unbounded is the page size callers pass to fetch every row in one page.
const Unbounded = math.MaxInt32

const (
	timestampLayout = "2006-01-02 15:04:05.000000"
	dateLayout      = "2006-01-02"

	minDate = "0001-01-01"
	maxDate = "9999-12-31"
)

// querier is satisfied by both *sql.DB and *sql.Conn.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the data-access facade over the flight recorder database.
type Store struct {
	db  *sql.DB
	q   querier
	now func() time.Time
}

// Option customises a Store.
type Option func(*Store)

// WithClock replaces the time source used for job status timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore opens (or creates) the SQLite database at path and ensures the schema exists.
func NewStore(path string, opts ...Option) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn) // NOTE: driver name is "sqlite", not "sqlite3"
	if err != nil {
		return nil, err
	}

	s := &Store{db: db, q: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Scope returns a store bound to one dedicated connection. The caller must invoke
// release once done with it.
func (s *Store) Scope(ctx context.Context) (*Store, func() error, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("acquire connection: %w", err)
	}
	scoped := &Store{db: s.db, q: conn, now: s.now}
	return scoped, conn.Close, nil
}

// Migrate creates the schema if it doesn't exist.
func (s *Store) Migrate(ctx context.Context) error {
	q := `
	CREATE TABLE IF NOT EXISTS countries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	);
	CREATE TABLE IF NOT EXISTS airports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		country_id INTEGER NOT NULL REFERENCES countries(id)
	);
	CREATE TABLE IF NOT EXISTS airlines (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	);
	CREATE TABLE IF NOT EXISTS locations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	);
	CREATE TABLE IF NOT EXISTS manufacturers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	);
	CREATE TABLE IF NOT EXISTS models (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		manufacturer_id INTEGER NOT NULL REFERENCES manufacturers(id),
		name TEXT NOT NULL,
		UNIQUE (manufacturer_id, name)
	);
	CREATE TABLE IF NOT EXISTS aircraft (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		model_id INTEGER NULL REFERENCES models(id),
		registration TEXT NOT NULL UNIQUE,
		serial_number TEXT NOT NULL,
		manufactured INTEGER NULL
	);
	CREATE TABLE IF NOT EXISTS flights (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		airline_id INTEGER NOT NULL REFERENCES airlines(id),
		number TEXT NOT NULL,
		embarkation TEXT NOT NULL,
		destination TEXT NOT NULL,
		UNIQUE (airline_id, number, embarkation, destination)
	);
	CREATE TABLE IF NOT EXISTS sightings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		location_id INTEGER NOT NULL REFERENCES locations(id),
		flight_id INTEGER NOT NULL REFERENCES flights(id),
		aircraft_id INTEGER NOT NULL REFERENCES aircraft(id),
		altitude INTEGER NOT NULL,
		date TEXT NOT NULL,
		is_my_flight INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_sightings_date ON sightings(date);
	CREATE TABLE IF NOT EXISTS job_status (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		parameters TEXT NULL,
		started_at TEXT NOT NULL,
		ended_at TEXT NULL,
		error TEXT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_job_status_started_at ON job_status(started_at);
	`
	_, err := s.q.ExecContext(ctx, q)
	return err
}

// offset converts a 1-based page number into a row offset.
func offset(page, size int) int {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = Unbounded
	}
	return (page - 1) * size
}

func limit(size int) int {
	if size <= 0 {
		return Unbounded
	}
	return size
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(v string) (time.Time, error) {
	return time.ParseInLocation(timestampLayout, v, time.UTC)
}

func nullableString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

// dateBounds returns the inclusive day range for the optional from/to bounds.
func dateBounds(from, to *time.Time) (string, string) {
	lo, hi := minDate, maxDate
	if from != nil {
		lo = from.Format(dateLayout)
	}
	if to != nil {
		hi = to.Format(dateLayout)
	}
	return lo, hi
}
