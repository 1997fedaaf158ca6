package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/i474232898/weather-feed-aggregation/internal/weather"
)

//go:embed sql/schema.sql
var schemaSQL string

//go:embed sql/insert-snapshot.sql
var insertSnapshotSQL string

//go:embed sql/get-latest-snapshot.sql
var getLatestSnapshotSQL string

//go:embed sql/get-snapshots-range.sql
var getSnapshotsRangeSQL string

//go:embed sql/prune-by-count.sql
var pruneByCountSQL string

//go:embed sql/prune-by-age.sql
var pruneByAgeSQL string

// Dialect selects placeholder syntax.
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
)

// SQLStore keeps snapshots in a SQL table, one JSON document per row.
type SQLStore struct {
	db         *sql.DB
	dialect    Dialect
	maxHistory int
	maxAge     time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// Open connects to driver ("sqlite" or "postgres") and verifies the
// connection.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, Dialect, error) {
	var name string
	var dialect Dialect
	switch driver {
	case "sqlite", "sqlite3":
		name, dialect = "sqlite3", DialectSQLite
	case "postgres":
		name, dialect = "postgres", DialectPostgres
	default:
		return nil, 0, fmt.Errorf("unsupported store driver %q", driver)
	}

	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, 0, fmt.Errorf("db open: %w", err)
	}
	if dialect == DialectSQLite {
		// One writer at a time.
		db.SetMaxOpenConns(1)
	}

	// Validate connectivity early
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, 0, fmt.Errorf("db ping: %w", err)
	}
	return db, dialect, nil
}

// NewSQLStore wraps db. Retention follows the same rules as MemoryStore.
func NewSQLStore(db *sql.DB, dialect Dialect, maxHistory int, maxAge time.Duration, logger *slog.Logger) *SQLStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLStore{
		db:         db,
		dialect:    dialect,
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
		logger:     logger.With("component", "store"),
	}
}

// Migrate creates the snapshot table if it does not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// SaveSnapshot inserts snapshot and prunes its location's history in one
// transaction.
func (s *SQLStore) SaveSnapshot(ctx context.Context, snapshot weather.Snapshot) (err error) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	key := snapshot.Location.Key()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("rollback snapshot insert", "error", rbErr)
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, s.rebind(insertSnapshotSQL),
		snapshot.ID, key, snapshot.CollectedAt.UnixNano(), string(payload)); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	if s.maxHistory > 0 {
		if _, err = tx.ExecContext(ctx, s.rebind(pruneByCountSQL), key, key, s.maxHistory); err != nil {
			return fmt.Errorf("prune by count: %w", err)
		}
	}
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge).UnixNano()
		if _, err = tx.ExecContext(ctx, s.rebind(pruneByAgeSQL), key, cutoff); err != nil {
			return fmt.Errorf("prune by age: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetLatest returns the most recent snapshot for a location.
func (s *SQLStore) GetLatest(ctx context.Context, loc weather.Location) (weather.Snapshot, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, s.rebind(getLatestSnapshotSQL), loc.Key()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return weather.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return weather.Snapshot{}, fmt.Errorf("get latest: %w", err)
	}
	return decodeSnapshot(payload)
}

// GetRange returns all snapshots for a location between from and to (inclusive).
func (s *SQLStore) GetRange(ctx context.Context, loc weather.Location, from, to time.Time) ([]weather.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(getSnapshotsRangeSQL), loc.Key(), from.UnixNano(), to.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("get range: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Error("close snapshot rows", "error", err)
		}
	}()

	var out []weather.Snapshot
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		snap, err := decodeSnapshot(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

func decodeSnapshot(payload string) (weather.Snapshot, error) {
	var snap weather.Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return weather.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// rebind rewrites ? placeholders as $1, $2, ... for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
