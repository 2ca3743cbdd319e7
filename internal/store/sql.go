package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const schema = `CREATE TABLE IF NOT EXISTS snapshots (
	snapshot_key   TEXT PRIMARY KEY,
	snapshot_value TEXT NOT NULL,
	updated_at     BIGINT NOT NULL
)`

// SQL stores each key as one row of the snapshots table.
type SQL struct {
	db     *sql.DB
	driver string
}

// OpenSQL opens a SQLite file (or ":memory:") or a PostgreSQL DSN and makes
// sure the snapshots table exists.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQL, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", driver)
	}
	if driver == DriverSQLite && dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("store: mkdir: %w", err)
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if driver == DriverSQLite {
		// a single connection keeps ":memory:" databases shared and avoids
		// SQLITE_BUSY between our own writers
		db.SetMaxOpenConns(1)
		if err := applyPragmas(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: schema: %w", err)
	}
	return &SQL{db: db, driver: driver}, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	for _, p := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("store: %s: %w", p, err)
		}
	}
	return nil
}

// placeholder returns the n-th (1-based) bind parameter for the driver.
func (s *SQL) placeholder(n int) string {
	if s.driver == DriverPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (s *SQL) Get(ctx context.Context, keys ...string) (Snapshot, error) {
	out := Snapshot{}
	if len(keys) == 0 {
		return out, nil
	}
	marks := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		marks[i] = s.placeholder(i + 1)
		args[i] = k
	}
	query := fmt.Sprintf(`SELECT snapshot_key, snapshot_value FROM snapshots WHERE snapshot_key IN (%s)`, strings.Join(marks, ","))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: get: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}
		out[k] = json.RawMessage(v)
	}
	return out, rows.Err()
}

// Set writes every key of snap in one transaction.
func (s *SQL) Set(ctx context.Context, snap Snapshot) error {
	if len(snap) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`INSERT INTO snapshots (snapshot_key, snapshot_value, updated_at)
		VALUES (%s, %s, %s)
		ON CONFLICT (snapshot_key) DO UPDATE SET snapshot_value = excluded.snapshot_value, updated_at = excluded.updated_at`,
		s.placeholder(1), s.placeholder(2), s.placeholder(3))
	now := time.Now().UnixMilli()
	for k, v := range snap {
		if _, err := tx.ExecContext(ctx, query, k, string(v), now); err != nil {
			return fmt.Errorf("store: set %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

func (s *SQL) Close() error { return s.db.Close() }

// Open picks a backend by driver name; "memory" or "" selects Memory.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "", "memory":
		return NewMemory(), nil
	default:
		return OpenSQL(ctx, driver, dsn)
	}
}
