// Package store persists clipboard history in SQLite.
//
// Open walks an ordered list of connection strategies: a durable file-backed
// database first, then an in-memory database. It never fails; if every
// strategy fails the returned Store is disabled and its operations are no-ops,
// so capture keeps working without persistence.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"go.klb.dev/clipkeep/internal/history"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

const driverName = "sqlite"

// sqliteTimeLayout is the format CURRENT_TIMESTAMP produces (UTC).
const sqliteTimeLayout = "2006-01-02 15:04:05"

// Kind identifies which connection strategy produced the Store.
type Kind string

const (
	KindFile   Kind = "file"
	KindMemory Kind = "memory"
	KindNone   Kind = "none"
)

// Strategy is one way of obtaining a connection.
type Strategy struct {
	Kind Kind
	// DSN passed to the sqlite driver.
	DSN string
	// prepare runs before the connection is opened (e.g. creating directories).
	prepare func() error
	pragmas []string
}

// Durable returns the file-backed strategy for path. The parent directory is
// created if missing.
func Durable(path string) Strategy {
	return Strategy{
		Kind: KindFile,
		DSN:  path,
		prepare: func() error {
			if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
				return fmt.Errorf("create data dir: %w", err)
			}
			return nil
		},
		pragmas: []string{
			"PRAGMA journal_mode = WAL",
			"PRAGMA busy_timeout = 5000",
			"PRAGMA synchronous = NORMAL",
		},
	}
}

// Memory returns the in-memory strategy. Its contents vanish with the process.
func Memory() Strategy {
	return Strategy{Kind: KindMemory, DSN: ":memory:"}
}

// Store owns the single history connection.
type Store struct {
	db   *sql.DB
	kind Kind
	path string
}

// Open tries a durable database at preferredPath, then an in-memory one.
// An empty preferredPath skips the durable attempt.
func Open(ctx context.Context, preferredPath string) *Store {
	var strategies []Strategy
	if preferredPath != "" {
		strategies = append(strategies, Durable(preferredPath))
	} else {
		slog.Warn("no history path resolved, history will not survive restart")
	}
	strategies = append(strategies, Memory())
	return OpenWith(ctx, strategies...)
}

// OpenWith returns a Store backed by the first strategy that opens
// successfully. Failures are logged and the next strategy is tried.
func OpenWith(ctx context.Context, strategies ...Strategy) *Store {
	for _, s := range strategies {
		db, err := s.open(ctx)
		if err != nil {
			slog.Warn("history storage unavailable",
				"kind", s.Kind,
				"dsn", s.DSN,
				"err", err,
			)
			continue
		}
		st := &Store{db: db, kind: s.Kind}
		if s.Kind == KindFile {
			st.path = s.DSN
		}
		slog.Info("history storage opened", "kind", st.kind, "path", st.path)
		return st
	}
	slog.Error("no history storage available, captured entries will not be saved")
	return &Store{kind: KindNone}
}

func (s Strategy) open(ctx context.Context) (*sql.DB, error) {
	if s.prepare != nil {
		if err := s.prepare(); err != nil {
			return nil, err
		}
	}
	db, err := openDB(driverName, s.DSN)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	// One connection: all persistence serialises through it, and every
	// connection to ":memory:" would otherwise see its own empty database.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	for _, p := range s.pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	return db, nil
}

// Kind reports which strategy is in use.
func (s *Store) Kind() Kind { return s.kind }

// Path returns the database file path, or "" for in-memory and disabled stores.
func (s *Store) Path() string { return s.path }

// Enabled reports whether the store has a connection.
func (s *Store) Enabled() bool { return s.db != nil }

// Close releases the connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// EnsureSchema creates the history table if it does not exist. Safe to call
// on every startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	const schema = `
		CREATE TABLE IF NOT EXISTS clipboard_history (
			id        INTEGER PRIMARY KEY,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
			content   TEXT
		)`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("store: create schema: %w", err)
	}
	return nil
}

// LoadRecent returns the limit most recent entries, newest first. A limit
// <= 0 uses history.DefaultLimit.
func (s *Store) LoadRecent(ctx context.Context, limit int) ([]history.Entry, error) {
	if s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = history.DefaultLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(CAST(timestamp AS TEXT), ''), COALESCE(content, '')
		FROM clipboard_history
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: load recent: %w", err)
	}
	defer rows.Close()

	out := make([]history.Entry, 0, limit)
	for rows.Next() {
		var (
			e  history.Entry
			ts string
		)
		if err := rows.Scan(&e.ID, &ts, &e.Content); err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}
		if t, err := time.ParseInLocation(sqliteTimeLayout, ts, time.UTC); err == nil {
			e.CreatedAt = t
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: load recent: %w", err)
	}
	return out, nil
}

// Append inserts one entry and returns its id. Duplicates are allowed;
// deduplication belongs to the poller.
func (s *Store) Append(ctx context.Context, content string) (int64, error) {
	if s.db == nil {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO clipboard_history (content) VALUES (?)", content)
	if err != nil {
		return 0, fmt.Errorf("store: append: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: last insert id: %w", err)
	}
	return id, nil
}

// Count returns the number of persisted rows.
func (s *Store) Count(ctx context.Context) (int, error) {
	if s.db == nil {
		return 0, nil
	}
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM clipboard_history").Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return n, nil
}
