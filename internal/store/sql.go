// ABOUTME: database/sql implementation of Store keeping each collection as one JSON document
// ABOUTME: Supports modernc sqlite, mattn sqlite3, and Postgres via the pgx stdlib driver

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Driver names accepted by NewSQLStore.
const (
	DriverSQLite   = "sqlite"
	DriverSQLite3  = "sqlite3"
	DriverPostgres = "pgx"
)

// SQLStore implements Store on a single collections table.
type SQLStore struct {
	collections

	db     *sql.DB
	driver string
	logger *slog.Logger
}

// NewSQLiteStore creates a SQLite store at the given path using the pure Go
// driver. Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLStore, error) {
	return NewSQLStore(DriverSQLite, path)
}

// NewSQLStore opens a store with the given driver and data source. For the
// SQLite drivers the data source is a file path; for pgx it is a DSN.
// The schema is created if it doesn't exist.
func NewSQLStore(driver, dsn string) (*SQLStore, error) {
	logger := slog.Default().With("component", "store", "driver", driver)

	if isSQLite(driver) {
		dir := filepath.Dir(dsn)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if isSQLite(driver) {
		// One connection keeps read-modify-write transactions from hitting SQLITE_BUSY.
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling WAL mode: %w", err)
		}
	}

	s := &SQLStore{
		db:     db,
		driver: driver,
		logger: logger,
	}
	s.collections = collections{docs: s, logger: logger}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQL store initialized")
	return s, nil
}

func isSQLite(driver string) bool {
	return driver == DriverSQLite || driver == DriverSQLite3
}

// createSchema creates the collections table if it doesn't exist
func (s *SQLStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS collections (
			name TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)
	`
	_, err := s.db.Exec(schema)
	return err
}

// rebind rewrites ? placeholders into $n for Postgres.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
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

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLStore) selectDoc(ctx context.Context, q queryer, key string, lock bool) ([]byte, error) {
	query := "SELECT value FROM collections WHERE name = ?"
	if lock && s.driver == DriverPostgres {
		query += " FOR UPDATE"
	}
	var value string
	err := q.QueryRowContext(ctx, s.rebind(query), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	return []byte(value), nil
}

func (s *SQLStore) readDoc(ctx context.Context, key string) ([]byte, error) {
	return s.selectDoc(ctx, s.db, key, false)
}

func (s *SQLStore) updateDoc(ctx context.Context, key string, fn func([]byte) ([]byte, error)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := s.selectDoc(ctx, tx, key, true)
	if err != nil {
		return err
	}

	next, err := fn(current)
	if err != nil {
		return err
	}

	query := s.rebind(`
		INSERT INTO collections (name, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`)
	if _, err := tx.ExecContext(ctx, query, key, string(next), time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing %s: %w", key, err)
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	s.logger.Info("closing SQL store")
	return s.db.Close()
}

// SetRaw writes a collection document verbatim. Used to import data
// exported from the web client and to exercise corruption handling.
func (s *SQLStore) SetRaw(ctx context.Context, key string, raw []byte) error {
	return s.updateDoc(ctx, key, func([]byte) ([]byte, error) { return raw, nil })
}
