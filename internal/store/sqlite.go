// ABOUTME: SQLite implementation of the Store interface
// ABOUTME: One AUTOINCREMENT table per resource so identifiers are never reused

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// SQL driver names accepted by OpenSQLite
const (
	DriverSQLite  = "sqlite"  // modernc.org/sqlite, pure Go
	DriverSQLite3 = "sqlite3" // github.com/mattn/go-sqlite3, requires cgo
)

// MemoryDSN opens a private in-memory database
const MemoryDSN = ":memory:"

var tableNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// OpenSQLite opens the database shared by all SQLite-backed stores.
// Parent directories are created if needed. The pool is limited to a single
// connection: SQLite serializes writers anyway, and an in-memory database only
// exists on the connection that created it.
func OpenSQLite(driver, path string) (*sql.DB, error) {
	logger := slog.Default().With("component", "store")

	switch driver {
	case "":
		driver = DriverSQLite
	case DriverSQLite, DriverSQLite3:
	default:
		return nil, fmt.Errorf("unsupported sqlite driver %q", driver)
	}

	if path != MemoryDSN {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Enable WAL mode for file databases
	if path != MemoryDSN {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling WAL mode: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	logger.Info("SQLite database opened", "driver", driver, "path", path)
	return db, nil
}

// SQLiteStore implements Store on a SQLite table. Fields are stored as a JSON
// document next to the identifier and creation time.
type SQLiteStore[F any] struct {
	db       *sql.DB
	table    string
	resource string
	logger   *slog.Logger
	now      func() time.Time
}

// NewSQLiteStore creates a store for resource in table, creating the table if
// it doesn't exist. The caller owns db and closes it.
func NewSQLiteStore[F any](db *sql.DB, resource, table string) (*SQLiteStore[F], error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	s := &SQLiteStore[F]{
		db:       db,
		table:    table,
		resource: resource,
		logger:   slog.Default().With("component", "store", "resource", resource),
		now:      time.Now,
	}

	if err := s.createSchema(); err != nil {
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return s, nil
}

// createSchema creates the resource table if it doesn't exist
func (s *SQLiteStore[F]) createSchema() error {
	_, err := s.db.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at TEXT NOT NULL,
			fields     TEXT NOT NULL
		)
	`, s.table))
	return err
}

// Create inserts a new record.
func (s *SQLiteStore[F]) Create(ctx context.Context, fields F) (*Record[F], error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s fields: %w", s.resource, err)
	}

	createdAt := s.now().UTC()
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (created_at, fields) VALUES (?, ?)`, s.table),
		createdAt.Format(time.RFC3339Nano), string(data))
	if err != nil {
		return nil, fmt.Errorf("inserting %s: %w", s.resource, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading %s id: %w", s.resource, err)
	}

	s.logger.Debug("record created", "id", id)
	return &Record[F]{ID: id, CreatedAt: createdAt, Fields: fields}, nil
}

// List returns all records ordered by identifier.
func (s *SQLiteStore[F]) List(ctx context.Context) ([]*Record[F], error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, created_at, fields FROM %s ORDER BY id`, s.table))
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", s.resource, err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]*Record[F], 0)
	for rows.Next() {
		rec, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Get retrieves a record by identifier.
func (s *SQLiteStore[F]) Get(ctx context.Context, id int64) (*Record[F], error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT id, created_at, fields FROM %s WHERE id = ?`, s.table), id)

	rec, err := s.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Resource: s.resource, ID: id}
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Update replaces the fields of an existing record, keeping ID and CreatedAt.
func (s *SQLiteStore[F]) Update(ctx context.Context, id int64, fields F) (*Record[F], error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s fields: %w", s.resource, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var createdAt string
	err = tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT created_at FROM %s WHERE id = ?`, s.table), id).Scan(&createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Resource: s.resource, ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.resource, err)
	}

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET fields = ? WHERE id = ?`, s.table), string(data), id); err != nil {
		return nil, fmt.Errorf("updating %s: %w", s.resource, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing update: %w", err)
	}

	created, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &Record[F]{ID: id, CreatedAt: created, Fields: fields}, nil
}

// Delete removes a record by identifier.
func (s *SQLiteStore[F]) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, s.table), id)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", s.resource, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return &NotFoundError{Resource: s.resource, ID: id}
	}
	return nil
}

// Reset deletes every row and clears the AUTOINCREMENT sequence so the next
// identifier is 1 again.
func (s *SQLiteStore[F]) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, s.table)); err != nil {
		return fmt.Errorf("clearing %s: %w", s.resource, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sqlite_sequence WHERE name = ?`, s.table); err != nil {
		return fmt.Errorf("resetting %s sequence: %w", s.resource, err)
	}

	return tx.Commit()
}

// Count returns the number of stored records.
func (s *SQLiteStore[F]) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", s.resource, err)
	}
	return n, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// scan reads one id, created_at, fields row.
func (s *SQLiteStore[F]) scan(row rowScanner) (*Record[F], error) {
	var rec Record[F]
	var createdAt, fields string
	if err := row.Scan(&rec.ID, &createdAt, &fields); err != nil {
		return nil, err
	}

	var err error
	rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at of %s %d: %w", s.resource, rec.ID, err)
	}
	if err := json.Unmarshal([]byte(fields), &rec.Fields); err != nil {
		return nil, fmt.Errorf("decoding fields of %s %d: %w", s.resource, rec.ID, err)
	}
	return &rec, nil
}
