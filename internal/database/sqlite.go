// Package database keeps the operation journal: one row per mutating CLI
// command, with its outcome and the snapshot it touched.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sst-go/internal/database/migrations"
	"sst-go/internal/sst"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Operation statuses.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusError   = "error"
)

// Operation is one journal row.
type Operation struct {
	ID         int64
	Command    string
	Parameters string
	SnapshotID string
	Status     string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time // zero while the operation is running
}

// Duration returns how long the operation took, or 0 if it has not finished.
func (op *Operation) Duration() time.Duration {
	if op.FinishedAt.IsZero() {
		return 0
	}
	return op.FinishedAt.Sub(op.StartedAt)
}

// SQLiteDatabase is the SQLite-backed operation journal.
type SQLiteDatabase struct {
	db    *sql.DB
	path  string
	clock sst.Clock
}

// NewSQLiteDatabase opens the journal at path and brings its schema up to
// date. path can be a file path or ":memory:". A nil clock uses the real time.
func NewSQLiteDatabase(path string, clock sst.Clock) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.Up(db); err != nil {
		db.Close()
		return nil, err
	}

	s := NewSQLiteDatabaseFromDB(db, clock)
	s.path = path
	return s, nil
}

// NewSQLiteDatabaseFromDB wraps an existing, already migrated connection.
func NewSQLiteDatabaseFromDB(db *sql.DB, clock sst.Clock) *SQLiteDatabase {
	if clock == nil {
		clock = sst.RealClock{}
	}
	return &SQLiteDatabase{db: db, clock: clock}
}

// OpenConnection opens and configures a SQLite connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		// Each pooled connection would see a separate in-memory database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	return db, nil
}

// CreateOperation journals the start of command and returns the new row.
func (s *SQLiteDatabase) CreateOperation(command, parameters string) (*Operation, error) {
	op := &Operation{
		Command:    command,
		Parameters: parameters,
		Status:     StatusRunning,
		StartedAt:  s.clock.Now().UTC(),
	}
	res, err := s.db.Exec(
		`INSERT INTO operations (command, parameters, status, started_at) VALUES (?, ?, ?, ?)`,
		op.Command, op.Parameters, op.Status, op.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating operation: %w", err)
	}
	if op.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("creating operation: %w", err)
	}
	return op, nil
}

// FinishOperation records the outcome of a running operation. opErr is nil on
// success. snapshotID may be empty when the command never got as far as
// choosing a snapshot.
func (s *SQLiteDatabase) FinishOperation(id int64, snapshotID string, opErr error) error {
	status, message := StatusSuccess, ""
	if opErr != nil {
		status, message = StatusError, opErr.Error()
	}

	res, err := s.db.Exec(
		`UPDATE operations SET status = ?, error = ?, snapshot_id = ?, finished_at = ? WHERE id = ? AND status = ?`,
		status, message, snapshotID, s.clock.Now().UTC(), id, StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("finishing operation %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finishing operation %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("finishing operation %d: %w", id, sst.ErrNotFound)
	}
	return nil
}

// ListOperations returns the most recent operations, newest first.
// A limit of 0 or less returns every row.
func (s *SQLiteDatabase) ListOperations(limit int) ([]*Operation, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		`SELECT id, command, parameters, snapshot_id, status, error, started_at, finished_at
		 FROM operations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var ops []*Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("listing operations: %w", err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}

// FindOperation returns the operation with the given id.
func (s *SQLiteDatabase) FindOperation(id int64) (*Operation, error) {
	row := s.db.QueryRow(
		`SELECT id, command, parameters, snapshot_id, status, error, started_at, finished_at
		 FROM operations WHERE id = ?`, id)
	op, err := scanOperation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("operation %d: %w", id, sst.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("finding operation %d: %w", id, err)
	}
	return op, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOperation(row scanner) (*Operation, error) {
	var (
		op       Operation
		finished sql.NullTime
	)
	if err := row.Scan(&op.ID, &op.Command, &op.Parameters, &op.SnapshotID,
		&op.Status, &op.Error, &op.StartedAt, &finished); err != nil {
		return nil, err
	}
	op.StartedAt = op.StartedAt.UTC()
	if finished.Valid {
		op.FinishedAt = finished.Time.UTC()
	}
	return &op, nil
}

// Path returns the database file path, or ":memory:".
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// CheckMigrations verifies the schema is at the latest version.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.Status(s.db)
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
