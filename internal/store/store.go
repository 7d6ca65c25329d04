// Package store provides SQLite storage for the motion event log.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// MemoryDSN keeps the event log in memory so that the snapshot files remain
// the only state the process persists.
const MemoryDSN = ":memory:"

// Store represents a SQLite database connection for recording motion events.
type Store struct {
	db   *sql.DB
	path string
}

// New creates a new Store with the given database path. An empty path opens
// an in-memory database. It opens the connection, enables foreign keys, and
// runs migrations.
func New(dbPath string) (*Store, error) {
	if dbPath == "" {
		dbPath = MemoryDSN
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database exists per connection; restrict the pool to a
	// single connection so every query sees the same tables.
	if dbPath == MemoryDSN {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection.
func (s *Store) DB() *sql.DB {
	return s.db
}
