package store

import (
	"fmt"
	"time"
)

// Event is one recorded motion occurrence.
type Event struct {
	ID        string
	Metric    float64
	Snapshot  string
	CreatedAt time.Time
}

// EventStore provides access to recorded motion events.
type EventStore struct {
	store *Store
}

// Events returns the event accessor.
func (s *Store) Events() *EventStore {
	return &EventStore{store: s}
}

// Insert records a motion event.
func (e *EventStore) Insert(ev *Event) error {
	_, err := e.store.db.Exec(
		`INSERT INTO events (id, metric, snapshot, created_at) VALUES (?, ?, ?, ?)`,
		ev.ID, ev.Metric, ev.Snapshot, ev.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// List returns up to limit events, newest first. A non-positive limit
// returns all events.
func (e *EventStore) List(limit int) ([]Event, error) {
	query := `SELECT id, metric, snapshot, created_at FROM events ORDER BY created_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := e.store.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.Metric, &ev.Snapshot, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, ev)
	}

	return events, rows.Err()
}

// Count returns the number of recorded events.
func (e *EventStore) Count() (int, error) {
	var n int
	if err := e.store.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}
