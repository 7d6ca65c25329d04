package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Events table - one row per detected motion occurrence
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			metric REAL NOT NULL,
			snapshot TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,

		// Newest-first listing is the only query pattern
		`CREATE INDEX IF NOT EXISTS idx_events_created_at ON events(created_at DESC)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
