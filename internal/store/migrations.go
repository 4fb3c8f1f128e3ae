package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Alerts table - one row per HIGH classification
		`CREATE TABLE IF NOT EXISTS alerts (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			severity TEXT NOT NULL CHECK(severity IN ('LOW', 'MODERATE', 'HIGH')),
			score REAL NOT NULL,
			indicators TEXT NOT NULL DEFAULT '[]',
			remote_timestamp TEXT NOT NULL DEFAULT '',
			image BLOB,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Gallery saves table - outcome of each capture-and-save request for an alert
		`CREATE TABLE IF NOT EXISTS gallery_saves (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			alert_id TEXT REFERENCES alerts(id) ON DELETE CASCADE,
			original TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_source ON alerts(source)`,
		`CREATE INDEX IF NOT EXISTS idx_gallery_saves_alert_id ON gallery_saves(alert_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
