package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Hits table - every hit event emitted to the game layer
		`CREATE TABLE IF NOT EXISTS hits (
			id TEXT PRIMARY KEY,
			x REAL NOT NULL,
			y REAL NOT NULL,
			timestamp REAL NOT NULL,
			mode TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Color profiles table - named detector HSV configurations
		`CREATE TABLE IF NOT EXISTS color_profiles (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			hue_min INTEGER NOT NULL,
			hue_max INTEGER NOT NULL,
			saturation_min INTEGER NOT NULL,
			saturation_max INTEGER NOT NULL,
			value_min INTEGER NOT NULL,
			value_max INTEGER NOT NULL,
			erode_iterations INTEGER NOT NULL DEFAULT 2,
			dilate_iterations INTEGER NOT NULL DEFAULT 2,
			min_area REAL NOT NULL DEFAULT 50,
			max_area REAL NOT NULL DEFAULT 5000,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Calibrations table - history of calibration records as JSON documents
		`CREATE TABLE IF NOT EXISTS calibrations (
			id TEXT PRIMARY KEY,
			document TEXT NOT NULL,
			rms_error REAL NOT NULL,
			marker_count INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_hits_timestamp ON hits(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_calibrations_created_at ON calibrations(created_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
