package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,

	// Owner registry. Rows are created through the admin API or seeded
	// externally, never by the violation pipeline itself.
	`CREATE TABLE IF NOT EXISTS owners (
		license_plate       TEXT PRIMARY KEY,
		owner_name          TEXT NOT NULL,
		phone               TEXT NOT NULL DEFAULT '',
		violations_count    INT NOT NULL DEFAULT 0 CHECK (violations_count >= 0),
		license_expiry_date DATE,
		city                TEXT,
		region              TEXT,
		country             TEXT,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,

	// Append-only violation log. The FK guarantees no orphan violations at
	// the storage layer on top of the transactional check in the repository.
	`CREATE TABLE IF NOT EXISTS violations (
		id              UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		license_plate   TEXT NOT NULL REFERENCES owners(license_plate),
		message         TEXT NOT NULL,
		ocr_confidence  NUMERIC(5,2),
		snapshot_url    TEXT,
		raw_candidates  JSONB,
		recorded_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_violations_license_plate ON violations(license_plate);`,
	`CREATE INDEX IF NOT EXISTS idx_violations_recorded_at ON violations(recorded_at);`,
	`CREATE INDEX IF NOT EXISTS idx_violations_plate_time ON violations(license_plate, recorded_at DESC);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
