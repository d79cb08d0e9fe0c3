package store

import (
	"database/sql"
	"fmt"
	"log"
	"time"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Initial schema",
		SQL: `
CREATE TABLE IF NOT EXISTS load_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at DATETIME NOT NULL,
    finished_at DATETIME,
    source TEXT NOT NULL,
    uri TEXT NOT NULL,
    rows_parsed INTEGER,
    rows_skipped INTEGER,
    success BOOLEAN NOT NULL DEFAULT FALSE,
    error_message TEXT
);

CREATE INDEX IF NOT EXISTS idx_load_runs_started ON load_runs(started_at);
`,
	},
	{
		Version:     2,
		Description: "Add quality flag counts to load runs",
		SQL: `
ALTER TABLE load_runs ADD COLUMN rows_flagged INTEGER;
ALTER TABLE load_runs ADD COLUMN quality_flags TEXT;
`,
	},
	{
		Version:     3,
		Description: "Distinguish missing sources from failed loads",
		SQL: `
ALTER TABLE load_runs ADD COLUMN missing BOOLEAN NOT NULL DEFAULT FALSE;
CREATE INDEX IF NOT EXISTS idx_load_runs_source ON load_runs(source, started_at);
`,
	},
}

// Migrate applies every migration newer than the recorded ones, each in its own
// transaction.
func (s *Store) Migrate() error {
	if err := checkMigrations(migrations); err != nil {
		return err
	}
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at DATETIME
		)
	`); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	current, err := s.MigrationVersion()
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := s.apply(m); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) apply(m migration) error {
	log.Printf("migrations: applying %d - %s", m.Version, m.Description)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.Version, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.SQL); err != nil {
		return fmt.Errorf("execute migration %d: %w", m.Version, err)
	}
	if _, err := tx.Exec(
		"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
		m.Version, m.Description, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("record migration %d: %w", m.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.Version, err)
	}
	return nil
}

// checkMigrations requires versions 1..n in order.
func checkMigrations(ms []migration) error {
	for i, m := range ms {
		if m.Version != i+1 {
			return fmt.Errorf("migration %d (%s) out of sequence, want version %d", m.Version, m.Description, i+1)
		}
	}
	return nil
}

// MigrationVersion returns the newest applied migration, 0 for a fresh database.
func (s *Store) MigrationVersion() (int, error) {
	var version sql.NullInt64
	err := s.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	return int(version.Int64), nil
}
