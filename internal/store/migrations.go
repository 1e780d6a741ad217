package store

import "fmt"

// currentSchemaVersion is the latest schema version.
const currentSchemaVersion = 1

// Migrate runs forward migrations to bring the database schema up to date.
func (db *DB) Migrate() error {
	if _, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	version := 0
	row := db.conn.QueryRow("SELECT version FROM schema_version LIMIT 1")
	if err := row.Scan(&version); err != nil {
		// No rows means version 0 (fresh database).
		version = 0
	}

	if version < 1 {
		if err := db.migrateV1(); err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
	}

	return nil
}

// migrateV1 creates all initial tables and indexes.
func (db *DB) migrateV1() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS evaluations (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			uid       TEXT NOT NULL UNIQUE,
			taken_at  TEXT NOT NULL,
			period    TEXT NOT NULL,
			source    TEXT NOT NULL,
			version   TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS metric_values (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			evaluation_id  INTEGER NOT NULL REFERENCES evaluations(id),
			metric_key     TEXT NOT NULL,
			name           TEXT NOT NULL,
			current_value  REAL,
			target         REAL,
			direction      TEXT NOT NULL,
			status         TEXT NOT NULL,
			progress       REAL
		)`,

		`CREATE TABLE IF NOT EXISTS health_scores (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			evaluation_id  INTEGER NOT NULL REFERENCES evaluations(id),
			subject        TEXT NOT NULL,
			score          INTEGER NOT NULL,
			band           TEXT NOT NULL,
			has_data       BOOLEAN NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS alerts (
			id                 INTEGER PRIMARY KEY AUTOINCREMENT,
			evaluation_id      INTEGER NOT NULL REFERENCES evaluations(id),
			metric_name        TEXT NOT NULL,
			severity           TEXT NOT NULL,
			percent_of_target  REAL NOT NULL
		)`,

		// Indexes.
		`CREATE INDEX IF NOT EXISTS idx_metric_values_evaluation ON metric_values(evaluation_id)`,
		`CREATE INDEX IF NOT EXISTS idx_metric_values_key ON metric_values(metric_key)`,
		`CREATE INDEX IF NOT EXISTS idx_health_scores_evaluation ON health_scores(evaluation_id)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_evaluation ON alerts(evaluation_id)`,
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("executing %q: %w", stmt[:40], err)
		}
	}

	// Set schema version.
	if _, err := tx.Exec("DELETE FROM schema_version"); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", currentSchemaVersion); err != nil {
		return err
	}

	return tx.Commit()
}
