package storage

import (
	"database/sql"
	"fmt"
	"sort"
)

// migration is one schema step. Versions are applied in ascending order.
type migration struct {
	Version int
	Name    string
	Apply   func(tx *sql.Tx) error
}

// archivePragmas run on every open. WAL lets search and status read while
// the monitor writes.
var archivePragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA foreign_keys = ON",
	"PRAGMA busy_timeout = 5000",
}

const createSchemaMigrations = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		name       TEXT NOT NULL,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`

// MigrationRunner brings an archive database up to the current schema.
type MigrationRunner struct {
	db         *sql.DB
	migrations []migration
}

// NewMigrationRunner returns a runner for the archive schema.
func NewMigrationRunner(db *sql.DB) *MigrationRunner {
	steps := []migration{
		{Version: 1, Name: "broadcast_archive", Apply: migrateV001},
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].Version < steps[j].Version })
	return &MigrationRunner{db: db, migrations: steps}
}

// Run sets the connection pragmas and applies every migration not yet
// recorded in schema_migrations. Running it twice is a no-op.
func (r *MigrationRunner) Run() error {
	for _, p := range archivePragmas {
		if _, err := r.db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	if _, err := r.db.Exec(createSchemaMigrations); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	pending, err := r.pending()
	if err != nil {
		return err
	}
	for _, m := range pending {
		if err := r.apply(m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// pending returns the migrations whose versions are not recorded yet.
func (r *MigrationRunner) pending() ([]migration, error) {
	rows, err := r.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("read applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []migration
	for _, m := range r.migrations {
		if !applied[m.Version] {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *MigrationRunner) apply(m migration) (err error) {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback() //nolint:errcheck
		}
	}()

	if err = m.Apply(tx); err != nil {
		return err
	}
	if _, err = tx.Exec(`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, m.Version, m.Name); err != nil {
		return fmt.Errorf("record: %w", err)
	}
	return tx.Commit()
}

// Version returns the highest applied migration version, or 0 for a fresh
// database.
func (r *MigrationRunner) Version() (int, error) {
	var v sql.NullInt64
	err := r.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return int(v.Int64), nil
}

// Latest returns the version the runner migrates to.
func (r *MigrationRunner) Latest() int {
	if len(r.migrations) == 0 {
		return 0
	}
	return r.migrations[len(r.migrations)-1].Version
}
