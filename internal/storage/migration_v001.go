package storage

import (
	"database/sql"
	"fmt"

	"github.com/runnerr0/broadcastmonitor/internal/broadcast"
)

// migrateV001 creates the archive schema: tables, indexes, and the default
// exclusion rules. Every statement uses IF NOT EXISTS for idempotency.
func migrateV001(tx *sql.Tx) error {
	stmts := []string{
		// ── Tables ──────────────────────────────────────────────

		`CREATE TABLE IF NOT EXISTS events (
			id           TEXT PRIMARY KEY,
			ts           DATETIME NOT NULL,
			action       TEXT NOT NULL,
			source       TEXT NOT NULL DEFAULT 'Unknown',
			package_name TEXT NOT NULL DEFAULT '',
			extras       TEXT NOT NULL DEFAULT '',
			category     TEXT NOT NULL DEFAULT 'Other Broadcast',
			priority     INTEGER NOT NULL DEFAULT 5,
			created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS exclusions (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			rule_type  TEXT NOT NULL CHECK (rule_type IN ('action', 'regex')),
			rule_value TEXT NOT NULL,
			reason     TEXT NOT NULL DEFAULT '',
			is_default BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(rule_type, rule_value)
		)`,

		`CREATE TABLE IF NOT EXISTS audit_log (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			action   TEXT NOT NULL,
			detail   TEXT NOT NULL DEFAULT '',
			event_id TEXT,
			ts       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		// ── Indexes ────────────────────────────────────────────

		`CREATE INDEX IF NOT EXISTS idx_events_ts          ON events(ts)`,
		`CREATE INDEX IF NOT EXISTS idx_events_action      ON events(action)`,
		`CREATE INDEX IF NOT EXISTS idx_events_source      ON events(source)`,
		`CREATE INDEX IF NOT EXISTS idx_events_category    ON events(category)`,
		`CREATE INDEX IF NOT EXISTS idx_events_package     ON events(package_name)`,
		`CREATE INDEX IF NOT EXISTS idx_events_ts_priority ON events(ts, priority)`,
		`CREATE INDEX IF NOT EXISTS idx_exclusions_rule    ON exclusions(rule_type, rule_value)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_ts       ON audit_log(ts)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_action   ON audit_log(action)`,
	}

	for i, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("statement %d: %w", i, err)
		}
	}
	return seedDefaultExclusions(tx)
}

// seedDefaultExclusions inserts the built-in exclusions. Uses INSERT OR
// IGNORE so re-running is safe.
func seedDefaultExclusions(tx *sql.Tx) error {
	type rule struct {
		RuleType  string
		RuleValue string
		Reason    string
	}

	defaults := []rule{
		{RuleAction, broadcast.DataAction, "Monitor relay traffic"},
		{RuleRegex, `^android\.intent\.action\.TIME_(TICK|SET)$`, "Clock noise"},
	}

	const insertSQL = `INSERT OR IGNORE INTO exclusions (rule_type, rule_value, reason, is_default) VALUES (?, ?, ?, 1)`

	for _, r := range defaults {
		if _, err := tx.Exec(insertSQL, r.RuleType, r.RuleValue, r.Reason); err != nil {
			return fmt.Errorf("seed exclusion %q: %w", r.RuleValue, err)
		}
	}
	return nil
}
