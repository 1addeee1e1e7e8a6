package storage

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/runnerr0/broadcastmonitor/internal/broadcast"
)

// ErrNotFound is returned when an event ID does not exist.
var ErrNotFound = errors.New("event not found")

// tsLayout sorts lexicographically in chronological order, which the range
// filters rely on.
const tsLayout = "2006-01-02T15:04:05.000Z07:00"

const defaultSearchLimit = 50

// Store defines the archive operations.
type Store interface {
	AddEvent(ctx context.Context, event *Event) error
	GetEvent(ctx context.Context, id string) (*Event, error)
	SearchEvents(ctx context.Context, query SearchQuery) ([]Event, error)
	DeleteEvent(ctx context.Context, id string) error
	AddExclusion(ctx context.Context, ruleType, value, reason string) error
	PruneExpired(ctx context.Context, olderThan time.Time) (int64, error)
	PurgeAll(ctx context.Context) error
	GetStats(ctx context.Context) (*Stats, error)
	Close() error
}

// SQLiteStore implements Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB

	// Prepared statements
	insertEvent *sql.Stmt
	getEvent    *sql.Stmt
	deleteEvent *sql.Stmt

	// Cached exclusion rules, refreshed by AddExclusion.
	mu               sync.RWMutex
	actionExclusions map[string]struct{}
	regexExclusions  []*regexp.Regexp
}

// Open opens (creating if needed) the archive at path, applies migrations,
// and returns a ready store with its database. The caller closes both.
func Open(path string) (*SQLiteStore, *sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		// Each pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := NewMigrationRunner(db).Run(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}

	store, err := NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("create store: %w", err)
	}
	return store, db, nil
}

// NewSQLiteStore creates a new SQLiteStore from an already-opened and migrated database.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}

	if err := s.prepareStatements(); err != nil {
		return nil, fmt.Errorf("prepare statements: %w", err)
	}

	if err := s.loadExclusions(context.Background()); err != nil {
		return nil, fmt.Errorf("load exclusions: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.insertEvent, err = s.db.Prepare(`
		INSERT INTO events (id, ts, action, source, package_name, extras, category, priority)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}

	s.getEvent, err = s.db.Prepare(`
		SELECT id, ts, action, source, package_name, extras, category, priority
		FROM events WHERE id = ?
	`)
	if err != nil {
		return err
	}

	s.deleteEvent, err = s.db.Prepare(`DELETE FROM events WHERE id = ?`)
	if err != nil {
		return err
	}

	return nil
}

// loadExclusions reloads action and regex exclusion rules from the database.
func (s *SQLiteStore) loadExclusions(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, "SELECT rule_type, rule_value FROM exclusions")
	if err != nil {
		return err
	}
	defer rows.Close()

	actions := make(map[string]struct{})
	var regexes []*regexp.Regexp
	for rows.Next() {
		var ruleType, ruleValue string
		if err := rows.Scan(&ruleType, &ruleValue); err != nil {
			return err
		}
		switch ruleType {
		case RuleAction:
			actions[ruleValue] = struct{}{}
		case RuleRegex:
			re, err := regexp.Compile(ruleValue)
			if err != nil {
				continue // skip invalid regex
			}
			regexes = append(regexes, re)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.actionExclusions = actions
	s.regexExclusions = regexes
	s.mu.Unlock()
	return nil
}

// IsExcluded reports whether events with this action are never archived.
func (s *SQLiteStore) IsExcluded(action string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.actionExclusions[action]; ok {
		return true
	}
	for _, re := range s.regexExclusions {
		if re.MatchString(action) {
			return true
		}
	}
	return false
}

// AddExclusion stores a rule and applies it to subsequent AddEvent calls.
// Adding an existing rule is a no-op.
func (s *SQLiteStore) AddExclusion(ctx context.Context, ruleType, value, reason string) error {
	switch ruleType {
	case RuleAction:
	case RuleRegex:
		if _, err := regexp.Compile(value); err != nil {
			return fmt.Errorf("invalid exclusion regex %q: %w", value, err)
		}
	default:
		return fmt.Errorf("unknown exclusion rule type %q", ruleType)
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO exclusions (rule_type, rule_value, reason) VALUES (?, ?, ?)",
		ruleType, value, reason,
	)
	if err != nil {
		return fmt.Errorf("insert exclusion: %w", err)
	}
	return s.loadExclusions(ctx)
}

// generateID creates an archive event ID: BCM- + 8 random hex chars.
func generateID() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "BCM-" + hex.EncodeToString(b), nil
}

func formatTS(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

// parseTimestamp tries several common SQLite timestamp formats.
func parseTimestamp(s string) (time.Time, error) {
	formats := []string{
		tsLayout,
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp: %s", s)
}

// likePattern escapes LIKE wildcards in term and wraps it for a substring
// match. Used with ESCAPE '\'.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}

// AddEvent archives event and populates its ID. An event whose action is
// excluded is silently skipped (ID remains empty, no error).
func (s *SQLiteStore) AddEvent(ctx context.Context, event *Event) error {
	if s.IsExcluded(event.Action) {
		return nil
	}

	id, err := generateID()
	if err != nil {
		return fmt.Errorf("generate ID: %w", err)
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Source == "" {
		event.Source = broadcast.UnknownSource
	}
	if event.Category == "" {
		event.Category = broadcast.DefaultCategory
	}
	if event.Priority == 0 {
		event.Priority = broadcast.DefaultPriority
	}

	_, err = s.insertEvent.ExecContext(ctx,
		id, formatTS(event.Timestamp), event.Action, event.Source,
		event.PackageName, event.Extras, event.Category, event.Priority,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	event.ID = id

	return nil
}

// GetEvent retrieves a single event by ID.
func (s *SQLiteStore) GetEvent(ctx context.Context, id string) (*Event, error) {
	var e Event
	var tsStr string

	err := s.getEvent.QueryRowContext(ctx, id).Scan(
		&e.ID, &tsStr, &e.Action, &e.Source, &e.PackageName,
		&e.Extras, &e.Category, &e.Priority,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get event: %w", err)
	}

	e.Timestamp, _ = parseTimestamp(tsStr)
	return &e, nil
}

// SearchEvents queries events with optional filters, newest first. The
// keyword matches action, extras, or package name as a substring.
func (s *SQLiteStore) SearchEvents(ctx context.Context, q SearchQuery) ([]Event, error) {
	if q.Limit <= 0 {
		q.Limit = defaultSearchLimit
	}

	var clauses []string
	var args []any

	baseQuery := `
		SELECT id, ts, action, source, package_name, extras, category, priority
		FROM events
	`

	if q.Query != "" {
		for _, word := range strings.Fields(q.Query) {
			clauses = append(clauses,
				`(action LIKE ? ESCAPE '\' OR extras LIKE ? ESCAPE '\' OR package_name LIKE ? ESCAPE '\')`)
			p := likePattern(word)
			args = append(args, p, p, p)
		}
	}
	if q.Source != "" {
		clauses = append(clauses, "source = ?")
		args = append(args, q.Source)
	}
	if q.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, q.Category)
	}
	if q.PackageName != "" {
		clauses = append(clauses, "package_name = ?")
		args = append(args, q.PackageName)
	}
	if q.MaxPriority > 0 {
		clauses = append(clauses, "priority <= ?")
		args = append(args, q.MaxPriority)
	}
	if !q.Since.IsZero() {
		clauses = append(clauses, "ts >= ?")
		args = append(args, formatTS(q.Since))
	}
	if !q.Until.IsZero() {
		clauses = append(clauses, "ts <= ?")
		args = append(args, formatTS(q.Until))
	}

	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	fullQuery := baseQuery + where + " ORDER BY ts DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, q.Limit, q.Offset)

	return s.scanEvents(ctx, fullQuery, args...)
}

// scanEvents executes a query and scans results into Event slices.
func (s *SQLiteStore) scanEvents(ctx context.Context, query string, args ...any) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var e Event
		var tsStr string
		if err := rows.Scan(
			&e.ID, &tsStr, &e.Action, &e.Source, &e.PackageName,
			&e.Extras, &e.Category, &e.Priority,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Timestamp, _ = parseTimestamp(tsStr)
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// DeleteEvent removes an event by ID.
func (s *SQLiteStore) DeleteEvent(ctx context.Context, id string) error {
	res, err := s.deleteEvent.ExecContext(ctx, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return s.audit(ctx, "delete", "", id)
}

// PruneExpired deletes events with timestamps before olderThan.
func (s *SQLiteStore) PruneExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM events WHERE ts < ?", formatTS(olderThan))
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err := s.audit(ctx, "prune", fmt.Sprintf("removed %d events older than %s", n, formatTS(olderThan)), ""); err != nil {
		return n, err
	}
	return n, nil
}

// CountExpired returns how many events PruneExpired would remove.
func (s *SQLiteStore) CountExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events WHERE ts < ?", formatTS(olderThan)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count expired events: %w", err)
	}
	return n, nil
}

// PurgeAll deletes all events. Exclusion rules are kept.
func (s *SQLiteStore) PurgeAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM events"); err != nil {
		return fmt.Errorf("purge events: %w", err)
	}
	return s.audit(ctx, "purge", "all events deleted", "")
}

func (s *SQLiteStore) audit(ctx context.Context, action, detail, eventID string) error {
	var id any
	if eventID != "" {
		id = eventID
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO audit_log (action, detail, event_id) VALUES (?, ?, ?)",
		action, detail, id,
	)
	if err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// GetStats returns aggregate statistics about the database.
func (s *SQLiteStore) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&stats.TotalEvents)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}

	// Oldest and newest (handle empty DB)
	if stats.TotalEvents > 0 {
		var oldestStr, newestStr string
		err = s.db.QueryRowContext(ctx, "SELECT MIN(ts), MAX(ts) FROM events").Scan(&oldestStr, &newestStr)
		if err != nil {
			return nil, fmt.Errorf("event time range: %w", err)
		}
		stats.OldestEvent, _ = parseTimestamp(oldestStr)
		stats.NewestEvent, _ = parseTimestamp(newestStr)
	}

	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err == nil {
			stats.DatabaseSizeBytes = pageCount * pageSize
		}
	}

	stats.TopCategories, err = s.topValues(ctx, "category")
	if err != nil {
		return nil, fmt.Errorf("top categories: %w", err)
	}
	stats.TopSources, err = s.topValues(ctx, "source")
	if err != nil {
		return nil, fmt.Errorf("top sources: %w", err)
	}

	return stats, nil
}

// topValues counts events per value of column. column is never user input.
func (s *SQLiteStore) topValues(ctx context.Context, column string) ([]ValueCount, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+column+", COUNT(*) AS cnt FROM events GROUP BY "+column+" ORDER BY cnt DESC, "+column+" LIMIT 10",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ValueCount
	for rows.Next() {
		var vc ValueCount
		if err := rows.Scan(&vc.Value, &vc.Count); err != nil {
			return nil, err
		}
		out = append(out, vc)
	}
	return out, rows.Err()
}

// Close releases all prepared statements. The underlying *sql.DB is NOT
// closed; that is the caller's responsibility.
func (s *SQLiteStore) Close() error {
	stmts := []*sql.Stmt{s.insertEvent, s.getEvent, s.deleteEvent}
	for _, stmt := range stmts {
		if stmt != nil {
			stmt.Close()
		}
	}
	return nil
}
