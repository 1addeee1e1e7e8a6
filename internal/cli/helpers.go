package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/runnerr0/broadcastmonitor/internal/config"
	"github.com/runnerr0/broadcastmonitor/internal/storage"
)

// loadConfig reads --config when given, otherwise the default config file,
// creating it on first use.
func loadConfig(globals *GlobalFlags) (*config.Config, error) {
	if globals != nil && globals.Config != "" {
		return config.Load(globals.Config)
	}
	return config.LoadOrCreate()
}

// newLogger builds the process logger. --verbose forces debug level.
func newLogger(cfg config.LoggingConfig, verbose bool, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// setup loads the config and builds a stderr logger from it.
func setup(globals *GlobalFlags) (*config.Config, *slog.Logger, error) {
	cfg, err := loadConfig(globals)
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg.Logging, globals != nil && globals.Verbose, os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// archivePath returns the configured archive path with ~ expanded.
func archivePath(cfg *config.Config) (string, error) {
	return config.ExpandPath(cfg.Archive.Path)
}

// openArchive opens the configured archive and applies the built-in and
// configured exclusions.
func openArchive(ctx context.Context, cfg *config.Config) (*storage.SQLiteStore, *sql.DB, error) {
	path, err := archivePath(cfg)
	if err != nil {
		return nil, nil, err
	}

	store, db, err := storage.Open(path)
	if err != nil {
		return nil, nil, err
	}

	if err := applyExclusions(ctx, store, cfg.Archive); err != nil {
		store.Close()
		db.Close()
		return nil, nil, err
	}
	return store, db, nil
}

func applyExclusions(ctx context.Context, store *storage.SQLiteStore, cfg config.ArchiveConfig) error {
	for _, action := range config.DefaultArchiveExclusions() {
		if err := store.AddExclusion(ctx, storage.RuleAction, action, "Sensitive extras"); err != nil {
			return fmt.Errorf("add exclusion: %w", err)
		}
	}
	for _, action := range cfg.ExcludeActions {
		if err := store.AddExclusion(ctx, storage.RuleAction, action, "config"); err != nil {
			return fmt.Errorf("add exclusion: %w", err)
		}
	}
	for _, expr := range cfg.ExcludeRegex {
		if err := store.AddExclusion(ctx, storage.RuleRegex, expr, "config"); err != nil {
			return fmt.Errorf("add exclusion: %w", err)
		}
	}
	return nil
}

// parseDuration parses a human-friendly duration string like "30d", "7d", "24h", "2w".
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("invalid duration: empty string")
	}

	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]

	n, err := strconv.Atoi(numStr)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	switch suffix {
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	default:
		return 0, fmt.Errorf("invalid duration: %q (use d, h, w, or m suffix)", s)
	}
}

// formatDurationHuman formats a duration into a human-readable string like "30 days".
func formatDurationHuman(d time.Duration) string {
	days := int(d.Hours() / 24)
	if days > 0 {
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
	hours := int(d.Hours())
	if hours > 0 {
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	return d.String()
}

// formatBytes formats a byte count into a human-readable string.
func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatNumber formats an int64 with comma separators.
func formatNumber(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
	}
	for i := remainder; i < len(s); i += 3 {
		if i > 0 {
			result.WriteString(",")
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}
