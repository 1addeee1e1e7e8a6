package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/runnerr0/broadcastmonitor/internal/config"
	"github.com/runnerr0/broadcastmonitor/internal/storage"
)

// pruneStore is the part of the archive prune needs.
type pruneStore interface {
	PruneExpired(ctx context.Context, olderThan time.Time) (int64, error)
	CountExpired(ctx context.Context, olderThan time.Time) (int64, error)
}

var _ pruneStore = (*storage.SQLiteStore)(nil)

// Execute implements the go-flags Commander interface for PruneCommand.
func (c *PruneCommand) Execute(args []string) error {
	cfg, err := loadConfig(c.globals)
	if err != nil {
		return err
	}

	ctx := context.Background()
	store, db, err := openArchive(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	defer store.Close()

	return c.executeWithStore(store, cfg, time.Now())
}

// executeWithStore prunes a provided store relative to now (for testing).
func (c *PruneCommand) executeWithStore(store pruneStore, cfg *config.Config, now time.Time) error {
	retention := time.Duration(cfg.Archive.RetentionDays) * 24 * time.Hour
	if c.OlderThan != "" {
		d, err := parseDuration(c.OlderThan)
		if err != nil {
			return fmt.Errorf("invalid --older-than value %q: %w", c.OlderThan, err)
		}
		retention = d
	}
	if retention <= 0 {
		return fmt.Errorf("retention must be positive")
	}

	cutoff := now.Add(-retention)
	ctx := context.Background()

	var (
		n   int64
		err error
	)
	if c.DryRun {
		n, err = store.CountExpired(ctx, cutoff)
	} else {
		n, err = store.PruneExpired(ctx, cutoff)
	}
	if err != nil {
		return err
	}

	if jsonOutput(c.globals) {
		out := map[string]interface{}{
			"dry_run":    c.DryRun,
			"cutoff":     cutoff.UTC().Format(time.RFC3339),
			"retention":  formatDurationHuman(retention),
			"candidates": n,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if c.DryRun {
		fmt.Printf("Would prune %s events older than %s.\n", formatNumber(n), formatDurationHuman(retention))
		return nil
	}
	fmt.Printf("Pruned %s events older than %s.\n", formatNumber(n), formatDurationHuman(retention))
	return nil
}
