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

// statusJSON is the JSON output structure for the status command.
type statusJSON struct {
	Version           string           `json:"version"`
	ArchivePath       string           `json:"archive_path"`
	ArchiveEnabled    bool             `json:"archive_enabled"`
	DatabaseSizeBytes int64            `json:"database_size_bytes"`
	TotalEvents       int64            `json:"total_events"`
	OldestEvent       string           `json:"oldest_event,omitempty"`
	NewestEvent       string           `json:"newest_event,omitempty"`
	RetentionDays     int              `json:"retention_days"`
	Transport         string           `json:"transport"`
	TopCategories     []valueCountJSON `json:"top_categories"`
	TopSources        []valueCountJSON `json:"top_sources"`
}

type valueCountJSON struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
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

	return c.executeWithStore(store, cfg)
}

// executeWithStore runs status against a provided store (for testing).
func (c *StatusCommand) executeWithStore(store storage.Store, cfg *config.Config) error {
	stats, err := store.GetStats(context.Background())
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	path, err := archivePath(cfg)
	if err != nil {
		return err
	}

	if jsonOutput(c.globals) {
		return c.printStatusJSON(stats, cfg, path)
	}
	return c.printStatusHuman(stats, cfg, path)
}

func (c *StatusCommand) printStatusHuman(stats *storage.Stats, cfg *config.Config, path string) error {
	fmt.Println("Broadcast Monitor Status")
	fmt.Println("========================")
	fmt.Printf("Version:       %s\n", c.version)
	fmt.Printf("Archive:       %s (%s)\n", path, formatBytes(stats.DatabaseSizeBytes))
	fmt.Printf("Events:        %s\n", formatNumber(stats.TotalEvents))

	if stats.TotalEvents > 0 {
		fmt.Printf("Oldest:        %s\n", stats.OldestEvent.Local().Format("2006-01-02 15:04:05"))
		fmt.Printf("Newest:        %s\n", stats.NewestEvent.Local().Format("2006-01-02 15:04:05"))
	}

	fmt.Printf("Retention:     %d days\n", cfg.Archive.RetentionDays)

	printTop("Top Categories:", stats.TopCategories)
	printTop("Top Sources:", stats.TopSources)

	fmt.Println()
	fmt.Printf("Transport:     %s\n", cfg.Relay.Transport)
	if cfg.Archive.Enabled {
		fmt.Println("Archiving:     enabled")
	} else {
		fmt.Println("Archiving:     disabled")
	}

	return nil
}

func printTop(title string, values []storage.ValueCount) {
	if len(values) == 0 {
		return
	}
	fmt.Println()
	fmt.Println(title)
	for _, v := range values {
		fmt.Printf("  %-36s %s\n", v.Value, formatNumber(v.Count))
	}
}

func (c *StatusCommand) printStatusJSON(stats *storage.Stats, cfg *config.Config, path string) error {
	out := statusJSON{
		Version:           c.version,
		ArchivePath:       path,
		ArchiveEnabled:    cfg.Archive.Enabled,
		DatabaseSizeBytes: stats.DatabaseSizeBytes,
		TotalEvents:       stats.TotalEvents,
		RetentionDays:     cfg.Archive.RetentionDays,
		Transport:         cfg.Relay.Transport,
		TopCategories:     toValueCountJSON(stats.TopCategories),
		TopSources:        toValueCountJSON(stats.TopSources),
	}

	if stats.TotalEvents > 0 {
		out.OldestEvent = stats.OldestEvent.UTC().Format(time.RFC3339)
		out.NewestEvent = stats.NewestEvent.UTC().Format(time.RFC3339)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func toValueCountJSON(values []storage.ValueCount) []valueCountJSON {
	out := make([]valueCountJSON, len(values))
	for i, v := range values {
		out[i] = valueCountJSON{Value: v.Value, Count: v.Count}
	}
	return out
}
