package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/runnerr0/broadcastmonitor/internal/storage"
)

// Execute implements the go-flags Commander interface for SearchCommand.
func (c *SearchCommand) Execute(args []string) error {
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

	return c.executeWithStore(store, args)
}

// executeWithStore runs the search against a provided store (for testing).
func (c *SearchCommand) executeWithStore(store storage.Store, args []string) error {
	query := strings.Join(args, " ")

	now := time.Now()
	var since time.Time
	if c.Since != "" {
		dur, err := parseDuration(c.Since)
		if err != nil {
			return fmt.Errorf("invalid --since value %q: %w", c.Since, err)
		}
		since = now.Add(-dur)
	}

	var until time.Time
	if c.Until != "" {
		dur, err := parseDuration(c.Until)
		if err != nil {
			return fmt.Errorf("invalid --until value %q: %w", c.Until, err)
		}
		until = now.Add(-dur)
	}

	if c.MaxPriority < 0 || c.MaxPriority > 5 {
		return fmt.Errorf("invalid --max-priority %d (use 1-5)", c.MaxPriority)
	}

	sq := storage.SearchQuery{
		Query:       query,
		Source:      c.Source,
		Category:    c.Category,
		PackageName: c.Package,
		MaxPriority: c.MaxPriority,
		Since:       since,
		Until:       until,
		Limit:       c.Limit,
		Offset:      c.Offset,
	}

	results, err := store.SearchEvents(context.Background(), sq)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if jsonOutput(c.globals) {
		return c.printJSON(query, results)
	}
	return c.printHuman(query, results)
}

func (c *SearchCommand) printHuman(query string, results []storage.Event) error {
	if len(results) == 0 {
		if query != "" {
			fmt.Printf("No results found for %q (since %s)\n", query, c.Since)
		} else {
			fmt.Printf("No results found (since %s)\n", c.Since)
		}
		return nil
	}

	resultWord := "results"
	if len(results) == 1 {
		resultWord = "result"
	}
	if query != "" {
		fmt.Printf("Found %d %s for %q (since %s)\n\n", len(results), resultWord, query, c.Since)
	} else {
		fmt.Printf("Found %d %s (since %s)\n\n", len(results), resultWord, c.Since)
	}

	for i, e := range results {
		fmt.Printf("%d. %s  (P%d %s)\n", i+1+c.Offset, e.Action, e.Priority, e.Category)

		ts := e.Timestamp.Local().Format("2006-01-02 15:04:05")
		fmt.Printf("   %s · %s · %s\n", ts, e.Source, e.PackageName)
		fmt.Printf("   %s\n", e.ID)

		if i < len(results)-1 {
			fmt.Println()
		}
	}

	return nil
}

type jsonResult struct {
	ID          string `json:"id"`
	Timestamp   string `json:"timestamp"`
	Action      string `json:"action"`
	Source      string `json:"source"`
	PackageName string `json:"package_name"`
	Category    string `json:"category"`
	Priority    int    `json:"priority"`
	Extras      string `json:"extras"`
}

type jsonSearchOutput struct {
	Count   int          `json:"count"`
	Query   string       `json:"query"`
	Results []jsonResult `json:"results"`
}

func toJSONResult(e storage.Event) jsonResult {
	return jsonResult{
		ID:          e.ID,
		Timestamp:   e.Timestamp.UTC().Format(time.RFC3339Nano),
		Action:      e.Action,
		Source:      e.Source,
		PackageName: e.PackageName,
		Category:    e.Category,
		Priority:    e.Priority,
		Extras:      e.Extras,
	}
}

func (c *SearchCommand) printJSON(query string, results []storage.Event) error {
	out := jsonSearchOutput{
		Count:   len(results),
		Query:   query,
		Results: make([]jsonResult, len(results)),
	}

	for i, e := range results {
		out.Results[i] = toJSONResult(e)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
