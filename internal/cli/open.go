package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/runnerr0/broadcastmonitor/internal/storage"
)

// Execute implements the go-flags Commander interface for OpenCommand.
func (c *OpenCommand) Execute(args []string) error {
	if c.ID == "" {
		return fmt.Errorf("--id is required for open command")
	}

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

	return c.executeWithStore(store)
}

// executeWithStore prints the event from a provided store (for testing).
func (c *OpenCommand) executeWithStore(store storage.Store) error {
	if c.ID == "" {
		return fmt.Errorf("--id is required for open command")
	}

	event, err := store.GetEvent(context.Background(), c.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("event not found: %s", c.ID)
		}
		return err
	}

	if jsonOutput(c.globals) {
		return c.outputJSON(event)
	}

	switch c.Format {
	case "extras":
		fmt.Println(event.Extras)
	case "json":
		return c.outputJSON(event)
	case "md":
		c.outputMarkdown(event)
	case "full", "":
		c.outputFull(event)
	default:
		return fmt.Errorf("unknown format %q (use full, extras, md, or json)", c.Format)
	}
	return nil
}

func (c *OpenCommand) outputFull(event *storage.Event) {
	live := event.Broadcast()
	fmt.Println(event.ID)
	fmt.Println(live.DisplayTitle())
	fmt.Printf("Priority: %d\n", event.Priority)
	fmt.Println(live.DisplayDetails())
}

func (c *OpenCommand) outputMarkdown(event *storage.Event) {
	fmt.Println("---")
	fmt.Printf("id: %s\n", event.ID)
	fmt.Printf("action: %s\n", event.Action)
	fmt.Printf("captured: %s\n", event.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"))
	fmt.Printf("source: %s\n", event.Source)
	fmt.Printf("package: %s\n", event.PackageName)
	fmt.Printf("category: %s\n", event.Category)
	fmt.Printf("priority: %d\n", event.Priority)
	fmt.Println("---")
	fmt.Println()
	fmt.Println(event.Extras)
}

func (c *OpenCommand) outputJSON(event *storage.Event) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(toJSONResult(*event))
}
