package cli

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/runnerr0/broadcastmonitor/internal/storage"
)

// setDB allows tests to inject a database connection.
func (c *PurgeCommand) setDB(db *sql.DB) {
	c.db = db
}

// Execute implements the go-flags Commander interface for PurgeCommand.
func (c *PurgeCommand) Execute(args []string) error {
	return c.execute(os.Stdin)
}

func (c *PurgeCommand) execute(in io.Reader) error {
	if !c.All {
		return fmt.Errorf("purge requires --all flag for safety")
	}

	// Confirmation prompt unless --force
	if !c.Force {
		fmt.Println("⚠ WARNING: This will permanently delete ALL archived broadcasts.")
		fmt.Println("  Exclusion rules are kept.")
		fmt.Println()
		fmt.Println("This action cannot be undone.")
		fmt.Println()
		fmt.Print(`Type "PURGE" to confirm: `)

		scanner := bufio.NewScanner(in)
		if !scanner.Scan() {
			return fmt.Errorf("aborted: no input received")
		}
		input := strings.TrimSpace(scanner.Text())
		if input != "PURGE" {
			return fmt.Errorf("aborted: confirmation text did not match")
		}
	}

	ctx := context.Background()

	// Open or use injected DB
	var store *storage.SQLiteStore
	if c.db != nil {
		s, err := storage.NewSQLiteStore(c.db)
		if err != nil {
			return fmt.Errorf("init store: %w", err)
		}
		store = s
	} else {
		cfg, err := loadConfig(c.globals)
		if err != nil {
			return err
		}
		s, db, err := openArchive(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		store = s
	}
	defer store.Close()

	if err := store.PurgeAll(ctx); err != nil {
		return fmt.Errorf("purge failed: %w", err)
	}

	if jsonOutput(c.globals) {
		out := map[string]interface{}{
			"purged":  true,
			"message": "all events deleted",
		}
		enc := json.NewEncoder(os.Stdout)
		return enc.Encode(out)
	}

	fmt.Println("Purged all archived events.")
	return nil
}
