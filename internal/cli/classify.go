package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/runnerr0/broadcastmonitor/internal/taxonomy"
)

type classification struct {
	Action   string `json:"action"`
	Category string `json:"category"`
	Priority int    `json:"priority"`
	Logged   bool   `json:"logged"`
}

func classify(action string) classification {
	return classification{
		Action:   action,
		Category: taxonomy.Categorize(action),
		Priority: taxonomy.Priority(action),
		Logged:   taxonomy.ShouldLog(action, ""),
	}
}

// Execute implements the go-flags Commander interface for ClassifyCommand.
func (c *ClassifyCommand) Execute(args []string) error {
	return c.executeWith(args, os.Stdout)
}

func (c *ClassifyCommand) executeWith(actions []string, out io.Writer) error {
	if len(actions) == 0 {
		return fmt.Errorf("classify needs at least one action")
	}

	results := make([]classification, len(actions))
	for i, a := range actions {
		results[i] = classify(a)
	}

	if jsonOutput(c.globals) {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	for _, r := range results {
		logged := "logged"
		if !r.Logged {
			logged = "filtered"
		}
		fmt.Fprintf(out, "%s\n  category: %s\n  priority: %d\n  decision: %s\n", r.Action, r.Category, r.Priority, logged)
	}
	return nil
}
