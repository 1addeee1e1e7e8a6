package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/runnerr0/broadcastmonitor/internal/hook"
)

type pointJSON struct {
	Class   string `json:"class"`
	Method  string `json:"method"`
	Arity   int    `json:"arity"`
	Source  string `json:"source"`
	Enabled bool   `json:"enabled"`
}

// Execute implements the go-flags Commander interface for PointsCommand.
func (c *PointsCommand) Execute(args []string) error {
	return c.executeWith(os.Stdout)
}

func (c *PointsCommand) executeWith(out io.Writer) error {
	role, err := hook.ParseRole(c.Role)
	if err != nil {
		return err
	}

	points := hook.Points(role)
	if c.All {
		points = hook.AllPoints(role)
	}

	if jsonOutput(c.globals) {
		list := make([]pointJSON, len(points))
		for i, p := range points {
			list[i] = pointJSON{Class: p.Class, Method: p.Method, Arity: p.Arity, Source: p.Source, Enabled: p.Enabled}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tMETHOD\tENABLED")
	for _, p := range points {
		fmt.Fprintf(tw, "%s\t%s\t%t\n", p.Source, p, p.Enabled)
	}
	return tw.Flush()
}
