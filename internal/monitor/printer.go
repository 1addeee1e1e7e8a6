package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/runnerr0/broadcastmonitor/internal/broadcast"
	"github.com/runnerr0/broadcastmonitor/internal/eventstore"
)

// Printer writes store changes to a terminal or a pipe.
type Printer struct {
	w       io.Writer
	json    bool
	details bool
}

// NewPrinter returns a Printer. With asJSON each event is one JSON line;
// otherwise events print as a title line, followed by the detail block
// when details is set.
func NewPrinter(w io.Writer, asJSON, details bool) *Printer {
	return &Printer{w: w, json: asJSON, details: details}
}

// Run prints events as they are appended to store, oldest first, until
// ctx is cancelled or the store is closed. Events replaced in the store
// before the printer saw them are skipped.
func (p *Printer) Run(ctx context.Context, store *eventstore.Store) error {
	var (
		first   = true
		appends uint64
		clears  uint64
	)
	for snap := range store.Subscribe(ctx) {
		if first {
			// The first snapshot replays whatever the store already holds.
			first = false
			clears = snap.Clears
		}
		if snap.Clears != clears {
			p.cleared()
			appends, clears = 0, snap.Clears
		}

		fresh := snap.Appended - appends
		if fresh > uint64(len(snap.Events)) {
			fresh = uint64(len(snap.Events))
		}
		for i := int(fresh) - 1; i >= 0; i-- {
			if err := p.Print(snap.Events[i]); err != nil {
				return err
			}
		}
		appends = snap.Appended
	}
	return nil
}

// Print writes a single event.
func (p *Printer) Print(ev broadcast.Event) error {
	if p.json {
		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode event: %w", err)
		}
		_, err = fmt.Fprintln(p.w, string(data))
		return err
	}

	if _, err := fmt.Fprintf(p.w, "%s  (P%d %s)\n", ev.DisplayTitle(), ev.Priority, ev.Category); err != nil {
		return err
	}
	if p.details {
		for _, line := range strings.Split(ev.DisplayDetails(), "\n") {
			if _, err := fmt.Fprintf(p.w, "    %s\n", line); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Printer) cleared() {
	if p.json {
		fmt.Fprintln(p.w, `{"cleared":true}`)
		return
	}
	fmt.Fprintln(p.w, "-- log cleared --")
}
