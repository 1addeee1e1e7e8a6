// Package broadcast defines the canonical record of one intercepted
// broadcast and the constants shared by the intercepting and observing
// processes.
package broadcast

import (
	"fmt"
	"strings"
	"time"
)

const (
	// PackageName is the observing application's package. Relay messages
	// are restricted to it.
	PackageName = "com.xmbest.broadcastmonitor"

	// DataAction is the reserved message type carried by every relay message.
	DataAction = PackageName + ".BROADCAST_DATA"

	// TestAction is the action of the synthetic test broadcast.
	TestAction = PackageName + ".TEST_BROADCAST"

	// MaxEvents is the fixed capacity of the observing process's event log.
	MaxEvents = 1000

	DefaultPriority = 5
	DefaultCategory = "Other Broadcast"
	UnknownSource   = "Unknown"
	NoExtras        = "No Extras"

	// TimestampLayout is the wall-clock format of Event.Timestamp.
	TimestampLayout = "2006-01-02 15:04:05.000"
)

// Event is one normalized, classified broadcast.
type Event struct {
	Timestamp   string `json:"timestamp"`
	Action      string `json:"action"`
	Source      string `json:"source"`
	PackageName string `json:"packageName"`
	Extras      string `json:"extras"`
	Category    string `json:"category"`
	Priority    int    `json:"priority"`
}

// Timestamp formats t with TimestampLayout in local time.
func Timestamp(t time.Time) string {
	return t.Local().Format(TimestampLayout)
}

// Now returns the current local time formatted with TimestampLayout.
func Now() string {
	return Timestamp(time.Now())
}

// ParseTimestamp parses a TimestampLayout string as local time.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.ParseInLocation(TimestampLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// DisplayTitle returns "[timestamp] action".
func (e Event) DisplayTitle() string {
	return "[" + e.Timestamp + "] " + e.Action
}

// DisplayDetails returns the multi-line detail block shown under the title.
// Extras are omitted when empty or the "No Extras" sentinel.
func (e Event) DisplayDetails() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Source: %s\n", e.Source)
	fmt.Fprintf(&b, "Package: %s\n", e.PackageName)
	fmt.Fprintf(&b, "Category: %s\n", e.Category)
	if e.Extras != "" && e.Extras != NoExtras {
		b.WriteString("Extras:\n")
		b.WriteString(e.Extras)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}
