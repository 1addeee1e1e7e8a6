package storage

import (
	"time"

	"github.com/runnerr0/broadcastmonitor/internal/broadcast"
)

// Event is an archived broadcast event.
type Event struct {
	ID          string
	Timestamp   time.Time
	Action      string
	Source      string
	PackageName string
	Extras      string
	Category    string
	Priority    int
}

// FromBroadcast converts a live event for archiving. An unparseable
// timestamp is left zero, which AddEvent replaces with the current time.
func FromBroadcast(ev broadcast.Event) *Event {
	ts, _ := broadcast.ParseTimestamp(ev.Timestamp)
	return &Event{
		Timestamp:   ts,
		Action:      ev.Action,
		Source:      ev.Source,
		PackageName: ev.PackageName,
		Extras:      ev.Extras,
		Category:    ev.Category,
		Priority:    ev.Priority,
	}
}

// Broadcast converts an archived event back to its live form.
func (e Event) Broadcast() broadcast.Event {
	return broadcast.Event{
		Timestamp:   broadcast.Timestamp(e.Timestamp),
		Action:      e.Action,
		Source:      e.Source,
		PackageName: e.PackageName,
		Extras:      e.Extras,
		Category:    e.Category,
		Priority:    e.Priority,
	}
}

// SearchQuery defines filters for searching events. MaxPriority keeps
// events at least that important (priority <= MaxPriority); zero disables
// the filter.
type SearchQuery struct {
	Query       string
	Source      string
	Category    string
	PackageName string
	MaxPriority int
	Since       time.Time
	Until       time.Time
	Limit       int
	Offset      int
}

// Stats holds aggregate statistics about the archive.
type Stats struct {
	TotalEvents       int64
	OldestEvent       time.Time
	NewestEvent       time.Time
	DatabaseSizeBytes int64
	TopCategories     []ValueCount
	TopSources        []ValueCount
}

// ValueCount pairs a column value with its event count.
type ValueCount struct {
	Value string
	Count int64
}

// Exclusion rule types.
const (
	RuleAction = "action"
	RuleRegex  = "regex"
)
