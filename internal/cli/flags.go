package cli

import "database/sql"

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file" default:""`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Enable verbose output"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// MonitorCommand runs the observer and prints the event stream.
type MonitorCommand struct {
	Transport   string `long:"transport" description:"Relay transport: grpc | spool (overrides config)"`
	Archive     bool   `long:"archive" description:"Mirror received events into the archive"`
	MetricsAddr string `long:"metrics-addr" description:"Serve Prometheus metrics on this address (e.g., :9464)"`
	Details     bool   `long:"details" description:"Print source, package, category and extras under each event"`

	globals *GlobalFlags
	version string
}

// TestCommand sends the synthetic test broadcast through a hooked sender.
type TestCommand struct {
	Transport string `long:"transport" description:"Relay transport: grpc | spool | loopback (overrides config)"`

	globals *GlobalFlags
	version string
}

// SendCommand sends an arbitrary broadcast through a hooked sender.
type SendCommand struct {
	Action    string            `long:"action" description:"Broadcast action (required)"`
	Package   string            `long:"package" description:"Restrict delivery to this package"`
	Extras    map[string]string `long:"extra" key-value-delimiter:"=" description:"Extra as key=value (repeatable)"`
	Point     string            `long:"point" description:"Interception point source label" default:"ContextImpl-sendBroadcast"`
	Transport string            `long:"transport" description:"Relay transport: grpc | spool | loopback (overrides config)"`

	globals *GlobalFlags
	version string
}

// ClassifyCommand shows how actions are categorized and filtered.
type ClassifyCommand struct {
	globals *GlobalFlags
	version string
}

// PointsCommand lists the interception table.
type PointsCommand struct {
	Role string `long:"role" description:"Process role: app | system" default:"app"`
	All  bool   `long:"all" description:"Include disabled points"`

	globals *GlobalFlags
	version string
}

// SearchCommand searches archived events by keyword with filters.
type SearchCommand struct {
	Since       string `long:"since" description:"Only events newer than duration (e.g., 7d, 24h, 2w)" default:"7d"`
	Until       string `long:"until" description:"Only events older than duration"`
	Source      string `long:"source" description:"Filter by interception point"`
	Category    string `long:"category" description:"Filter by category"`
	Package     string `long:"package" description:"Filter by target package"`
	MaxPriority int    `long:"max-priority" description:"Only events at least this important (1-5)" default:"0"`
	Limit       int    `long:"limit" description:"Maximum results" default:"10"`
	Offset      int    `long:"offset" description:"Skip first N results" default:"0"`

	globals *GlobalFlags
	version string
}

// StatusCommand shows archive statistics and a configuration summary.
type StatusCommand struct {
	globals *GlobalFlags
	version string
}

// OpenCommand prints a single archived event.
type OpenCommand struct {
	ID     string `long:"id" description:"Event ID (required)"`
	Format string `long:"format" description:"Output format: full | extras | md | json" default:"full"`

	globals *GlobalFlags
	version string
}

// PruneCommand applies retention to the archive.
type PruneCommand struct {
	OlderThan string `long:"older-than" description:"Override retention period (e.g., 7d)"`
	DryRun    bool   `long:"dry-run" description:"Show what would be pruned without deleting"`

	globals *GlobalFlags
	version string
}

// PurgeCommand deletes ALL archived events after confirmation.
type PurgeCommand struct {
	All   bool `long:"all" description:"Required flag to confirm purge intent"`
	Force bool `long:"force" description:"Skip safety confirmation prompt"`

	globals *GlobalFlags
	version string
	db      *sql.DB // injectable for testing; nil means open the configured archive
}
