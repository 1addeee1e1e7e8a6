package config

import "github.com/runnerr0/broadcastmonitor/internal/broadcast"

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Monitor: MonitorConfig{
			Package:   broadcast.PackageName,
			Capacity:  broadcast.MaxEvents,
			Workers:   4,
			QueueSize: 256,
		},
		Relay: RelayConfig{
			Transport:     TransportGRPC,
			Socket:        "~/.config/broadcastmonitor/relay.sock",
			SpoolDir:      "~/.config/broadcastmonitor/spool",
			SendTimeoutMS: 2000,
		},
		Archive: ArchiveConfig{
			Enabled:        false,
			Path:           "~/.config/broadcastmonitor/archive.db",
			RetentionDays:  7,
			ExcludeActions: []string{},
			ExcludeRegex:   []string{},
		},
		Metrics: MetricsConfig{
			Addr: "",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
