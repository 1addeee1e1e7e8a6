package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/runnerr0/broadcastmonitor/internal/broadcast"
)

// Default config file path.
const DefaultConfigPath = "~/.config/broadcastmonitor/config.yaml"

// Relay transports.
const (
	TransportGRPC     = "grpc"
	TransportSpool    = "spool"
	TransportLoopback = "loopback"
)

var (
	ErrInvalidTransport = errors.New("invalid relay transport")
	ErrInvalidValue     = errors.New("invalid config value")
)

// Config holds all broadcast monitor configuration.
type Config struct {
	Monitor MonitorConfig `yaml:"monitor"`
	Relay   RelayConfig   `yaml:"relay"`
	Archive ArchiveConfig `yaml:"archive"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

type MonitorConfig struct {
	Package   string `yaml:"package"`
	Capacity  int    `yaml:"capacity"`
	Workers   int    `yaml:"workers"`
	QueueSize int    `yaml:"queue_size"`
}

type RelayConfig struct {
	Transport     string `yaml:"transport"`
	Socket        string `yaml:"socket"`
	SpoolDir      string `yaml:"spool_dir"`
	SendTimeoutMS int    `yaml:"send_timeout_ms"`
}

type ArchiveConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Path           string   `yaml:"path"`
	RetentionDays  int      `yaml:"retention_days"`
	ExcludeActions []string `yaml:"exclude_actions"`
	ExcludeRegex   []string `yaml:"exclude_regex"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a YAML config file at path and merges it with defaults.
// Returns an error if the file cannot be read, contains invalid YAML, or
// fails validation.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the config and clamps the monitor capacity to the
// event store's fixed maximum.
func (c *Config) Validate() error {
	switch c.Relay.Transport {
	case TransportGRPC, TransportSpool, TransportLoopback:
	default:
		return fmt.Errorf("%w: %q (use grpc, spool, or loopback)", ErrInvalidTransport, c.Relay.Transport)
	}

	if c.Monitor.Package == "" {
		return fmt.Errorf("%w: monitor.package is empty", ErrInvalidValue)
	}
	if c.Monitor.Capacity <= 0 {
		return fmt.Errorf("%w: monitor.capacity must be positive", ErrInvalidValue)
	}
	if c.Monitor.Workers <= 0 {
		return fmt.Errorf("%w: monitor.workers must be positive", ErrInvalidValue)
	}
	if c.Monitor.QueueSize <= 0 {
		return fmt.Errorf("%w: monitor.queue_size must be positive", ErrInvalidValue)
	}
	if c.Relay.SendTimeoutMS <= 0 {
		return fmt.Errorf("%w: relay.send_timeout_ms must be positive", ErrInvalidValue)
	}
	if c.Archive.RetentionDays < 0 {
		return fmt.Errorf("%w: archive.retention_days is negative", ErrInvalidValue)
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: logging.format %q (use text or json)", ErrInvalidValue, c.Logging.Format)
	}

	for _, expr := range c.Archive.ExcludeRegex {
		if _, err := regexp.Compile(expr); err != nil {
			return fmt.Errorf("%w: archive.exclude_regex %q: %v", ErrInvalidValue, expr, err)
		}
	}

	if c.Monitor.Capacity > broadcast.MaxEvents {
		c.Monitor.Capacity = broadcast.MaxEvents
	}
	return nil
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// LoadOrCreate loads the config from the default path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreate() (*Config, error) {
	path, err := ExpandPath(DefaultConfigPath)
	if err != nil {
		return nil, err
	}
	return LoadOrCreateAt(path)
}

// LoadOrCreateAt loads the config from the given path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreateAt(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()

		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating config directory: %w", err)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshaling default config: %w", err)
		}

		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}

		return cfg, nil
	}

	return Load(path)
}
