package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "com.xmbest.broadcastmonitor", cfg.Monitor.Package)
	assert.Equal(t, 1000, cfg.Monitor.Capacity)
	assert.Equal(t, 4, cfg.Monitor.Workers)
	assert.Equal(t, 256, cfg.Monitor.QueueSize)
	assert.Equal(t, "grpc", cfg.Relay.Transport)
	assert.Equal(t, "~/.config/broadcastmonitor/relay.sock", cfg.Relay.Socket)
	assert.Equal(t, "~/.config/broadcastmonitor/spool", cfg.Relay.SpoolDir)
	assert.Equal(t, 2000, cfg.Relay.SendTimeoutMS)
	assert.False(t, cfg.Archive.Enabled)
	assert.Equal(t, "~/.config/broadcastmonitor/archive.db", cfg.Archive.Path)
	assert.Equal(t, 7, cfg.Archive.RetentionDays)
	assert.Empty(t, cfg.Archive.ExcludeActions)
	assert.Empty(t, cfg.Metrics.Addr)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)

	assert.NoError(t, cfg.Validate())
}

func TestDefaultArchiveExclusionsIsPopulated(t *testing.T) {
	actions := DefaultArchiveExclusions()
	assert.NotEmpty(t, actions)
	assert.Contains(t, actions, "android.provider.Telephony.SMS_RECEIVED")
	assert.Contains(t, actions, "android.intent.action.NEW_OUTGOING_CALL")
}

func TestLoadValidYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	yamlContent := `
monitor:
  workers: 8
relay:
  transport: "spool"
  spool_dir: "/var/spool/bcast"
archive:
  enabled: true
  retention_days: 30
logging:
  level: "debug"
  format: "json"
`
	err := os.WriteFile(cfgPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(cfgPath)
	require.NoError(t, err)

	// Overridden values
	assert.Equal(t, 8, cfg.Monitor.Workers)
	assert.Equal(t, "spool", cfg.Relay.Transport)
	assert.Equal(t, "/var/spool/bcast", cfg.Relay.SpoolDir)
	assert.True(t, cfg.Archive.Enabled)
	assert.Equal(t, 30, cfg.Archive.RetentionDays)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	// Non-overridden values remain defaults
	assert.Equal(t, 1000, cfg.Monitor.Capacity)
	assert.Equal(t, 256, cfg.Monitor.QueueSize)
	assert.Equal(t, 2000, cfg.Relay.SendTimeoutMS)
	assert.Equal(t, "~/.config/broadcastmonitor/archive.db", cfg.Archive.Path)
}

func TestLoadInvalidYAMLReturnsError(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	err := os.WriteFile(cfgPath, []byte(":::not valid yaml{{{"), 0644)
	require.NoError(t, err)

	_, err = Load(cfgPath)
	assert.Error(t, err)
}

func TestLoadNonExistentFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing", "config.yaml"))
	assert.Error(t, err)
}

func TestLoadClampsCapacity(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("monitor:\n  capacity: 50000\n"), 0644))

	cfg, err := Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.Monitor.Capacity)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		target error
	}{
		{"unknown transport", func(c *Config) { c.Relay.Transport = "binder" }, ErrInvalidTransport},
		{"empty transport", func(c *Config) { c.Relay.Transport = "" }, ErrInvalidTransport},
		{"zero capacity", func(c *Config) { c.Monitor.Capacity = 0 }, ErrInvalidValue},
		{"negative workers", func(c *Config) { c.Monitor.Workers = -1 }, ErrInvalidValue},
		{"zero queue", func(c *Config) { c.Monitor.QueueSize = 0 }, ErrInvalidValue},
		{"empty package", func(c *Config) { c.Monitor.Package = "" }, ErrInvalidValue},
		{"zero send timeout", func(c *Config) { c.Relay.SendTimeoutMS = 0 }, ErrInvalidValue},
		{"negative retention", func(c *Config) { c.Archive.RetentionDays = -1 }, ErrInvalidValue},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }, ErrInvalidValue},
		{"bad regex", func(c *Config) { c.Archive.ExcludeRegex = []string{"("} }, ErrInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.target)
		})
	}
}

func TestLoadRejectsInvalidTransport(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("relay:\n  transport: carrier-pigeon\n"), 0644))

	_, err := Load(cfgPath)
	assert.ErrorIs(t, err, ErrInvalidTransport)
}

func TestLoadOrCreateCreatesDefaultsWhenMissing(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "sub", "deep", "config.yaml")

	cfg, err := LoadOrCreateAt(cfgPath)
	require.NoError(t, err)

	// Should return defaults
	assert.Equal(t, 1000, cfg.Monitor.Capacity)
	assert.Equal(t, "grpc", cfg.Relay.Transport)

	// File should now exist on disk
	_, statErr := os.Stat(cfgPath)
	assert.NoError(t, statErr)

	// File should be valid YAML loadable again
	cfg2, err := Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, cfg.Monitor, cfg2.Monitor)
	assert.Equal(t, cfg.Relay, cfg2.Relay)
	assert.Equal(t, cfg.Logging, cfg2.Logging)
}

func TestLoadOrCreateLoadsExistingFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	yamlContent := `
archive:
  retention_days: 3
`
	err := os.WriteFile(cfgPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	cfg, err := LoadOrCreateAt(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Archive.RetentionDays)
	// Other fields remain defaults
	assert.Equal(t, "grpc", cfg.Relay.Transport)
}

func TestLoadWithArchiveExclusions(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	yamlContent := `
archive:
  exclude_actions:
    - "android.intent.action.BATTERY_CHANGED"
  exclude_regex:
    - "^com\\.example\\."
`
	err := os.WriteFile(cfgPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"android.intent.action.BATTERY_CHANGED"}, cfg.Archive.ExcludeActions)
	assert.Equal(t, []string{`^com\.example\.`}, cfg.Archive.ExcludeRegex)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := ExpandPath("~/.config/broadcastmonitor")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "broadcastmonitor"), got)

	got, err = ExpandPath("/abs/path")
	require.NoError(t, err)
	assert.Equal(t, "/abs/path", got)
}
