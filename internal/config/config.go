// Package config provides the configuration structure for the log console and the log hub.
package config

import (
	"errors"
	"fmt"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
)

// Stream sources for the console.
const (
	SourceSSE  = "sse"
	SourceNATS = "nats"
)

// Defaults applied to unset values.
const (
	DefaultStreamURL        = "http://127.0.0.1:8501/api/logs"
	DefaultBufferCapacity   = 5000
	DefaultLimit            = 100
	DefaultListenAddr       = ":8501"
	DefaultHistorySize      = 200
	DefaultSubscriberBuffer = 256
	DefaultGinMode          = "release"
	DefaultNATSURL          = "nats://127.0.0.1:4222"
	DefaultLogSubject       = "logs.lines"
	DefaultSnapshotBucket   = "LOG_SNAPSHOTS"
	DefaultSnapshotSubject  = "logs.snapshot.saved"
	DefaultSnapshotFormat   = "text"
)

var (
	// ErrUnknownSource indicates a console source other than sse or nats.
	ErrUnknownSource = errors.New("unknown console source")
	// ErrUnknownFormat indicates a snapshot format other than text or html.
	ErrUnknownFormat = errors.New("unknown snapshot format")
	// ErrInvalidSize indicates a negative size value.
	ErrInvalidSize = errors.New("size cannot be negative")
)

// ConsoleConfig holds the configuration for the log console.
type ConsoleConfig struct {
	Source         string `toml:"source"`
	StreamURL      string `toml:"stream_url"`
	BufferCapacity int    `toml:"buffer_capacity"`
	DefaultLimit   int    `toml:"default_limit"`
	AutoRefresh    *bool  `toml:"auto_refresh"`
	Level          string `toml:"level"`
	Keyword        string `toml:"keyword"`
}

// HubConfig holds the configuration for the log hub.
type HubConfig struct {
	ListenAddr       string   `toml:"listen_addr"`
	HistorySize      int      `toml:"history_size"`
	SubscriberBuffer int      `toml:"subscriber_buffer"`
	GinMode          string   `toml:"gin_mode"`
	ColoredLogs      bool     `toml:"colored_logs"`
	AllowedOrigins   []string `toml:"allowed_origins"`
}

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL             string `toml:"url"`
	LogSubject      string `toml:"log_subject"`
	SnapshotBucket  string `toml:"snapshot_bucket"`
	SnapshotSubject string `toml:"snapshot_subject"`
}

// SnapshotConfig holds the configuration for view snapshots.
type SnapshotConfig struct {
	Format string `toml:"format"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure.
type Config struct {
	Console  ConsoleConfig  `toml:"console"`
	Hub      HubConfig      `toml:"hub"`
	NATS     NATSConfig     `toml:"nats"`
	Snapshot SnapshotConfig `toml:"snapshot"`
	Paths    PathsConfig    `toml:"paths"`
}

// Load loads the configuration, applies defaults and validates it.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	cfg.ApplyDefaults()

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// ApplyDefaults fills every unset value with its default.
func (c *Config) ApplyDefaults() {
	if c.Console.Source == "" {
		c.Console.Source = SourceSSE
	}

	if c.Console.StreamURL == "" {
		c.Console.StreamURL = DefaultStreamURL
	}

	if c.Console.BufferCapacity == 0 {
		c.Console.BufferCapacity = DefaultBufferCapacity
	}

	if c.Console.DefaultLimit == 0 {
		c.Console.DefaultLimit = DefaultLimit
	}

	if c.Console.AutoRefresh == nil {
		autoRefresh := true
		c.Console.AutoRefresh = &autoRefresh
	}

	if c.Hub.ListenAddr == "" {
		c.Hub.ListenAddr = DefaultListenAddr
	}

	if c.Hub.HistorySize == 0 {
		c.Hub.HistorySize = DefaultHistorySize
	}

	if c.Hub.SubscriberBuffer == 0 {
		c.Hub.SubscriberBuffer = DefaultSubscriberBuffer
	}

	if c.Hub.GinMode == "" {
		c.Hub.GinMode = DefaultGinMode
	}

	if c.NATS.URL == "" {
		c.NATS.URL = DefaultNATSURL
	}

	if c.NATS.LogSubject == "" {
		c.NATS.LogSubject = DefaultLogSubject
	}

	if c.NATS.SnapshotBucket == "" {
		c.NATS.SnapshotBucket = DefaultSnapshotBucket
	}

	if c.NATS.SnapshotSubject == "" {
		c.NATS.SnapshotSubject = DefaultSnapshotSubject
	}

	if c.Snapshot.Format == "" {
		c.Snapshot.Format = DefaultSnapshotFormat
	}
}

// Validate reports the first invalid value.
func (c *Config) Validate() error {
	if c.Console.Source != SourceSSE && c.Console.Source != SourceNATS {
		return fmt.Errorf("%w: %q", ErrUnknownSource, c.Console.Source)
	}

	if c.Snapshot.Format != "text" && c.Snapshot.Format != "html" {
		return fmt.Errorf("%w: %q", ErrUnknownFormat, c.Snapshot.Format)
	}

	sizes := []struct {
		name  string
		value int
	}{
		{name: "console.buffer_capacity", value: c.Console.BufferCapacity},
		{name: "console.default_limit", value: c.Console.DefaultLimit},
		{name: "hub.history_size", value: c.Hub.HistorySize},
		{name: "hub.subscriber_buffer", value: c.Hub.SubscriberBuffer},
	}

	for _, size := range sizes {
		if size.value < 0 {
			return fmt.Errorf("%w: %s = %d", ErrInvalidSize, size.name, size.value)
		}
	}

	return nil
}

// AutoRefreshEnabled reports the configured initial auto-refresh state.
func (c *ConsoleConfig) AutoRefreshEnabled() bool {
	return c.AutoRefresh == nil || *c.AutoRefresh
}
