package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Config is the full shard configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	Store   StoreConfig   `yaml:"store"`
	Shard   ShardConfig   `yaml:"shard"`
	GC      GCConfig      `yaml:"gc"`
	Notify  NotifyConfig  `yaml:"notify"`
	Sensor  SensorConfig  `yaml:"sensor"`
}

// ServerConfig holds the ops HTTP endpoint settings.
type ServerConfig struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// LoggingConfig selects level and sink for the structured logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
	Sink  string `yaml:"sink"`
}

// StoreConfig locates the pebble database.
type StoreConfig struct {
	Path       string `yaml:"path"`
	DisableWAL bool   `yaml:"disable_wal"`
}

// ShardConfig tunes the turn executor and cross-shard transfers.
type ShardConfig struct {
	TurnBuffer   int       `yaml:"turn_buffer"`
	ScanBudget   SizeBytes `yaml:"scan_budget"`
	MigrateBatch SizeBytes `yaml:"migrate_batch"`
}

// GCConfig drives the periodic expiry/purge sweep.
type GCConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Cron          string   `yaml:"cron"`
	LeaseTTL      Duration `yaml:"lease_ttl"`
	DeleteBatch   int      `yaml:"delete_batch"`
	DeletesPerSec float64  `yaml:"deletes_per_sec"`
}

// NotifyConfig sizes the event fanout channel.
type NotifyConfig struct {
	Buffer int `yaml:"buffer"`
}

// SensorConfig tunes the disk/memory watcher.
type SensorConfig struct {
	Enabled        bool     `yaml:"enabled"`
	PollInterval   Duration `yaml:"poll_interval"`
	DiskHighPct    int      `yaml:"disk_high_pct"`
	DiskLowPct     int      `yaml:"disk_low_pct"`
	MemHighPct     int      `yaml:"mem_high_pct"`
	RecoveryWindow Duration `yaml:"recovery_window"`
}

// SizeBytes is a byte count parsed from human-friendly strings like
// "64MB" or plain integers.
type SizeBytes int64

func (s *SizeBytes) UnmarshalYAML(b []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(b)), `"'`)
	if raw == "" {
		*s = 0
		return nil
	}
	if v, err := humanize.ParseBytes(raw); err == nil {
		*s = SizeBytes(v)
		return nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*s = SizeBytes(i)
		return nil
	}
	return fmt.Errorf("invalid size value: %q", raw)
}

func (s SizeBytes) Int64() int64 { return int64(s) }
func (s SizeBytes) Int() int     { return int(s) }

// Duration wraps time.Duration and parses strings like "100ms" or
// plain numbers as seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(b []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(b)), `"'`)
	if raw == "" {
		*d = 0
		return nil
	}
	if td, err := time.ParseDuration(raw); err == nil {
		*d = Duration(td)
		return nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = Duration(time.Duration(f * float64(time.Second)))
		return nil
	}
	return fmt.Errorf("invalid duration value: %q", raw)
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }
