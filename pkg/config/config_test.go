package config

import (
	"testing"
	"time"
)

func TestParseSizesAndDurations(t *testing.T) {
	cfg, err := Parse([]byte(`
server:
  address: 127.0.0.1
  port: 9100
store:
  path: /data/shard
shard:
  scan_budget: 2MB
  turn_buffer: 64
gc:
  enabled: true
  cron: "*/5 * * * *"
  lease_ttl: 90s
  deletes_per_sec: 250
sensor:
  poll_interval: 500ms
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := cfg.Addr(); got != "127.0.0.1:9100" {
		t.Fatalf("addr = %q", got)
	}
	if cfg.Shard.ScanBudget.Int64() != 2_000_000 {
		t.Fatalf("scan_budget = %d", cfg.Shard.ScanBudget.Int64())
	}
	if cfg.GC.LeaseTTL.Duration() != 90*time.Second {
		t.Fatalf("lease_ttl = %v", cfg.GC.LeaseTTL.Duration())
	}
	if cfg.Sensor.PollInterval.Duration() != 500*time.Millisecond {
		t.Fatalf("poll_interval = %v", cfg.Sensor.PollInterval.Duration())
	}
}

func TestNumericDurationMeansSeconds(t *testing.T) {
	cfg, err := Parse([]byte("gc:\n  lease_ttl: 120\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.GC.LeaseTTL.Duration() != 2*time.Minute {
		t.Fatalf("lease_ttl = %v", cfg.GC.LeaseTTL.Duration())
	}
}

func TestValidateAppliesDefaults(t *testing.T) {
	var cfg Config
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("level = %q", cfg.Logging.Level)
	}
	if cfg.GC.Cron != defaultGCCron {
		t.Fatalf("cron = %q", cfg.GC.Cron)
	}
	if cfg.Shard.TurnBuffer != defaultTurnBuffer {
		t.Fatalf("turn_buffer = %d", cfg.Shard.TurnBuffer)
	}
	if cfg.Shard.MigrateBatch != cfg.Shard.ScanBudget {
		t.Fatalf("migrate_batch = %d", cfg.Shard.MigrateBatch.Int64())
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Config{GC: GCConfig{Enabled: true, Cron: "not a cron"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("bad cron accepted")
	}
	cfg = Config{Logging: LoggingConfig{Level: "verbose"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("bad level accepted")
	}
	cfg = Config{Sensor: SensorConfig{DiskHighPct: 50, DiskLowPct: 60}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("inverted disk thresholds accepted")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CHATSHARD_DB_PATH", "/env/path")
	t.Setenv("CHATSHARD_GC_CRON", "0 3 * * *")

	eff, err := LoadEffective(Flags{Addr: ":9090", DB: "./db", Config: "./nope.yaml", Set: map[string]bool{}})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if eff.Source != "env" {
		t.Fatalf("source = %q", eff.Source)
	}
	if eff.DBPath != "/env/path" {
		t.Fatalf("db path = %q", eff.DBPath)
	}
	if !eff.Config.GC.Enabled || eff.Config.GC.Cron != "0 3 * * *" {
		t.Fatalf("gc = %+v", eff.Config.GC)
	}
}
