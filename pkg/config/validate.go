package config

import (
	"fmt"
	"time"

	"github.com/adhocore/gronx"
)

const (
	defaultGCCron         = "0 * * * *"
	defaultGCLeaseTTL     = 5 * time.Minute
	defaultGCDeleteBatch  = 1000
	defaultTurnBuffer     = 256
	defaultScanBudget     = 1 << 20
	defaultNotifyBuffer   = 1024
	defaultSensorPoll     = 30 * time.Second
	defaultSensorDiskHigh = 85
	defaultSensorDiskLow  = 70
	defaultSensorMemHigh  = 85
	defaultSensorRecovery = time.Minute
)

// Validate fills missing defaults and rejects invalid values. Mutates
// the receiver.
func (c *Config) Validate() error {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level %q", c.Logging.Level)
	}

	if c.Shard.TurnBuffer <= 0 {
		c.Shard.TurnBuffer = defaultTurnBuffer
	}
	if c.Shard.ScanBudget.Int64() <= 0 {
		c.Shard.ScanBudget = SizeBytes(defaultScanBudget)
	}
	if c.Shard.MigrateBatch.Int64() <= 0 {
		c.Shard.MigrateBatch = c.Shard.ScanBudget
	}

	if c.GC.Cron == "" {
		c.GC.Cron = defaultGCCron
	}
	if c.GC.Enabled && !gronx.New().IsValid(c.GC.Cron) {
		return fmt.Errorf("invalid gc.cron %q", c.GC.Cron)
	}
	if c.GC.LeaseTTL.Duration() == 0 {
		c.GC.LeaseTTL = Duration(defaultGCLeaseTTL)
	}
	if c.GC.DeleteBatch <= 0 {
		c.GC.DeleteBatch = defaultGCDeleteBatch
	}

	if c.Notify.Buffer <= 0 {
		c.Notify.Buffer = defaultNotifyBuffer
	}

	if c.Sensor.PollInterval.Duration() == 0 {
		c.Sensor.PollInterval = Duration(defaultSensorPoll)
	}
	if c.Sensor.DiskHighPct == 0 {
		c.Sensor.DiskHighPct = defaultSensorDiskHigh
	}
	if c.Sensor.DiskLowPct == 0 {
		c.Sensor.DiskLowPct = defaultSensorDiskLow
	}
	if c.Sensor.DiskLowPct >= c.Sensor.DiskHighPct {
		return fmt.Errorf("sensor.disk_low_pct (%d) must be below sensor.disk_high_pct (%d)",
			c.Sensor.DiskLowPct, c.Sensor.DiskHighPct)
	}
	if c.Sensor.MemHighPct == 0 {
		c.Sensor.MemHighPct = defaultSensorMemHigh
	}
	if c.Sensor.RecoveryWindow.Duration() == 0 {
		c.Sensor.RecoveryWindow = Duration(defaultSensorRecovery)
	}
	return nil
}
