package sensor

import (
	"runtime"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/open-chat-labs/open-chat-sub005/pkg/logger"
	"github.com/open-chat-labs/open-chat-sub005/pkg/timeutil"
)

// Config tunes the resource watcher.
type Config struct {
	// Path is the filesystem whose capacity is watched; point it at the
	// store's data directory.
	Path           string
	PollInterval   time.Duration
	DiskHighPct    int
	DiskLowPct     int
	MemHighPct     int
	RecoveryWindow time.Duration
}

// Sensor watches disk capacity under the store and heap pressure,
// logging on threshold crossings. Alerts latch until usage stays below
// the low-water mark for the recovery window, so a flapping filesystem
// does not spam the log.
type Sensor struct {
	cfg      Config
	stopCh   chan struct{}
	stopOnce sync.Once

	mu            sync.Mutex
	diskAlert     bool
	memAlert      bool
	lastDiskAlert time.Time
	lastMemAlert  time.Time
}

func New(cfg Config) *Sensor {
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	return &Sensor{cfg: cfg, stopCh: make(chan struct{})}
}

func (s *Sensor) Start() {
	go s.run()
}

func (s *Sensor) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// DiskAlerted reports whether the disk alert is currently latched; the
// readiness probe degrades on it.
func (s *Sensor) DiskAlerted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.diskAlert
}

func (s *Sensor) run() {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.check()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Sensor) check() {
	now := timeutil.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	var stat unix.Statfs_t
	if err := unix.Statfs(s.cfg.Path, &stat); err != nil {
		logger.Warn("sensor_statfs_failed", "path", s.cfg.Path, "error", err)
		return
	}
	available := stat.Bavail * uint64(stat.Bsize)
	total := stat.Blocks * uint64(stat.Bsize)
	if total == 0 {
		return
	}
	usedPct := float64(total-available) / float64(total) * 100

	if usedPct > float64(s.cfg.DiskHighPct) {
		if !s.diskAlert {
			logger.Warn("disk_usage_high", "path", s.cfg.Path, "used_pct", usedPct, "threshold_pct", s.cfg.DiskHighPct)
			s.diskAlert = true
			s.lastDiskAlert = now
		}
	} else if usedPct < float64(s.cfg.DiskLowPct) && s.diskAlert {
		if now.Sub(s.lastDiskAlert) >= s.cfg.RecoveryWindow {
			logger.Info("disk_usage_recovered", "path", s.cfg.Path, "used_pct", usedPct)
			s.diskAlert = false
		}
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	if m.HeapSys == 0 {
		return
	}
	memUsedPct := float64(m.HeapInuse) / float64(m.HeapSys) * 100
	if memUsedPct > float64(s.cfg.MemHighPct) {
		if !s.memAlert {
			logger.Warn("memory_usage_high", "used_pct", memUsedPct, "threshold_pct", s.cfg.MemHighPct)
			s.memAlert = true
			s.lastMemAlert = now
		}
	} else if s.memAlert {
		if now.Sub(s.lastMemAlert) >= s.cfg.RecoveryWindow {
			logger.Info("memory_usage_recovered", "used_pct", memUsedPct)
			s.memAlert = false
		}
	}
}
