package expiry

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"golang.org/x/time/rate"

	"github.com/open-chat-labs/open-chat-sub005/pkg/logger"
	"github.com/open-chat-labs/open-chat-sub005/pkg/shard"
	"github.com/open-chat-labs/open-chat-sub005/pkg/telemetry"
	"github.com/open-chat-labs/open-chat-sub005/pkg/timeutil"
)

// Options configures the GC sweep.
type Options struct {
	Enabled bool
	// Cron is the sweep schedule in standard cron syntax.
	Cron string
	// LeaseDir holds the gc.lock file; usually the store's data dir.
	LeaseDir string
	// LeaseTTL bounds how long a crashed sweeper blocks the next one.
	LeaseTTL time.Duration
	// DeleteBatch caps keys removed per turn while purging a chat.
	DeleteBatch int
	// DeletesPerSec paces chat purges so a large chat's removal cannot
	// starve foreground turns. 0 means unpaced.
	DeletesPerSec float64
}

func (o *Options) withDefaults() {
	if o.Cron == "" {
		o.Cron = "0 * * * *"
	}
	if o.LeaseTTL <= 0 {
		o.LeaseTTL = 5 * time.Minute
	}
	if o.DeleteBatch <= 0 {
		o.DeleteBatch = 1000
	}
}

// Manager owns the periodic GC sweep: expired TTL events, scheduled
// message purges, and deleted-chat key ranges. All store access happens
// in runner turns, so the sweep interleaves with foreground work instead
// of racing it.
type Manager struct {
	rt      *shard.Runtime
	opts    Options
	lease   *fileLease
	limiter *rate.Limiter

	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	running bool
}

// New builds a Manager; call Start to arm the schedule.
func New(rt *shard.Runtime, opts Options) *Manager {
	opts.withDefaults()
	m := &Manager{rt: rt, opts: opts}
	if opts.LeaseDir != "" {
		m.lease = newFileLease(opts.LeaseDir)
	}
	if opts.DeletesPerSec > 0 {
		m.limiter = rate.NewLimiter(rate.Limit(opts.DeletesPerSec), opts.DeleteBatch)
	}
	return m
}

// Start arms the cron schedule. The returned cancel stops the loop; it
// never interrupts a sweep mid-pass.
func (m *Manager) Start(ctx context.Context) (context.CancelFunc, error) {
	if !m.opts.Enabled {
		logger.Info("gc_disabled")
		return func() {}, nil
	}
	if !gronx.New().IsValid(m.opts.Cron) {
		return nil, fmt.Errorf("invalid gc cron %q", m.opts.Cron)
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	logger.Info("gc_enabled", "cron", m.opts.Cron)
	go m.scheduleLoop()
	return m.cancel, nil
}

// RunImmediate runs one sweep now, outside the schedule.
func (m *Manager) RunImmediate() (SweepStats, error) {
	return m.runSweep()
}

func (m *Manager) scheduleLoop() {
	for {
		now := timeutil.Now()
		next, err := gronx.NextTickAfter(m.opts.Cron, now, false)
		if err != nil {
			logger.Error("gc_nexttick_failed", "cron", m.opts.Cron, "error", err)
			select {
			case <-time.After(30 * time.Second):
				continue
			case <-m.ctx.Done():
				return
			}
		}
		select {
		case <-time.After(next.Sub(now)):
		case <-m.ctx.Done():
			return
		}
		m.runJob()
	}
}

// runJob skips the tick when the previous sweep is still going.
func (m *Manager) runJob() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		logger.Warn("gc_sweep_overlap_skipped")
		return
	}
	m.running = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	stats, err := m.runSweep()
	if err != nil {
		logger.Error("gc_sweep_failed", "error", err)
		return
	}
	telemetry.EventsExpired.Add(float64(stats.ExpiredEvents))
	telemetry.MessagesPurged.Add(float64(stats.PurgedMessages))
	telemetry.ChatsPurged.Add(float64(stats.PurgedChats))
	logger.Info("gc_sweep_done",
		"expired_events", stats.ExpiredEvents,
		"purged_messages", stats.PurgedMessages,
		"purged_chats", stats.PurgedChats,
		"deleted_keys", stats.DeletedKeys)
	if logger.Audit != nil {
		logger.Audit.Info("gc_sweep",
			"expired_events", stats.ExpiredEvents,
			"purged_messages", stats.PurgedMessages,
			"purged_chats", stats.PurgedChats,
			"deleted_keys", stats.DeletedKeys)
	}
}

func (m *Manager) runSweep() (SweepStats, error) {
	var stats SweepStats
	release, err := m.acquireLease()
	if err != nil {
		return stats, err
	}
	if release == nil {
		logger.Info("gc_sweep_lease_held_elsewhere")
		return stats, nil
	}
	defer release()

	now := m.rt.Clock.Now()
	if err := m.sweepExpiredEvents(now, &stats); err != nil {
		return stats, err
	}
	if err := m.sweepDuePurges(now, &stats); err != nil {
		return stats, err
	}
	if err := m.sweepDeletedChats(now, &stats); err != nil {
		return stats, err
	}
	return stats, nil
}

// acquireLease takes the sweep lock and starts a heartbeat that renews
// it at a third of the TTL. Returns a nil release when another process
// holds a live lease. Three consecutive renew failures abandon the
// heartbeat; the lease then lapses on its own.
func (m *Manager) acquireLease() (func(), error) {
	if m.lease == nil {
		return func() {}, nil
	}
	host, _ := os.Hostname()
	owner := fmt.Sprintf("%s-%d", host, os.Getpid())
	ok, err := m.lease.Acquire(owner, m.opts.LeaseTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	stop := make(chan struct{})
	go func() {
		t := time.NewTicker(m.opts.LeaseTTL / 3)
		defer t.Stop()
		failures := 0
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				if err := m.lease.Renew(owner, m.opts.LeaseTTL); err != nil {
					failures++
					logger.Warn("gc_lease_renew_failed", "failures", failures, "error", err)
					if failures >= 3 {
						return
					}
				} else {
					failures = 0
				}
			}
		}
	}()
	return func() {
		close(stop)
		if err := m.lease.Release(owner); err != nil {
			logger.Warn("gc_lease_release_failed", "error", err)
		}
	}, nil
}
