package app

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/valyala/fasthttp"

	"github.com/open-chat-labs/open-chat-sub005/internal/expiry"
	"github.com/open-chat-labs/open-chat-sub005/pkg/config"
	"github.com/open-chat-labs/open-chat-sub005/pkg/config/banner"
	"github.com/open-chat-labs/open-chat-sub005/pkg/logger"
	"github.com/open-chat-labs/open-chat-sub005/pkg/notify"
	"github.com/open-chat-labs/open-chat-sub005/pkg/sensor"
	"github.com/open-chat-labs/open-chat-sub005/pkg/shard"
	"github.com/open-chat-labs/open-chat-sub005/pkg/store"
)

// App wires the shard's components for one process: store, runtime,
// GC sweep, sensor and the ops HTTP endpoint.
type App struct {
	eff     config.Effective
	version string

	store    *store.Store
	notifier *notify.ChannelNotifier
	runtime  *shard.Runtime
	gc       *expiry.Manager
	gcCancel context.CancelFunc
	hw       *sensor.Sensor
	srv      *fasthttp.Server
}

// New opens the store and builds the runtime. Nothing is started yet;
// Run arms the background loops and the HTTP listener.
func New(eff config.Effective, version string) (*App, error) {
	_ = godotenv.Load(".env")

	cfg := eff.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s, err := store.Open(eff.DBPath, store.Options{DisableWAL: cfg.Store.DisableWAL})
	if err != nil {
		return nil, fmt.Errorf("open store at %s: %w", eff.DBPath, err)
	}
	if err := s.Upgrade(); err != nil {
		_ = s.Close()
		return nil, err
	}

	if err := logger.AttachAuditFileSink(filepath.Join(eff.DBPath, "audit")); err != nil {
		logger.Warn("audit_sink_unavailable", "error", err)
	}

	notifier := notify.NewChannelNotifier(int64(cfg.Notify.Buffer))
	rt := shard.NewRuntime(shard.Config{
		Store:      s,
		Notifier:   notifier,
		TurnBuffer: cfg.Shard.TurnBuffer,
	})

	a := &App{
		eff:      eff,
		version:  version,
		store:    s,
		notifier: notifier,
		runtime:  rt,
	}
	a.gc = expiry.New(rt, expiry.Options{
		Enabled:       cfg.GC.Enabled,
		Cron:          cfg.GC.Cron,
		LeaseDir:      eff.DBPath,
		LeaseTTL:      cfg.GC.LeaseTTL.Duration(),
		DeleteBatch:   cfg.GC.DeleteBatch,
		DeletesPerSec: cfg.GC.DeletesPerSec,
	})
	if cfg.Sensor.Enabled {
		a.hw = sensor.New(sensor.Config{
			Path:           eff.DBPath,
			PollInterval:   cfg.Sensor.PollInterval.Duration(),
			DiskHighPct:    cfg.Sensor.DiskHighPct,
			DiskLowPct:     cfg.Sensor.DiskLowPct,
			MemHighPct:     cfg.Sensor.MemHighPct,
			RecoveryWindow: cfg.Sensor.RecoveryWindow.Duration(),
		})
	}
	return a, nil
}

// Runtime exposes the shard runtime for embedding callers.
func (a *App) Runtime() *shard.Runtime { return a.runtime }

// Run starts the background loops and the ops listener, then blocks
// until ctx is cancelled or the listener fails.
func (a *App) Run(ctx context.Context) error {
	banner.Print(a.eff, a.version)

	cancel, err := a.gc.Start(ctx)
	if err != nil {
		return err
	}
	a.gcCancel = cancel

	if a.hw != nil {
		a.hw.Start()
	}

	errCh, err := a.startHTTP()
	if err != nil {
		return err
	}
	logger.Info("shard_started", "addr", a.eff.Addr, "db_path", a.eff.DBPath)

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown tears the process down in reverse start order. The HTTP
// shutdown waits for in-flight requests; ctx caps how long the caller
// waits for it.
func (a *App) Shutdown(ctx context.Context) error {
	if a.srv != nil {
		done := make(chan error, 1)
		go func() { done <- a.srv.Shutdown() }()
		select {
		case err := <-done:
			if err != nil {
				logger.Warn("http_shutdown_failed", "error", err)
			}
		case <-ctx.Done():
			logger.Warn("http_shutdown_timeout", "error", ctx.Err())
		}
	}
	if a.gcCancel != nil {
		a.gcCancel()
	}
	if a.hw != nil {
		a.hw.Stop()
	}
	a.runtime.Close()
	if err := a.store.Close(); err != nil {
		return err
	}
	logger.Info("shard_stopped")
	return nil
}
