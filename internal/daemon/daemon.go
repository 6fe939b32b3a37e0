package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"redline/internal/config"
	"redline/internal/jobs"
	"redline/internal/logging"
	"redline/internal/orchestrator"
)

// Daemon coordinates the background services and enforces single-instance
// execution per data directory.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	orc    *orchestrator.Orchestrator
	pool   *orchestrator.Pool
	api    *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Queue        jobs.HealthSummary
	JobsDBPath   string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, orc *orchestrator.Orchestrator, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || orc == nil || logger == nil {
		return nil, errors.New("daemon requires config, orchestrator, and logger")
	}
	lockPath := filepath.Join(cfg.Paths.DataDir, "redline.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		orc:      orc,
		pool:     orchestrator.NewPool(orc),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the instance lock and launches the worker pool, sweeper,
// and API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another redline daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.pool.Run(runCtx)
	}()
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.orc.RunSweeper(runCtx)
	}()

	if err := d.api.start(runCtx); err != nil {
		cancel()
		d.cancel = nil
		d.wg.Wait()
		_ = d.lock.Unlock()
		return err
	}

	d.running.Store(true)
	d.logger.Info("redline daemon started",
		logging.String("lock", d.lockPath),
		logging.Int("workers", d.cfg.Workers.Count),
	)
	return nil
}

// Stop halts background processing and releases the instance lock.
func (d *Daemon) Stop() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	d.api.stop()
	if d.running.Load() {
		if err := d.lock.Unlock(); err != nil {
			d.logger.Warn("failed to release daemon lock", logging.Error(err))
		}
		d.running.Store(false)
		d.logger.Info("redline daemon stopped")
	}
}

// Status reports runtime and queue state for the status endpoint and CLI.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		JobsDBPath:   d.orc.Jobs().Path(),
		LockFilePath: d.lockPath,
	}
	health, err := d.orc.Jobs().Health(ctx)
	if err != nil {
		d.logger.Warn("queue health unavailable", logging.Error(err))
		return status
	}
	status.Queue = health
	return status
}

// APIAddr returns the bound API address, or "" before Start.
func (d *Daemon) APIAddr() string {
	return d.api.addr()
}
