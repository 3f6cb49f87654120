package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"powderlab/internal/blending"
	"powderlab/internal/config"
	"powderlab/internal/inspection"
	"powderlab/internal/logging"
	"powderlab/internal/preflight"
	"powderlab/internal/store"
	"powderlab/internal/trace"
)

// Daemon coordinates the station services and enforces single-instance
// execution over the shared database.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store

	inspections *inspection.Service
	blending    *blending.Service
	trace       *trace.Resolver

	lockPath string
	lock     *flock.Flock

	api     *apiServer
	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	DatabasePath string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, and logger")
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "powderlabd.lock")
	d := &Daemon{
		cfg:         cfg,
		logger:      logging.WithComponent(logger, "daemon"),
		store:       st,
		inspections: inspection.NewService(st, logger),
		blending:    blending.NewService(st, cfg, logger),
		trace:       trace.NewResolver(st, logger),
		lockPath:    lockPath,
		lock:        flock.New(lockPath),
	}

	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the daemon lock and begins serving the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another powderlab daemon instance is already running")
	}

	for _, check := range preflight.RunAll(ctx, d.cfg) {
		if check.Passed {
			continue
		}
		_ = d.lock.Unlock()
		return fmt.Errorf("preflight check %s failed: %s", check.Name, check.Detail)
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	if err := d.api.start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return err
	}

	d.running.Store(true)
	d.logger.Info("powderlab daemon started",
		slog.String("lock", d.lockPath),
		slog.String("database", d.store.Path()),
	)
	return nil
}

// Stop shuts down the API server and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("powderlab daemon stopped")
}

// Close stops the daemon and closes the store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// Status reports runtime information for the status endpoint and CLI.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
	}
}

// APIAddr returns the bound API address, empty before Start.
func (d *Daemon) APIAddr() string {
	return d.api.addr()
}
