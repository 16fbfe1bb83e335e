package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"mila/internal/api"
	"mila/internal/archive"
	"mila/internal/cache"
	"mila/internal/config"
	"mila/internal/consensus"
	"mila/internal/logging"
	"mila/internal/pipeline"
	"mila/internal/services/storage"
)

// Daemon coordinates the background pipeline and enforces single-instance
// execution via a lock file under the log directory.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *archive.Store
	pipeline  *pipeline.Manager
	consensus *consensus.Engine

	entries     *api.EntryService
	communities *api.CommunityService
	content     *storage.Client
	volume      *cache.VolumeCounter

	apiSrv   *apiServer
	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Pipeline     pipeline.StatusSummary
	ArchivePath  string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies. The communities
// source must be the same instance handed to the consensus engine and the
// symbolization stage so profile writes invalidate every cached reader.
// A nil source gets a daemon-local one.
func New(cfg *config.Config, store *archive.Store, logger *slog.Logger, pm *pipeline.Manager, engine *consensus.Engine, communities *cache.Communities) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || pm == nil || engine == nil {
		return nil, errors.New("daemon requires config, store, logger, pipeline manager, and consensus engine")
	}

	var memo *cache.Cache
	if cfg.Cache.Enabled {
		memo = cache.New(logger)
	}
	if communities == nil {
		ttl := time.Duration(cfg.Cache.TTLSeconds) * time.Second
		communities = cache.NewCommunities(store, memo, ttl)
	}
	queryTTL := time.Duration(cfg.Cache.QueryTTLSeconds) * time.Second

	lockPath := filepath.Join(cfg.Paths.LogDir, "milad.lock")
	d := &Daemon{
		cfg:         cfg,
		logger:      logging.NewComponentLogger(logger, "daemon"),
		store:       store,
		pipeline:    pm,
		consensus:   engine,
		entries:     api.NewEntryService(store, memo, queryTTL),
		communities: api.NewCommunityService(store, communities),
		content:     storage.NewConfiguredClient(cfg),
		volume:      cache.NewVolumeCounter(),
		lockPath:    lockPath,
		lock:        flock.New(lockPath),
	}

	srv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.apiSrv = srv
	return d, nil
}

// Start acquires the daemon lock, reclaims entries stranded by a previous
// crash, and launches the pipeline and API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another mila daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	reclaimed, err := d.store.ResetStuckProcessing(d.ctx)
	if err != nil {
		d.logger.Warn("reset stuck entries failed", logging.Error(err))
	} else if reclaimed > 0 {
		d.logger.Info("reclaimed stranded entries", logging.Int64("count", reclaimed))
	}

	if err := d.pipeline.Start(d.ctx); err != nil {
		d.releaseLock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start pipeline: %w", err)
	}
	if err := d.apiSrv.start(d.ctx); err != nil {
		d.pipeline.Stop()
		d.releaseLock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start api server: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("mila daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.apiSrv.stop()
	d.pipeline.Stop()
	d.releaseLock()
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("mila daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status reports daemon runtime information.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		Pipeline:     d.pipeline.Status(ctx),
		ArchivePath:  d.store.Path(),
		LockFilePath: d.lockPath,
	}
}

// APIAddr returns the bound API listen address, or empty before Start.
func (d *Daemon) APIAddr() string {
	return d.apiSrv.addr()
}

func (d *Daemon) releaseLock() {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}
