// Package daemonrun wires configuration, storage, adapters, and the
// pipeline into a running daemon process.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"mila/internal/anchoring"
	"mila/internal/archive"
	"mila/internal/cache"
	"mila/internal/config"
	"mila/internal/consensus"
	"mila/internal/daemon"
	"mila/internal/logging"
	"mila/internal/notifications"
	"mila/internal/pipeline"
	"mila/internal/services/ledger"
	"mila/internal/services/storage"
	"mila/internal/services/symbolizer"
	"mila/internal/services/transcriber"
	"mila/internal/symbolization"
	"mila/internal/transcription"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the mila daemon runtime loop and blocks until the context is
// cancelled or a termination signal arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("mila-%s.log", runID))
	logger, err := logging.New(logging.Options{
		Level:            resolveLevel(opts.LogLevel, cfg),
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update mila.log link: %v\n", err)
	}
	pidPath := filepath.Join(cfg.Paths.LogDir, "mila.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := archive.Open(cfg)
	if err != nil {
		logger.Error("open archive store", logging.Error(err))
		return err
	}
	defer store.Close()

	notifier := notifications.NewService(cfg)

	// One communities source is shared by the symbolization stage, the
	// consensus engine, and the API handlers so profile writes invalidate
	// every cached reader at once.
	communities := communitySource(cfg, store, logger)

	manager := pipeline.NewManager(cfg, store, logger)
	manager.SetNotifier(notifier)
	registerStages(manager, cfg, logger, communities)

	engine, err := consensus.NewEngine(cfg, store, communities, ledger.NewConfiguredClient(cfg), logger)
	if err != nil {
		return fmt.Errorf("create consensus engine: %w", err)
	}
	engine.SetNotifier(notifier)

	d, err := daemon.New(cfg, store, logger, manager, engine, communities)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check configuration and archive database access"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("mila daemon shutting down")
	return nil
}

func registerStages(mgr *pipeline.Manager, cfg *config.Config, logger *slog.Logger, communities *cache.Communities) {
	if mgr == nil || cfg == nil {
		return
	}

	content := storage.NewConfiguredClient(cfg)
	set := pipeline.StageSet{
		Transcriber: transcription.NewStage(cfg, logger, content, transcriber.NewConfiguredClient(cfg)),
		Symbolizer:  symbolization.NewStage(cfg, logger, symbolizer.NewConfiguredClient(cfg), communities),
	}
	if cfg.Ledger.Enabled {
		set.Anchorer = anchoring.NewStage(cfg, logger, ledger.NewConfiguredClient(cfg))
	}
	mgr.ConfigureStages(set)
}

// communitySource returns community lookups memoized per the cache
// configuration, or direct store reads when caching is disabled.
func communitySource(cfg *config.Config, store *archive.Store, logger *slog.Logger) *cache.Communities {
	var memo *cache.Cache
	ttl := time.Duration(cfg.Cache.TTLSeconds) * time.Second
	if cfg.Cache.Enabled {
		memo = cache.New(logger)
	}
	return cache.NewCommunities(store, memo, ttl)
}

func resolveLevel(flagLevel string, cfg *config.Config) string {
	if flagLevel != "" {
		return flagLevel
	}
	return cfg.Logging.Level
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "mila.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
