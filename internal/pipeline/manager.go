package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"mila/internal/archive"
	"mila/internal/config"
	"mila/internal/notifications"
)

// Manager coordinates entry processing using registered stage handlers.
type Manager struct {
	cfg          *config.Config
	store        *archive.Store
	logger       *slog.Logger
	pollInterval time.Duration
	metrics      MetricsSink
	notifier     notifications.Service

	heartbeat *HeartbeatMonitor

	lanes     map[laneKind]*laneState
	laneOrder []laneKind

	mu        sync.RWMutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	lastErr   error
	lastEntry *archive.Entry
}

// NewManager constructs a pipeline manager with the default in-memory
// metrics sink.
func NewManager(cfg *config.Config, store *archive.Store, logger *slog.Logger) *Manager {
	return NewManagerWithMetrics(cfg, store, logger, NewMetrics())
}

// NewManagerWithMetrics constructs a pipeline manager with a custom
// metrics sink.
func NewManagerWithMetrics(cfg *config.Config, store *archive.Store, logger *slog.Logger, metrics MetricsSink) *Manager {
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		metrics:      metrics,
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
		lanes: make(map[laneKind]*laneState),
	}
}

// Metrics exposes the manager's metrics sink.
func (m *Manager) Metrics() MetricsSink {
	return m.metrics
}

// SetNotifier attaches a push-notification sink. Must be called before
// Start; a nil notifier leaves notifications disabled.
func (m *Manager) SetNotifier(notifier notifications.Service) {
	m.notifier = notifier
}

func (m *Manager) notify(send func(notifications.Service) error) {
	if m.notifier == nil {
		return
	}
	if err := send(m.notifier); err != nil && m.logger != nil {
		m.logger.Debug("notification delivery failed", "error", err)
	}
}
