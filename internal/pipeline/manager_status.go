package pipeline

import (
	"context"

	"mila/internal/archive"
	"mila/internal/logging"
	"mila/internal/stage"
)

// StatusSummary represents lightweight pipeline diagnostics.
type StatusSummary struct {
	Running      bool
	LastError    string
	LastEntry    *archive.Entry
	ArchiveStats map[archive.Status]int
	StageHealth  map[string]stage.Health
	Metrics      map[string]StageMetrics
}

// Status returns the latest pipeline information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	lastEntry := m.lastEntry
	stages := make([]pipelineStage, 0)
	for _, kind := range m.laneOrder {
		lane := m.lanes[kind]
		if lane == nil {
			continue
		}
		stages = append(stages, lane.stages...)
	}
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil && m.logger != nil {
		m.logger.Warn("failed to read archive stats", logging.Error(err))
	}

	health := make(map[string]stage.Health, len(stages))
	for _, stg := range stages {
		if stg.handler == nil {
			continue
		}
		health[stg.name] = stg.handler.HealthCheck(ctx)
	}

	summary := StatusSummary{
		Running:      running,
		ArchiveStats: stats,
		StageHealth:  health,
		Metrics:      m.metrics.Snapshot(),
	}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastEntry != nil {
		copied := *lastEntry
		summary.LastEntry = &copied
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastEntry(entry *archive.Entry) {
	m.mu.Lock()
	if entry != nil {
		copied := *entry
		m.lastEntry = &copied
	} else {
		m.lastEntry = nil
	}
	m.mu.Unlock()
}
