package pipeline

import (
	"sync"
	"time"
)

// MetricsSink receives stage lifecycle events. The daemon aggregates the
// default in-memory implementation into its status output; deployments can
// inject their own sink instead.
type MetricsSink interface {
	StageStarted(stage string)
	StageCompleted(stage string, duration time.Duration)
	StageFailed(stage string)
	StageRetried(stage string)
	Snapshot() map[string]StageMetrics
}

// StageMetrics aggregates one stage's counters.
type StageMetrics struct {
	Started   int64         `json:"started"`
	Completed int64         `json:"completed"`
	Failed    int64         `json:"failed"`
	Retried   int64         `json:"retried"`
	TotalTime time.Duration `json:"total_time"`
}

// Metrics is the default in-memory sink. A nil *Metrics drops every event.
type Metrics struct {
	mu     sync.Mutex
	stages map[string]StageMetrics
}

// NewMetrics creates an empty in-memory sink.
func NewMetrics() *Metrics {
	return &Metrics{stages: make(map[string]StageMetrics)}
}

func (m *Metrics) StageStarted(stage string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stages[stage]
	s.Started++
	m.stages[stage] = s
}

func (m *Metrics) StageCompleted(stage string, duration time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stages[stage]
	s.Completed++
	s.TotalTime += duration
	m.stages[stage] = s
}

func (m *Metrics) StageFailed(stage string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stages[stage]
	s.Failed++
	m.stages[stage] = s
}

func (m *Metrics) StageRetried(stage string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stages[stage]
	s.Retried++
	m.stages[stage] = s
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() map[string]StageMetrics {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]StageMetrics, len(m.stages))
	for name, s := range m.stages {
		out[name] = s
	}
	return out
}
