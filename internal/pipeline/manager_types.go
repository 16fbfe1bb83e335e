package pipeline

import (
	"log/slog"

	"mila/internal/archive"
	"mila/internal/stage"
)

// StageSet bundles the concrete stage handlers the manager orchestrates.
type StageSet struct {
	Transcriber stage.Handler
	Symbolizer  stage.Handler
	Anchorer    stage.Handler
}

type pipelineStage struct {
	name             string
	handler          stage.Handler
	startStatus      archive.Status
	processingStatus archive.Status
	doneStatus       archive.Status
}

type laneKind string

const (
	laneProcessing laneKind = "processing"
	laneAnchoring  laneKind = "anchoring"
)

type laneState struct {
	kind         laneKind
	name         string
	stages       []pipelineStage
	statusOrder  []archive.Status
	stageByStart map[archive.Status]pipelineStage
	logger       *slog.Logger
	// bestEffort lanes never freeze entries for review: failures are
	// annotated and retried with backoff indefinitely while the entry
	// keeps its stable status.
	bestEffort bool
	// runReclaimer marks the single lane that rolls stale claims back to
	// their stable status. Only one lane polls the reclaimer so the
	// archive is not scanned once per lane per poll interval.
	runReclaimer bool
}

type loggerAware interface {
	SetLogger(*slog.Logger)
}

func (l *laneState) finalize() {
	if l == nil {
		return
	}
	l.stageByStart = make(map[archive.Status]pipelineStage, len(l.stages))
	l.statusOrder = make([]archive.Status, 0, len(l.stages))
	for _, stg := range l.stages {
		l.stageByStart[stg.startStatus] = stg
		l.statusOrder = append(l.statusOrder, stg.startStatus)
	}
}

func (l *laneState) stageForStatus(status archive.Status) (pipelineStage, bool) {
	if l == nil {
		return pipelineStage{}, false
	}
	stg, ok := l.stageByStart[status]
	return stg, ok
}

// ConfigureStages registers the concrete stage handlers the pipeline runs.
func (m *Manager) ConfigureStages(set StageSet) {
	processing := &laneState{kind: laneProcessing, name: "processing"}
	anchoring := &laneState{kind: laneAnchoring, name: "anchoring", bestEffort: true}

	if set.Transcriber != nil {
		processing.stages = append(processing.stages, pipelineStage{
			name:             "transcription",
			handler:          set.Transcriber,
			startStatus:      archive.StatusPending,
			processingStatus: archive.StatusTranscribing,
			doneStatus:       archive.StatusTranscribed,
		})
	}
	if set.Symbolizer != nil {
		processing.stages = append(processing.stages, pipelineStage{
			name:             "symbolization",
			handler:          set.Symbolizer,
			startStatus:      archive.StatusTranscribed,
			processingStatus: archive.StatusSymbolizing,
			doneStatus:       archive.StatusSymbolized,
		})
	}
	if set.Anchorer != nil {
		anchoring.stages = append(anchoring.stages, pipelineStage{
			name:             "anchoring",
			handler:          set.Anchorer,
			startStatus:      archive.StatusValidated,
			processingStatus: archive.StatusAnchoring,
			doneStatus:       archive.StatusAnchored,
		})
	}

	lanes := make(map[laneKind]*laneState)
	order := make([]laneKind, 0, 2)
	if len(processing.stages) > 0 {
		processing.finalize()
		processing.runReclaimer = true
		lanes[processing.kind] = processing
		order = append(order, processing.kind)
	}
	if len(anchoring.stages) > 0 {
		anchoring.finalize()
		anchoring.runReclaimer = len(processing.stages) == 0
		lanes[anchoring.kind] = anchoring
		order = append(order, anchoring.kind)
	}

	m.mu.Lock()
	m.lanes = lanes
	m.laneOrder = order
	m.mu.Unlock()
}
