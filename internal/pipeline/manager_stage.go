package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mila/internal/archive"
	"mila/internal/logging"
	"mila/internal/notifications"
	"mila/internal/services"
)

func (m *Manager) processEntry(ctx context.Context, lane *laneState, laneLogger *slog.Logger, entry *archive.Entry) error {
	stg, ok := lane.stageForStatus(entry.Status)
	if !ok {
		if laneLogger == nil {
			laneLogger = logging.NewNop()
		}
		laneLogger.Warn("no stage configured for status", logging.String("status", string(entry.Status)))
		m.waitForEntryOrShutdown(ctx)
		return nil
	}

	requestID := uuid.NewString()
	stageCtx := withStageContext(ctx, lane, stg.name, entry, requestID)
	stageLogger := m.stageLogger(stageCtx, lane, laneLogger, entry)
	if aware, ok := stg.handler.(loggerAware); ok {
		aware.SetLogger(stageLogger)
	}

	if err := m.claim(stageCtx, stg, entry); err != nil {
		if errors.Is(err, archive.ErrStatusConflict) {
			// Another worker advanced the entry first; duplicate
			// delivery is expected under at-least-once semantics.
			stageLogger.Debug("entry claimed elsewhere, skipping",
				logging.String(logging.FieldEventType, "claim_lost"))
			return nil
		}
		stageLogger.Error("failed to claim entry", logging.Error(err))
		m.setLastError(err)
		return err
	}

	return m.executeStage(stageCtx, lane, stageLogger, stg, entry)
}

// claim moves the entry from its start status to the stage's in-flight
// status via compare-and-swap. Losing the swap means the entry is no
// longer in the expected precondition state.
func (m *Manager) claim(ctx context.Context, stg pipelineStage, entry *archive.Entry) error {
	now := time.Now().UTC()
	entry.Status = stg.processingStatus
	entry.LastHeartbeat = &now
	if err := m.store.Transition(ctx, entry, stg.startStatus); err != nil {
		return err
	}
	m.setLastEntry(entry)
	return nil
}

func (m *Manager) executeStage(ctx context.Context, lane *laneState, stageLogger *slog.Logger, stg pipelineStage, entry *archive.Entry) error {
	stageStart := time.Now()
	stageLogger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("processing_status", string(stg.processingStatus)),
		logging.String("title", strings.TrimSpace(entry.Title)),
		logging.Int("attempt", entry.Attempts+1),
	)
	m.metrics.StageStarted(stg.name)

	if err := stg.handler.Prepare(ctx, entry); err != nil {
		m.handleStageFailure(ctx, lane, stg, entry, err)
		m.setLastError(err)
		return err
	}

	execErr := m.executeWithHeartbeat(ctx, stg, entry)
	if execErr != nil {
		if errors.Is(execErr, context.Canceled) {
			stageLogger.Debug("stage interrupted by shutdown")
			return execErr
		}
		m.handleStageFailure(ctx, lane, stg, entry, execErr)
		m.setLastError(execErr)
		return execErr
	}

	entry.Status = stg.doneStatus
	entry.LastHeartbeat = nil
	entry.Attempts = 0
	entry.NotBefore = nil
	entry.ClearFailure()
	if err := m.store.Transition(ctx, entry, stg.processingStatus); err != nil {
		if errors.Is(err, archive.ErrStatusConflict) {
			// The claim expired and was reclaimed while we ran. The
			// other worker's result stands.
			stageLogger.Warn("stage result discarded after losing claim",
				logging.String(logging.FieldEventType, "claim_lost"))
			return nil
		}
		wrapped := fmt.Errorf("persist stage result: %w", err)
		stageLogger.Error("failed to persist stage result", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}

	m.metrics.StageCompleted(stg.name, time.Since(stageStart))
	if entry.Status == archive.StatusAnchored {
		m.notify(func(n notifications.Service) error {
			return n.NotifyEntryAnchored(ctx, entry.Title, entry.TxRef)
		})
	}
	stageLogger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_status", string(entry.Status)),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)
	m.setLastEntry(entry)
	return nil
}

// executeWithHeartbeat runs the handler under the per-attempt timeout while
// a background loop keeps the entry's heartbeat fresh.
func (m *Manager) executeWithHeartbeat(ctx context.Context, stg pipelineStage, entry *archive.Entry) error {
	execCtx := ctx
	if timeout := time.Duration(m.cfg.Workflow.StageTimeoutSeconds) * time.Second; timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, entry.ID)

	execErr := stg.handler.Execute(execCtx, entry)
	hbCancel()
	hbWG.Wait()

	if execErr != nil && errors.Is(execErr, context.DeadlineExceeded) && ctx.Err() == nil {
		return services.Wrap(services.ErrTimeout, stg.name, "execute", "stage attempt timed out", execErr)
	}
	return execErr
}

func withStageContext(ctx context.Context, lane *laneState, stageName string, entry *archive.Entry, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if entry != nil {
		ctx = services.WithEntryID(ctx, entry.ID)
	}
	if stageName != "" {
		ctx = services.WithStage(ctx, stageName)
	}
	if lane != nil {
		ctx = services.WithLane(ctx, lane.name)
	}
	if requestID != "" {
		ctx = services.WithRequestID(ctx, requestID)
	}
	return ctx
}
