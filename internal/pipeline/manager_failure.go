package pipeline

import (
	"context"
	"errors"
	"time"

	"mila/internal/archive"
	"mila/internal/logging"
	"mila/internal/notifications"
	"mila/internal/services"
)

// Backoff growth is capped so the delay stays sane for best-effort lanes
// that retry indefinitely.
const maxBackoffExponent = 6

func (m *Manager) handleStageFailure(ctx context.Context, lane *laneState, stg pipelineStage, entry *archive.Entry, stageErr error) {
	logger := m.stageLogger(ctx, lane, m.logger, entry)

	message := services.Message(stageErr)
	if message == "" {
		message = stg.name + " failed without error detail"
	}

	rollback := *entry
	rollback.Status = stg.startStatus
	rollback.LastHeartbeat = nil
	rollback.Attempts = entry.Attempts + 1
	rollback.FailureReason = message

	transient := services.IsTransient(stageErr)
	exhausted := rollback.Attempts >= m.cfg.Workflow.JobAttempts

	switch {
	case lane != nil && lane.bestEffort:
		// Best-effort lanes keep the stable status and keep retrying
		// with backoff; they never freeze the entry for review.
		rollback.NeedsReview = false
		rollback.NotBefore = m.retryAt(rollback.Attempts)
		m.metrics.StageRetried(stg.name)
		logger.Warn("best-effort stage failed, will retry",
			logging.Error(stageErr),
			logging.Int("attempt", rollback.Attempts),
			logging.String(logging.FieldEventType, "stage_retry"),
		)
	case transient && !exhausted:
		rollback.NotBefore = m.retryAt(rollback.Attempts)
		m.metrics.StageRetried(stg.name)
		logger.Warn("stage failed, scheduling retry",
			logging.Error(stageErr),
			logging.Int("attempt", rollback.Attempts),
			logging.Int("attempt_cap", m.cfg.Workflow.JobAttempts),
			logging.String(logging.FieldEventType, "stage_retry"),
		)
	default:
		// Permanent failure or retry budget exhausted: freeze at the
		// last stable stage with the annotation for human triage.
		rollback.NeedsReview = true
		rollback.NotBefore = nil
		m.metrics.StageFailed(stg.name)
		logger.Error("stage failed, entry frozen for review",
			logging.Error(stageErr),
			logging.Int("attempt", rollback.Attempts),
			logging.Bool("transient", transient),
			logging.String("error_message", message),
			logging.String(logging.FieldEventType, "stage_failure"),
			logging.String(logging.FieldErrorHint, "inspect the failure reason, then clear the review flag to retry"),
		)
		m.notify(func(n notifications.Service) error {
			return n.NotifyEntryFrozen(ctx, entry.Title, message)
		})
	}

	if err := m.store.Transition(ctx, &rollback, stg.processingStatus); err != nil {
		switch {
		case errors.Is(err, archive.ErrStatusConflict):
			logger.Debug("failure rollback lost claim; entry already reclaimed")
		case errors.Is(err, context.Canceled):
			logger.Debug("daemon shutting down, could not persist stage failure")
		default:
			logger.Error("failed to persist stage failure", logging.Error(err))
		}
		return
	}
	m.setLastEntry(&rollback)
}

// retryAt computes the next eligible run time with exponential backoff.
func (m *Manager) retryAt(attempts int) *time.Time {
	backoff := time.Duration(m.cfg.Workflow.RetryBackoffSeconds) * time.Second
	if backoff <= 0 {
		return nil
	}
	exponent := attempts - 1
	if exponent < 0 {
		exponent = 0
	}
	if exponent > maxBackoffExponent {
		exponent = maxBackoffExponent
	}
	at := time.Now().UTC().Add(backoff << uint(exponent))
	return &at
}
