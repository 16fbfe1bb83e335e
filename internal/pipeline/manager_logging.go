package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"mila/internal/archive"
	"mila/internal/logging"
)

func (m *Manager) laneLogger(lane *laneState) *slog.Logger {
	if m.logger == nil {
		return logging.NewNop()
	}
	return m.logger.With(
		logging.String(logging.FieldComponent, fmt.Sprintf("pipeline-%s-runner", lane.name)),
		logging.String(logging.FieldLane, lane.name),
	)
}

func (m *Manager) stageLogger(ctx context.Context, lane *laneState, base *slog.Logger, entry *archive.Entry) *slog.Logger {
	if base == nil {
		base = m.logger
	}
	if base == nil {
		base = logging.NewNop()
	}
	if entry != nil {
		base = base.With(logging.Int64(logging.FieldEntryID, entry.ID))
	}
	return logging.WithContext(ctx, base)
}
