package archive

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrStatusConflict indicates a conditional transition found the entry in a
// different status than expected. Callers treat this as a benign no-op:
// under at-least-once delivery a duplicate job loses the compare-and-swap
// and must not advance or corrupt the entry.
var ErrStatusConflict = errors.New("entry status changed concurrently")

// Transition persists the entry with a status precondition: the write only
// applies when the stored status still equals from. All mutable fields of
// the entry are written together with the new status, making each stage
// transition a single atomic step.
func (s *Store) Transition(ctx context.Context, entry *Entry, from Status) error {
	if entry == nil {
		return errors.New("entry is nil")
	}
	entry.UpdatedAt = time.Now().UTC()
	args := append(entrySetArgs(entry), entry.ID, from)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE entries SET `+entrySetClause+` WHERE id = ? AND status = ?`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("transition entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrStatusConflict
	}
	return nil
}

// UpdateHeartbeat updates the last heartbeat timestamp for an in-flight entry.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	_, err := s.execWithRetry(
		ctx,
		`UPDATE entries SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStaleProcessing rolls in-flight claims whose heartbeats expired
// back to their stable stage so another worker can pick them up.
func (s *Store) ReclaimStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	now := time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE entries
        SET status = CASE status
            WHEN ? THEN ?
            WHEN ? THEN ?
            WHEN ? THEN ?
            ELSE status
        END,
            last_heartbeat = NULL, updated_at = ?
        WHERE status IN (?, ?, ?) AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		StatusTranscribing, StatusPending,
		StatusSymbolizing, StatusTranscribed,
		StatusAnchoring, StatusValidated,
		now.Format(time.RFC3339Nano),
		StatusTranscribing,
		StatusSymbolizing,
		StatusAnchoring,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale entries: %w", err)
	}
	return res.RowsAffected()
}

// ResetStuckProcessing rolls every in-flight claim back to its stable
// stage. Used at daemon startup to recover from an unclean shutdown.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE entries
         SET status = CASE status
             WHEN ? THEN ?
             WHEN ? THEN ?
             WHEN ? THEN ?
             ELSE status
         END,
             last_heartbeat = NULL, updated_at = ?
         WHERE status IN (?, ?, ?)`,
		StatusTranscribing, StatusPending,
		StatusSymbolizing, StatusTranscribed,
		StatusAnchoring, StatusValidated,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusTranscribing,
		StatusSymbolizing,
		StatusAnchoring,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck entries: %w", err)
	}
	return res.RowsAffected()
}

// RetryFrozen clears failure annotations and retry gates so frozen entries
// re-enter their stage. With no ids, every frozen entry is released.
func (s *Store) RetryFrozen(ctx context.Context, ids ...int64) (int64, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	if len(ids) == 0 {
		res, err := s.execWithRetry(
			ctx,
			`UPDATE entries
            SET needs_review = 0, failure_reason = NULL, attempts = 0, not_before = NULL, updated_at = ?
            WHERE needs_review = 1`,
			timestamp,
		)
		if err != nil {
			return 0, fmt.Errorf("retry frozen entries: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+1)
	args = append(args, timestamp)
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE entries
        SET needs_review = 0, failure_reason = NULL, attempts = 0, not_before = NULL, updated_at = ?
        WHERE id IN (`+placeholders+`) AND needs_review = 1`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("retry selected entries: %w", err)
	}
	return res.RowsAffected()
}
