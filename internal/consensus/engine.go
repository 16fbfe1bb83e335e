// Package consensus collects validator decisions and resolves symbolized
// entries into validated or rejected according to the configured policy.
package consensus

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"log/slog"

	"mila/internal/archive"
	"mila/internal/config"
	"mila/internal/logging"
	"mila/internal/notifications"
	"mila/internal/services"
	"mila/internal/services/ledger"
)

// CommunitySource resolves a community profile by name.
type CommunitySource interface {
	Get(ctx context.Context, name string) (*archive.Community, error)
}

// DecisionRecorder writes consensus outcomes to the ledger. Best-effort:
// the engine logs failures and moves on.
type DecisionRecorder interface {
	Enabled() bool
	RecordDecision(ctx context.Context, ledgerEntryID string, approved bool) (ledger.Receipt, error)
}

// Outcome reports what one submitted decision did to an entry.
type Outcome struct {
	Entry      *archive.Entry
	Validation *archive.Validation
	// Resolved is true when this submission moved the entry to validated
	// or rejected.
	Resolved bool
	// Conflict is true when the entry had already resolved and the
	// decision was stored for audit only.
	Conflict bool
}

// Engine applies validator decisions against the archive.
type Engine struct {
	store       *archive.Store
	communities CommunitySource
	recorder    DecisionRecorder
	policy      Policy
	notifier    notifications.Service
	logger      *slog.Logger
}

// NewEngine constructs a consensus engine with the policy named in config.
func NewEngine(cfg *config.Config, store *archive.Store, communities CommunitySource, recorder DecisionRecorder, logger *slog.Logger) (*Engine, error) {
	policyName := ""
	if cfg != nil {
		policyName = cfg.Consensus.Policy
	}
	policy, err := PolicyByName(policyName)
	if err != nil {
		return nil, err
	}
	return &Engine{
		store:       store,
		communities: communities,
		recorder:    recorder,
		policy:      policy,
		logger:      logging.NewComponentLogger(logger, "consensus"),
	}, nil
}

// Policy exposes the active decision policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

// SetNotifier attaches a push-notification sink for resolution events.
// A nil notifier leaves notifications disabled.
func (e *Engine) SetNotifier(notifier notifications.Service) {
	e.notifier = notifier
}

// Submit records one validator's decision. The entry must be symbolized;
// a decision arriving after the entry already resolved is stored with the
// conflict flag for audit and returns without error. Any other status is
// an invalid-state error.
func (e *Engine) Submit(ctx context.Context, entryID int64, validator string, decision archive.Decision, notes string) (*Outcome, error) {
	validator = strings.TrimSpace(validator)
	if validator == "" {
		return nil, services.Wrap(services.ErrValidation, "consensus", "submit", "validator identity is required", nil)
	}
	if decision != archive.DecisionApproved && decision != archive.DecisionRejected {
		return nil, services.Wrap(services.ErrValidation, "consensus", "submit", fmt.Sprintf("unknown decision %q", decision), nil)
	}

	entry, err := e.store.GetByID(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("load entry %d: %w", entryID, err)
	}
	if entry == nil {
		return nil, services.Wrap(services.ErrNotFound, "consensus", "submit", fmt.Sprintf("entry %d does not exist", entryID), nil)
	}

	logger := logging.WithContext(ctx, e.logger).With(
		logging.Int64(logging.FieldEntryID, entry.ID),
		logging.String("validator", validator),
	)

	switch entry.Status {
	case archive.StatusSymbolized:
		// Normal path below.
	case archive.StatusValidated, archive.StatusAnchoring, archive.StatusAnchored, archive.StatusRejected:
		return e.recordConflict(ctx, logger, entry, validator, decision, notes)
	default:
		return nil, services.Wrap(services.ErrInvalidState, "consensus", "submit",
			fmt.Sprintf("entry %d is %s, not awaiting validation", entry.ID, entry.Status), nil)
	}

	validation, err := e.store.AddValidation(ctx, &archive.Validation{
		EntryID:   entry.ID,
		Validator: validator,
		Decision:  decision,
		Notes:     notes,
	})
	if err != nil {
		if errors.Is(err, archive.ErrDuplicateValidator) {
			return nil, services.Wrap(services.ErrValidation, "consensus", "submit",
				fmt.Sprintf("validator %s already decided entry %d", validator, entry.ID), nil)
		}
		return nil, fmt.Errorf("record validation: %w", err)
	}
	logger.Info("validation recorded", logging.String("decision", string(decision)))

	verdict, err := e.evaluate(ctx, entry)
	if err != nil {
		return nil, err
	}
	if verdict == VerdictUndecided {
		return &Outcome{Entry: entry, Validation: validation}, nil
	}
	return e.resolve(ctx, logger, entry, validation, verdict)
}

// recordConflict stores a late decision for audit without touching state.
func (e *Engine) recordConflict(ctx context.Context, logger *slog.Logger, entry *archive.Entry, validator string, decision archive.Decision, notes string) (*Outcome, error) {
	validation, err := e.store.AddValidation(ctx, &archive.Validation{
		EntryID:   entry.ID,
		Validator: validator,
		Decision:  decision,
		Notes:     notes,
		Conflict:  true,
	})
	if err != nil {
		if errors.Is(err, archive.ErrDuplicateValidator) {
			return nil, services.Wrap(services.ErrValidation, "consensus", "submit",
				fmt.Sprintf("validator %s already decided entry %d", validator, entry.ID), nil)
		}
		return nil, fmt.Errorf("record conflicting validation: %w", err)
	}
	logger.Info("late validation stored for audit",
		logging.String("decision", string(decision)),
		logging.String("entry_status", string(entry.Status)),
		logging.String(logging.FieldEventType, "consensus_conflict"))
	return &Outcome{Entry: entry, Validation: validation, Conflict: true}, nil
}

// evaluate asks the policy for a verdict over the non-conflict decisions.
func (e *Engine) evaluate(ctx context.Context, entry *archive.Entry) (Verdict, error) {
	validations, err := e.store.ValidationsForEntry(ctx, entry.ID)
	if err != nil {
		return VerdictUndecided, fmt.Errorf("load validations: %w", err)
	}
	decisions := make([]archive.Decision, 0, len(validations))
	for _, v := range validations {
		if !v.Conflict {
			decisions = append(decisions, v.Decision)
		}
	}

	minValidators := 0
	if e.communities != nil && strings.TrimSpace(entry.Community) != "" {
		community, err := e.communities.Get(ctx, entry.Community)
		if err != nil {
			return VerdictUndecided, fmt.Errorf("load community %q: %w", entry.Community, err)
		}
		if community != nil {
			minValidators = community.MinValidators
		}
	}
	return e.policy.Decide(decisions, minValidators), nil
}

// resolve moves the entry out of symbolized via compare-and-swap. Losing
// the swap means another decision resolved the entry first; the stored
// validation then stands as an audit record of the race's loser.
func (e *Engine) resolve(ctx context.Context, logger *slog.Logger, entry *archive.Entry, validation *archive.Validation, verdict Verdict) (*Outcome, error) {
	target := archive.StatusValidated
	if verdict == VerdictRejected {
		target = archive.StatusRejected
	}
	updated := *entry
	updated.Status = target
	updated.ClearFailure()

	if err := e.store.Transition(ctx, &updated, archive.StatusSymbolized); err != nil {
		if errors.Is(err, archive.ErrStatusConflict) {
			logger.Info("entry resolved concurrently; decision kept for audit",
				logging.String(logging.FieldEventType, "consensus_conflict"))
			current, loadErr := e.store.GetByID(ctx, entry.ID)
			if loadErr != nil {
				return nil, fmt.Errorf("reload entry %d: %w", entry.ID, loadErr)
			}
			return &Outcome{Entry: current, Validation: validation, Conflict: true}, nil
		}
		return nil, fmt.Errorf("resolve entry %d: %w", entry.ID, err)
	}
	logger.Info("entry resolved",
		logging.String("status", string(target)),
		logging.String(logging.FieldEventType, "consensus_resolved"))

	if e.notifier != nil {
		var notifyErr error
		if target == archive.StatusValidated {
			notifyErr = e.notifier.NotifyEntryValidated(ctx, updated.Title, updated.Community)
		} else {
			notifyErr = e.notifier.NotifyEntryRejected(ctx, updated.Title, updated.Community)
		}
		if notifyErr != nil {
			logger.Debug("notification delivery failed", logging.Error(notifyErr))
		}
	}

	// A rejected entry that was already anchored gets its rejection
	// mirrored to the ledger. Approvals are mirrored by the anchoring
	// stage once the anchor transaction exists.
	if target == archive.StatusRejected && e.recorder != nil && e.recorder.Enabled() &&
		strings.TrimSpace(updated.LedgerEntryID) != "" {
		if _, err := e.recorder.RecordDecision(ctx, updated.LedgerEntryID, false); err != nil {
			logger.Warn("failed to mirror rejection to ledger", logging.Error(err))
		}
	}
	return &Outcome{Entry: &updated, Validation: validation, Resolved: true}, nil
}

// BatchResult reports one entry's outcome within a bulk submission.
type BatchResult struct {
	EntryID int64
	Outcome *Outcome
	Err     error
}

// SubmitBatch applies one decision to many entries. Items are independent;
// one failure never aborts the rest.
func (e *Engine) SubmitBatch(ctx context.Context, entryIDs []int64, validator string, decision archive.Decision, notes string) []BatchResult {
	results := make([]BatchResult, 0, len(entryIDs))
	for _, id := range entryIDs {
		outcome, err := e.Submit(ctx, id, validator, decision, notes)
		results = append(results, BatchResult{EntryID: id, Outcome: outcome, Err: err})
	}
	return results
}
