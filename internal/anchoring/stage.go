// Package anchoring implements the best-effort pipeline stage that records
// a validated entry on the ledger. Failures here never disturb the
// validated status; the entry simply stays eligible for a later attempt.
package anchoring

import (
	"context"
	"strings"

	"log/slog"

	"mila/internal/archive"
	"mila/internal/config"
	"mila/internal/logging"
	"mila/internal/services"
	"mila/internal/services/ledger"
	"mila/internal/stage"
)

// Anchorer records entries and decisions on the ledger.
type Anchorer interface {
	Enabled() bool
	Anchor(ctx context.Context, pointer, license string) (ledger.Receipt, error)
	RecordDecision(ctx context.Context, ledgerEntryID string, approved bool) (ledger.Receipt, error)
}

// Stage anchors validated entries.
type Stage struct {
	cfg    *config.Config
	logger *slog.Logger
	client Anchorer
}

// NewStage constructs the anchoring stage.
func NewStage(cfg *config.Config, logger *slog.Logger, client Anchorer) *Stage {
	return &Stage{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "anchoring"),
		client: client,
	}
}

// SetLogger routes stage logs into an entry-scoped logger.
func (s *Stage) SetLogger(logger *slog.Logger) {
	if s == nil {
		return
	}
	s.logger = logging.NewComponentLogger(logger, "anchoring")
}

// Prepare validates the stage's wiring.
func (s *Stage) Prepare(ctx context.Context, entry *archive.Entry) error {
	if s == nil || s.cfg == nil || s.client == nil || !s.client.Enabled() {
		return services.Wrap(services.ErrConfiguration, "anchoring", "prepare", "ledger is not configured", nil)
	}
	if entry == nil {
		return services.Wrap(services.ErrValidation, "anchoring", "prepare", "entry is nil", nil)
	}
	if strings.TrimSpace(entry.ContentPointer) == "" {
		return services.Wrap(services.ErrValidation, "anchoring", "prepare", "entry has no content pointer", nil)
	}
	return nil
}

// Execute anchors the entry's content pointer and then records the
// community's approval against the ledger entry. An entry that already
// carries a transaction reference skips the anchor call, so a retry after
// a failed decision write does not double-anchor.
func (s *Stage) Execute(ctx context.Context, entry *archive.Entry) error {
	if err := s.Prepare(ctx, entry); err != nil {
		return err
	}
	logger := logging.WithContext(ctx, s.logger)

	if strings.TrimSpace(entry.TxRef) == "" {
		receipt, err := s.client.Anchor(ctx, entry.ContentPointer, entry.License)
		if err != nil {
			return err
		}
		entry.TxRef = receipt.TxRef
		entry.LedgerEntryID = receipt.LedgerEntryID
		logger.Info("entry anchored",
			logging.String("tx_ref", receipt.TxRef),
			logging.String("ledger_entry_id", receipt.LedgerEntryID))
	}

	if strings.TrimSpace(entry.LedgerEntryID) != "" {
		if _, err := s.client.RecordDecision(ctx, entry.LedgerEntryID, true); err != nil {
			// The anchor itself succeeded; the decision write can be
			// repeated on the next attempt without re-anchoring.
			logger.Warn("failed to record decision on ledger",
				logging.Error(err),
				logging.String(logging.FieldEventType, "ledger_decision_failed"))
			return err
		}
	}
	return nil
}

// HealthCheck reports stage readiness.
func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	const name = "anchoring"
	if s == nil || s.cfg == nil {
		return stage.Unhealthy(name, "stage not configured")
	}
	if s.client == nil || !s.client.Enabled() {
		return stage.Unhealthy(name, "ledger disabled or missing gateway URL")
	}
	return stage.Healthy(name)
}
