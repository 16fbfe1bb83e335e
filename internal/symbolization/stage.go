// Package symbolization implements the pipeline stage that extracts
// structured facts from a transcript and gates them on the owning
// community's rules.
package symbolization

import (
	"context"
	"fmt"
	"strings"

	"log/slog"

	"mila/internal/archive"
	"mila/internal/config"
	"mila/internal/logging"
	"mila/internal/rules"
	"mila/internal/services"
	"mila/internal/services/symbolizer"
	"mila/internal/stage"
)

// Extractor produces structured facts from a transcript.
type Extractor interface {
	ExtractAtoms(ctx context.Context, transcript, extractionContext string) (symbolizer.Result, error)
}

// CommunitySource resolves a community profile by name. The cached
// communities view satisfies this.
type CommunitySource interface {
	Get(ctx context.Context, name string) (*archive.Community, error)
}

// Stage runs fact extraction and then the community rule check. A rule
// violation is a permanent failure: the entry stays at its last stable
// status with the violations recorded for human review.
type Stage struct {
	cfg         *config.Config
	logger      *slog.Logger
	client      Extractor
	communities CommunitySource
}

// NewStage constructs the symbolization stage.
func NewStage(cfg *config.Config, logger *slog.Logger, client Extractor, communities CommunitySource) *Stage {
	return &Stage{
		cfg:         cfg,
		logger:      logging.NewComponentLogger(logger, "symbolization"),
		client:      client,
		communities: communities,
	}
}

// SetLogger routes stage logs into an entry-scoped logger.
func (s *Stage) SetLogger(logger *slog.Logger) {
	if s == nil {
		return
	}
	s.logger = logging.NewComponentLogger(logger, "symbolization")
}

// Prepare validates the stage's wiring and that a transcript exists.
func (s *Stage) Prepare(ctx context.Context, entry *archive.Entry) error {
	if s == nil || s.cfg == nil || s.client == nil {
		return services.Wrap(services.ErrConfiguration, "symbolization", "prepare", "symbolization stage is not configured", nil)
	}
	if entry == nil {
		return services.Wrap(services.ErrValidation, "symbolization", "prepare", "entry is nil", nil)
	}
	if strings.TrimSpace(entry.Transcript) == "" {
		return services.Wrap(services.ErrValidation, "symbolization", "prepare", "entry has no transcript", nil)
	}
	return nil
}

// Execute extracts atoms and applies the community rule gate. Atoms are
// assigned, not appended, so duplicate delivery never duplicates facts.
func (s *Stage) Execute(ctx context.Context, entry *archive.Entry) error {
	if err := s.Prepare(ctx, entry); err != nil {
		return err
	}
	logger := logging.WithContext(ctx, s.logger)

	var community *archive.Community
	if s.communities != nil && strings.TrimSpace(entry.Community) != "" {
		var err error
		community, err = s.communities.Get(ctx, entry.Community)
		if err != nil {
			return services.Wrap(services.ErrTransient, "symbolization", "execute", "load community profile", err)
		}
	}

	result, err := s.client.ExtractAtoms(ctx, entry.Transcript, extractionContext(entry))
	if err != nil {
		return err
	}
	logger.Debug("atoms extracted", logging.Int("atoms", len(result.Atoms)))

	verdict := rules.Evaluate(rules.FactsFor(entry), community)
	if !verdict.Pass {
		detail := strings.Join(verdict.Violations, "; ")
		logger.Warn("community rules rejected entry",
			logging.String("violations", detail),
			logging.String(logging.FieldEventType, "rule_violation"),
			logging.String(logging.FieldErrorHint, "review the entry against the community profile"))
		return services.Wrap(services.ErrValidation, "symbolization", "rule-check",
			fmt.Sprintf("community rules not met: %s", detail), nil)
	}

	entry.Atoms = result.Atoms
	logger.Info("symbolization complete", logging.Int("atoms", len(result.Atoms)))
	return nil
}

// HealthCheck reports stage readiness.
func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	const name = "symbolization"
	if s == nil || s.cfg == nil {
		return stage.Unhealthy(name, "stage not configured")
	}
	if strings.TrimSpace(s.cfg.Symbolizer.BaseURL) == "" {
		return stage.Unhealthy(name, "symbolizer base URL missing")
	}
	return stage.Healthy(name)
}

// extractionContext packs the hints the extraction model uses alongside the
// transcript.
func extractionContext(entry *archive.Entry) string {
	parts := make([]string, 0, 3)
	if entry.Community != "" {
		parts = append(parts, "community="+entry.Community)
	}
	lang := entry.DetectedLang
	if lang == "" {
		lang = entry.Language
	}
	if lang != "" {
		parts = append(parts, "language="+lang)
	}
	if entry.Title != "" {
		parts = append(parts, "title="+entry.Title)
	}
	return strings.Join(parts, " ")
}
