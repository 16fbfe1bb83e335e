// Package transcription implements the pipeline stage that turns a pending
// submission's media into a transcript.
package transcription

import (
	"context"
	"strings"

	"log/slog"

	"mila/internal/archive"
	"mila/internal/config"
	"mila/internal/logging"
	"mila/internal/services"
	"mila/internal/services/transcriber"
	"mila/internal/stage"
)

// ContentFetcher resolves a content pointer to its raw bytes.
type ContentFetcher interface {
	Fetch(ctx context.Context, pointer string) ([]byte, error)
}

// Transcriber produces a transcript from raw audio.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, language string) (transcriber.Result, error)
}

// Stage fetches the original content and runs it through the speech-to-text
// service. The manager persists results; Execute only mutates the entry.
type Stage struct {
	cfg     *config.Config
	logger  *slog.Logger
	fetcher ContentFetcher
	client  Transcriber
}

// NewStage constructs the transcription stage.
func NewStage(cfg *config.Config, logger *slog.Logger, fetcher ContentFetcher, client Transcriber) *Stage {
	return &Stage{
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, "transcription"),
		fetcher: fetcher,
		client:  client,
	}
}

// SetLogger routes stage logs into an entry-scoped logger.
func (s *Stage) SetLogger(logger *slog.Logger) {
	if s == nil {
		return
	}
	s.logger = logging.NewComponentLogger(logger, "transcription")
}

// Prepare validates the stage's wiring and the entry's content pointer.
func (s *Stage) Prepare(ctx context.Context, entry *archive.Entry) error {
	if s == nil || s.cfg == nil || s.client == nil || s.fetcher == nil {
		return services.Wrap(services.ErrConfiguration, "transcription", "prepare", "transcription stage is not configured", nil)
	}
	if entry == nil {
		return services.Wrap(services.ErrValidation, "transcription", "prepare", "entry is nil", nil)
	}
	if strings.TrimSpace(entry.ContentPointer) == "" {
		return services.Wrap(services.ErrValidation, "transcription", "prepare", "entry has no content pointer", nil)
	}
	return nil
}

// Execute transcribes the entry's content. Repeating a completed
// transcription overwrites the transcript with the same value, so duplicate
// delivery is harmless.
func (s *Stage) Execute(ctx context.Context, entry *archive.Entry) error {
	if err := s.Prepare(ctx, entry); err != nil {
		return err
	}
	logger := logging.WithContext(ctx, s.logger)

	content, err := s.fetcher.Fetch(ctx, entry.ContentPointer)
	if err != nil {
		return err
	}
	logger.Debug("fetched submission content",
		logging.String("content_pointer", entry.ContentPointer),
		logging.Int("bytes", len(content)))

	result, err := s.client.Transcribe(ctx, content, entry.Language)
	if err != nil {
		return err
	}

	entry.Transcript = result.Text
	entry.DetectedLang = result.DetectedLanguage
	entry.DurationSeconds = result.DurationSeconds

	logger.Info("transcription complete",
		logging.String("detected_language", result.DetectedLanguage),
		logging.Float64("duration_seconds", result.DurationSeconds),
		logging.Int("transcript_chars", len(result.Text)))

	if result.DetectedLanguage != "" && !strings.EqualFold(result.DetectedLanguage, entry.Language) {
		logger.Warn("detected language differs from declared language",
			logging.String("declared", entry.Language),
			logging.String("detected", result.DetectedLanguage),
			logging.String(logging.FieldEventType, "language_mismatch"))
	}
	return nil
}

// HealthCheck reports stage readiness.
func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	const name = "transcription"
	if s == nil || s.cfg == nil {
		return stage.Unhealthy(name, "stage not configured")
	}
	if strings.TrimSpace(s.cfg.Transcriber.BaseURL) == "" {
		return stage.Unhealthy(name, "transcriber base URL missing")
	}
	if strings.TrimSpace(s.cfg.Storage.GatewayURL) == "" {
		return stage.Unhealthy(name, "storage gateway URL missing")
	}
	return stage.Healthy(name)
}
