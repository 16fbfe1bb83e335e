package api

import (
	"encoding/json"
	"slices"
	"time"

	"mila/internal/archive"
	"mila/internal/pipeline"
)

// FromEntry converts an archive record to its API representation.
func FromEntry(entry *archive.Entry) Entry {
	if entry == nil {
		return Entry{}
	}

	dto := Entry{
		ID:              entry.ID,
		Title:           entry.Title,
		Submitter:       entry.Submitter,
		Language:        entry.Language,
		License:         entry.License,
		Community:       entry.Community,
		ContentPointer:  entry.ContentPointer,
		Status:          string(entry.Status),
		Phase:           entry.Status.Phase(),
		Transcript:      entry.Transcript,
		DetectedLang:    entry.DetectedLang,
		DurationSeconds: entry.DurationSeconds,
		TxRef:           entry.TxRef,
		LedgerEntryID:   entry.LedgerEntryID,
		Attempts:        entry.Attempts,
		NeedsReview:     entry.NeedsReview,
		FailureReason:   entry.FailureReason,
	}
	if len(entry.Atoms) > 0 {
		dto.Atoms = slices.Clone(entry.Atoms)
	}
	if entry.NotBefore != nil {
		dto.NotBefore = FormatTime(*entry.NotBefore)
	}
	dto.CreatedAt = FormatTime(entry.CreatedAt)
	dto.UpdatedAt = FormatTime(entry.UpdatedAt)
	if raw := entry.MetadataJSON; raw != "" {
		dto.Metadata = json.RawMessage(raw)
	}
	return dto
}

// FromEntries converts a slice of archive records into API DTOs.
func FromEntries(entries []*archive.Entry) []Entry {
	if len(entries) == 0 {
		return nil
	}
	out := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, FromEntry(entry))
	}
	return out
}

// FromValidation converts a validator decision record to an API DTO.
func FromValidation(v *archive.Validation) Validation {
	if v == nil {
		return Validation{}
	}
	return Validation{
		ID:        v.ID,
		EntryID:   v.EntryID,
		Validator: v.Validator,
		Decision:  string(v.Decision),
		Notes:     v.Notes,
		Conflict:  v.Conflict,
		CreatedAt: FormatTime(v.CreatedAt),
	}
}

// FromValidations converts validator decisions into API DTOs.
func FromValidations(records []*archive.Validation) []Validation {
	if len(records) == 0 {
		return nil
	}
	out := make([]Validation, 0, len(records))
	for _, record := range records {
		out = append(out, FromValidation(record))
	}
	return out
}

// FromCommunity converts a community record to an API DTO.
func FromCommunity(c *archive.Community) Community {
	if c == nil {
		return Community{}
	}
	return Community{
		Name:             c.Name,
		Description:      c.Description,
		DefaultLanguage:  c.DefaultLanguage,
		Region:           c.Region,
		Validators:       slices.Clone(c.Validators),
		AllowedLanguages: slices.Clone(c.AllowedLanguages),
		SensitiveTerms:   slices.Clone(c.SensitiveTerms),
		MinValidators:    c.MinValidators,
		AnchoringEnabled: c.AnchoringEnabled,
		CreatedAt:        FormatTime(c.CreatedAt),
		UpdatedAt:        FormatTime(c.UpdatedAt),
	}
}

// FromCommunities converts community records into API DTOs.
func FromCommunities(records []*archive.Community) []Community {
	if len(records) == 0 {
		return nil
	}
	out := make([]Community, 0, len(records))
	for _, record := range records {
		out = append(out, FromCommunity(record))
	}
	return out
}

// FromStatusSummary converts a pipeline status summary to an API payload.
func FromStatusSummary(summary pipeline.StatusSummary) PipelineStatus {
	healthNames := make([]string, 0, len(summary.StageHealth))
	for name := range summary.StageHealth {
		healthNames = append(healthNames, name)
	}
	slices.Sort(healthNames)

	health := make([]StageHealth, 0, len(healthNames))
	for _, name := range healthNames {
		h := summary.StageHealth[name]
		health = append(health, StageHealth{Name: name, Ready: h.Ready, Detail: h.Detail})
	}

	stats := make(map[string]int, len(summary.ArchiveStats))
	for status, count := range summary.ArchiveStats {
		stats[string(status)] = count
	}

	status := PipelineStatus{
		Running:      summary.Running,
		ArchiveStats: stats,
		StageHealth:  health,
	}
	if len(summary.Metrics) > 0 {
		metrics := make(map[string]StageMetrics, len(summary.Metrics))
		for name, m := range summary.Metrics {
			metrics[name] = StageMetrics{
				Started:     m.Started,
				Completed:   m.Completed,
				Failed:      m.Failed,
				Retried:     m.Retried,
				TotalMillis: m.TotalTime.Milliseconds(),
			}
		}
		status.Metrics = metrics
	}
	if summary.LastError != "" {
		status.LastError = summary.LastError
	}
	if summary.LastEntry != nil {
		last := FromEntry(summary.LastEntry)
		status.LastEntry = &last
	}
	return status
}

// MergeArchiveStats produces a string-keyed representation of entry stats.
func MergeArchiveStats(stats map[archive.Status]int) map[string]int {
	out := make(map[string]int, len(stats))
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

// FormatTime converts a time to RFC3339 or returns an empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
