package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Entry describes an archive entry in a transport-friendly format.
type Entry struct {
	ID              int64           `json:"id"`
	Title           string          `json:"title"`
	Submitter       string          `json:"submitter"`
	Language        string          `json:"language"`
	License         string          `json:"license,omitempty"`
	Community       string          `json:"community"`
	ContentPointer  string          `json:"contentPointer"`
	Status          string          `json:"status"`
	Phase           string          `json:"phase"`
	Transcript      string          `json:"transcript,omitempty"`
	DetectedLang    string          `json:"detectedLanguage,omitempty"`
	DurationSeconds float64         `json:"durationSeconds,omitempty"`
	Atoms           []string        `json:"atoms,omitempty"`
	TxRef           string          `json:"txRef,omitempty"`
	LedgerEntryID   string          `json:"ledgerEntryId,omitempty"`
	Attempts        int             `json:"attempts,omitempty"`
	NotBefore       string          `json:"notBefore,omitempty"`
	NeedsReview     bool            `json:"needsReview"`
	FailureReason   string          `json:"failureReason,omitempty"`
	CreatedAt       string          `json:"createdAt,omitempty"`
	UpdatedAt       string          `json:"updatedAt,omitempty"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
}

// Validation describes a recorded validator decision.
type Validation struct {
	ID        int64  `json:"id"`
	EntryID   int64  `json:"entryId"`
	Validator string `json:"validator"`
	Decision  string `json:"decision"`
	Notes     string `json:"notes,omitempty"`
	Conflict  bool   `json:"conflict"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// Community describes a governance scope and its rule configuration.
type Community struct {
	Name             string   `json:"name"`
	Description      string   `json:"description,omitempty"`
	DefaultLanguage  string   `json:"defaultLanguage,omitempty"`
	Region           string   `json:"region,omitempty"`
	Validators       []string `json:"validators,omitempty"`
	AllowedLanguages []string `json:"allowedLanguages,omitempty"`
	SensitiveTerms   []string `json:"sensitiveTerms,omitempty"`
	MinValidators    int      `json:"minValidators"`
	AnchoringEnabled bool     `json:"anchoringEnabled"`
	CreatedAt        string   `json:"createdAt,omitempty"`
	UpdatedAt        string   `json:"updatedAt,omitempty"`
}

// PipelineStatus summarizes pipeline execution state.
type PipelineStatus struct {
	Running      bool                    `json:"running"`
	ArchiveStats map[string]int          `json:"archiveStats"`
	LastError    string                  `json:"lastError,omitempty"`
	LastEntry    *Entry                  `json:"lastEntry,omitempty"`
	StageHealth  []StageHealth           `json:"stageHealth"`
	Metrics      map[string]StageMetrics `json:"metrics,omitempty"`
}

// StageHealth mirrors readiness reporting for pipeline stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// StageMetrics reports per-stage execution counters.
type StageMetrics struct {
	Started     int64 `json:"started"`
	Completed   int64 `json:"completed"`
	Failed      int64 `json:"failed"`
	Retried     int64 `json:"retried"`
	TotalMillis int64 `json:"totalMillis"`
}

// RuleCheck is the outcome of a dry-run rule evaluation.
type RuleCheck struct {
	Community  string   `json:"community"`
	Pass       bool     `json:"pass"`
	Violations []string `json:"violations,omitempty"`
}
