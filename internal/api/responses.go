package api

import "mila/internal/consensus"

// DaemonStatus is the full status payload served by the daemon.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	ArchivePath  string         `json:"archivePath,omitempty"`
	LockFilePath string         `json:"lockFilePath,omitempty"`
	Pipeline     PipelineStatus `json:"pipeline"`
}

// EntryListResponse wraps entry collections returned by the API.
type EntryListResponse struct {
	Entries []Entry `json:"entries"`
}

// EntryResponse wraps a single entry with its recorded validations.
type EntryResponse struct {
	Entry       Entry        `json:"entry"`
	Validations []Validation `json:"validations,omitempty"`
}

// SubmitResponse wraps a freshly accepted submission.
type SubmitResponse struct {
	Entry Entry `json:"entry"`
}

// RetryResponse reports how many frozen entries were released.
type RetryResponse struct {
	Released int64 `json:"released"`
}

// ValidationOutcome reports what a submitted decision did to an entry.
type ValidationOutcome struct {
	Entry      Entry      `json:"entry"`
	Validation Validation `json:"validation"`
	Resolved   bool       `json:"resolved"`
	Conflict   bool       `json:"conflict"`
}

// BulkValidationResult pairs one entry ID with its outcome or error.
type BulkValidationResult struct {
	EntryID int64              `json:"entryId"`
	Outcome *ValidationOutcome `json:"outcome,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// BulkValidationResponse wraps per-entry results of a batch decision.
type BulkValidationResponse struct {
	Results []BulkValidationResult `json:"results"`
}

// CommunityListResponse wraps community collections returned by the API.
type CommunityListResponse struct {
	Communities []Community `json:"communities"`
}

// CommunityResponse wraps a single community.
type CommunityResponse struct {
	Community Community `json:"community"`
}

// FromOutcome converts a consensus outcome to its API representation.
func FromOutcome(outcome *consensus.Outcome) *ValidationOutcome {
	if outcome == nil {
		return nil
	}
	return &ValidationOutcome{
		Entry:      FromEntry(outcome.Entry),
		Validation: FromValidation(outcome.Validation),
		Resolved:   outcome.Resolved,
		Conflict:   outcome.Conflict,
	}
}
