package archive

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a knowledge entry.
type Status string

const (
	StatusPending      Status = "pending"
	StatusTranscribing Status = "transcribing"
	StatusTranscribed  Status = "transcribed"
	StatusSymbolizing  Status = "symbolizing"
	StatusSymbolized   Status = "symbolized"
	StatusValidated    Status = "validated"
	StatusAnchoring    Status = "anchoring"
	StatusAnchored     Status = "anchored"
	StatusRejected     Status = "rejected"
)

var allStatuses = []Status{
	StatusPending,
	StatusTranscribing,
	StatusTranscribed,
	StatusSymbolizing,
	StatusSymbolized,
	StatusValidated,
	StatusAnchoring,
	StatusAnchored,
	StatusRejected,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// processingStatuses are the orchestrator's in-flight claims. An entry in
// one of these states is owned by exactly one worker and heartbeats until
// the stage resolves.
var processingStatuses = map[Status]struct{}{
	StatusTranscribing: {},
	StatusSymbolizing:  {},
	StatusAnchoring:    {},
}

// stableFor maps an in-flight claim back to the last stable stage the
// entry had reached. Failure handling and stale reclaim both roll back to
// this status so state can never be corrupted forward.
var stableFor = map[Status]Status{
	StatusTranscribing: StatusPending,
	StatusSymbolizing:  StatusTranscribed,
	StatusAnchoring:    StatusValidated,
}

// Decision is a validator's verdict on an entry.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// ParseDecision converts a string into a known Decision.
func ParseDecision(value string) (Decision, bool) {
	normalized := Decision(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case DecisionApproved, DecisionRejected:
		return normalized, true
	}
	return "", false
}

// Entry represents a knowledge submission persisted in SQLite.
//
// Content is never stored inline: ContentPointer addresses the original
// media in content-addressed storage, and Transcript/Atoms are derived by
// the pipeline. TxRef and LedgerEntryID are set only after successful
// anchoring.
type Entry struct {
	ID              int64
	Title           string
	Submitter       string
	Language        string
	License         string
	Community       string
	ContentPointer  string
	MetadataJSON    string
	Transcript      string
	DetectedLang    string
	DurationSeconds float64
	Atoms           []string
	Status          Status
	TxRef           string
	LedgerEntryID   string
	Attempts        int
	NotBefore       *time.Time
	NeedsReview     bool
	FailureReason   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastHeartbeat   *time.Time
}

// Validation is one validator's immutable decision on one entry.
// Conflict marks decisions recorded after the entry had already resolved;
// they are kept for audit and never change entry state.
type Validation struct {
	ID        int64
	EntryID   int64
	Validator string
	Decision  Decision
	Notes     string
	Conflict  bool
	CreatedAt time.Time
}

// Community is a governance scope: its validator set and rule
// configuration gate which entries may advance past symbolization.
type Community struct {
	Name             string
	Description      string
	DefaultLanguage  string
	Region           string
	Validators       []string
	AllowedLanguages []string
	SensitiveTerms   []string
	MinValidators    int
	AnchoringEnabled bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HealthSummary describes aggregated entry counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Awaiting   int
	Validated  int
	Rejected   int
	Anchored   int
	Review     int
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	if _, ok := statusSet[normalized]; !ok {
		return "", false
	}
	return normalized, true
}

// IsProcessing reports whether the entry is claimed by an in-flight worker.
func (e Entry) IsProcessing() bool {
	_, ok := processingStatuses[e.Status]
	return ok
}

// IsProcessingStatus reports whether a status reflects an in-flight claim.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsTerminal reports whether no further pipeline work can apply.
func (s Status) IsTerminal() bool {
	return s == StatusAnchored || s == StatusRejected
}

// StableStatus maps an in-flight claim to the last stable stage; stable
// statuses map to themselves.
func (s Status) StableStatus() Status {
	if stable, ok := stableFor[s]; ok {
		return stable
	}
	return s
}

// Phase is the coarse progress label shown to submitters.
func (s Status) Phase() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusTranscribing, StatusTranscribed, StatusSymbolizing, StatusSymbolized:
		return "processing"
	case StatusValidated, StatusAnchoring:
		return "validated"
	case StatusAnchored:
		return "anchored"
	case StatusRejected:
		return "rejected"
	default:
		return string(s)
	}
}

// SetFailure freezes the entry at its current stable stage with a human
// readable annotation. Status is rolled back by the caller via Transition.
func (e *Entry) SetFailure(reason string, review bool) {
	e.FailureReason = strings.TrimSpace(reason)
	e.NeedsReview = review
	e.LastHeartbeat = nil
}

// ClearFailure removes the failure annotation and retry gate so the entry
// re-enters its stage on the next poll.
func (e *Entry) ClearFailure() {
	e.FailureReason = ""
	e.NeedsReview = false
	e.Attempts = 0
	e.NotBefore = nil
}
