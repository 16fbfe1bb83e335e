package consensus

import (
	"context"
	"errors"
	"testing"

	"mila/internal/archive"
	"mila/internal/services"
	"mila/internal/services/ledger"
	"mila/internal/testsupport"
)

type stubCommunities struct {
	community *archive.Community
}

func (s *stubCommunities) Get(ctx context.Context, name string) (*archive.Community, error) {
	return s.community, nil
}

type stubRecorder struct {
	enabled bool
	calls   int
	lastID  string
	lastOK  bool
}

func (s *stubRecorder) Enabled() bool { return s.enabled }

func (s *stubRecorder) RecordDecision(ctx context.Context, ledgerEntryID string, approved bool) (ledger.Receipt, error) {
	s.calls++
	s.lastID = ledgerEntryID
	s.lastOK = approved
	return ledger.Receipt{TxRef: "0xdecision"}, nil
}

func newEngine(t *testing.T, store *archive.Store, opts ...testsupport.ConfigOption) (*Engine, *stubRecorder) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	recorder := &stubRecorder{enabled: true}
	engine, err := NewEngine(cfg, store, &stubCommunities{}, recorder, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return engine, recorder
}

func symbolizedEntry(t *testing.T, store *archive.Store) *archive.Entry {
	t.Helper()
	entry := testsupport.NewEntry(t, store, "Herbal remedies", "QmTest123")
	entry.Transcript = "mwarubaini husaidia kuponya ngozi"
	entry.Atoms = []string{`(treats "mwarubaini" "ngozi")`}
	return testsupport.AdvanceTo(t, store, entry, archive.StatusSymbolized)
}

func TestSubmitApprovalValidatesEntry(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	engine, _ := newEngine(t, store)
	entry := symbolizedEntry(t, store)

	outcome, err := engine.Submit(context.Background(), entry.ID, "wanjiku", archive.DecisionApproved, "checked against elders")
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if !outcome.Resolved || outcome.Entry.Status != archive.StatusValidated {
		t.Fatalf("expected validated entry, got %+v", outcome.Entry)
	}

	validations, err := store.ValidationsForEntry(context.Background(), entry.ID)
	if err != nil {
		t.Fatalf("ValidationsForEntry: %v", err)
	}
	if len(validations) != 1 || validations[0].Conflict {
		t.Errorf("expected one clean validation record, got %+v", validations)
	}
}

func TestSubmitRejectionRejectsEntry(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	engine, _ := newEngine(t, store)
	entry := symbolizedEntry(t, store)

	outcome, err := engine.Submit(context.Background(), entry.ID, "kamau", archive.DecisionRejected, "not a community practice")
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if !outcome.Resolved || outcome.Entry.Status != archive.StatusRejected {
		t.Fatalf("expected rejected entry, got %+v", outcome.Entry)
	}
}

func TestFirstDecisionWinsSecondIsConflict(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	engine, _ := newEngine(t, store)
	entry := symbolizedEntry(t, store)

	first, err := engine.Submit(context.Background(), entry.ID, "wanjiku", archive.DecisionApproved, "")
	if err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	second, err := engine.Submit(context.Background(), entry.ID, "kamau", archive.DecisionRejected, "")
	if err != nil {
		t.Fatalf("second Submit: %v", err)
	}

	if !first.Resolved || first.Entry.Status != archive.StatusValidated {
		t.Fatalf("first decision should resolve, got %+v", first.Entry)
	}
	if !second.Conflict || second.Resolved {
		t.Fatalf("second decision should be a conflict, got %+v", second)
	}
	if second.Entry.Status != archive.StatusValidated {
		t.Errorf("second decision must not change status, got %s", second.Entry.Status)
	}

	validations, err := store.ValidationsForEntry(context.Background(), entry.ID)
	if err != nil {
		t.Fatalf("ValidationsForEntry: %v", err)
	}
	if len(validations) != 2 {
		t.Fatalf("both decisions must be stored, got %d", len(validations))
	}
	if validations[0].Conflict || !validations[1].Conflict {
		t.Errorf("only the late decision should carry the conflict flag: %+v", validations)
	}
}

func TestSubmitPendingEntryIsInvalidState(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	engine, _ := newEngine(t, store)
	entry := testsupport.NewEntry(t, store, "Herbal remedies", "QmTest123")

	_, err := engine.Submit(context.Background(), entry.ID, "wanjiku", archive.DecisionApproved, "")
	if !errors.Is(err, services.ErrInvalidState) {
		t.Errorf("pending entry should be invalid state, got %v", err)
	}
}

func TestSubmitMissingEntry(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	engine, _ := newEngine(t, store)

	_, err := engine.Submit(context.Background(), 9999, "wanjiku", archive.DecisionApproved, "")
	if !errors.Is(err, services.ErrNotFound) {
		t.Errorf("missing entry should be not found, got %v", err)
	}
}

func TestSubmitDuplicateValidator(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	cfg := testsupport.NewConfig(t, testsupport.WithConsensusPolicy("majority"))
	engine, err := NewEngine(cfg, store, &stubCommunities{community: &archive.Community{
		Name: "general", MinValidators: 3,
	}}, nil, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	entry := symbolizedEntry(t, store)

	if _, err := engine.Submit(context.Background(), entry.ID, "wanjiku", archive.DecisionApproved, ""); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	_, err = engine.Submit(context.Background(), entry.ID, "wanjiku", archive.DecisionApproved, "")
	if !errors.Is(err, services.ErrValidation) {
		t.Errorf("duplicate validator should be a validation error, got %v", err)
	}
}

func TestMajorityPolicyWaitsForQuorum(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	cfg := testsupport.NewConfig(t, testsupport.WithConsensusPolicy("majority"))
	engine, err := NewEngine(cfg, store, &stubCommunities{community: &archive.Community{
		Name: "general", MinValidators: 3,
	}}, nil, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	entry := symbolizedEntry(t, store)

	first, err := engine.Submit(context.Background(), entry.ID, "wanjiku", archive.DecisionApproved, "")
	if err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if first.Resolved {
		t.Fatal("one of three decisions should not resolve")
	}

	second, err := engine.Submit(context.Background(), entry.ID, "kamau", archive.DecisionApproved, "")
	if err != nil {
		t.Fatalf("second Submit: %v", err)
	}
	if !second.Resolved || second.Entry.Status != archive.StatusValidated {
		t.Fatalf("majority reached, expected validated, got %+v", second.Entry)
	}
}

func TestRejectionMirroredToLedgerWhenAnchored(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	engine, recorder := newEngine(t, store)
	entry := testsupport.NewEntry(t, store, "Herbal remedies", "QmTest123")
	entry.Transcript = "text"
	entry.Atoms = []string{`(fact "a")`}
	entry.LedgerEntryID = "77"
	entry = testsupport.AdvanceTo(t, store, entry, archive.StatusSymbolized)

	outcome, err := engine.Submit(context.Background(), entry.ID, "wanjiku", archive.DecisionRejected, "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !outcome.Resolved {
		t.Fatal("expected resolution")
	}
	if recorder.calls != 1 || recorder.lastID != "77" || recorder.lastOK {
		t.Errorf("rejection should be mirrored to the ledger, recorder=%+v", recorder)
	}
}

func TestSubmitBatchPartialFailure(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	engine, _ := newEngine(t, store)
	good := symbolizedEntry(t, store)
	pending := testsupport.NewEntry(t, store, "Not ready", "QmOther")

	results := engine.SubmitBatch(context.Background(), []int64{good.ID, pending.ID, 9999}, "wanjiku", archive.DecisionApproved, "bulk review")
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Err != nil || !results[0].Outcome.Resolved {
		t.Errorf("first item should resolve, got %+v", results[0])
	}
	if !errors.Is(results[1].Err, services.ErrInvalidState) {
		t.Errorf("second item should be invalid state, got %v", results[1].Err)
	}
	if !errors.Is(results[2].Err, services.ErrNotFound) {
		t.Errorf("third item should be not found, got %v", results[2].Err)
	}
}
