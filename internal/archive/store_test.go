package archive_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"mila/internal/archive"
	"mila/internal/testsupport"
)

func TestOpenAppliesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	entry, err := store.NewEntry(ctx, archive.NewEntryParams{
		Title:          "Rain Songs",
		Submitter:      "asha",
		Language:       "sw",
		License:        "CC-BY-SA",
		Community:      "general",
		ContentPointer: "bafytest1",
		Metadata:       map[string]string{"season": "long rains"},
	})
	if err != nil {
		t.Fatalf("NewEntry failed: %v", err)
	}
	if entry.ID == 0 {
		t.Fatal("expected entry ID to be assigned")
	}
	if entry.Status != archive.StatusPending {
		t.Fatalf("expected pending status, got %s", entry.Status)
	}
	if entry.MetadataJSON == "" {
		t.Fatal("expected metadata to be stored")
	}

	fetched, err := store.GetByID(ctx, entry.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched == nil || fetched.Title != "Rain Songs" {
		t.Fatalf("unexpected fetched entry: %#v", fetched)
	}
}

func TestGetByIDMissingReturnsNil(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	entry, err := store.GetByID(context.Background(), 9999)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if entry != nil {
		t.Fatalf("expected nil for missing entry, got %#v", entry)
	}
}

func TestTransitionRequiresStatusMatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	entry := testsupport.NewEntry(t, store, "Transition Entry", "bafytransition")

	entry.Status = archive.StatusTranscribing
	if err := store.Transition(ctx, entry, archive.StatusPending); err != nil {
		t.Fatalf("Transition failed: %v", err)
	}

	stale := *entry
	stale.Status = archive.StatusTranscribed
	err := store.Transition(ctx, &stale, archive.StatusPending)
	if !errors.Is(err, archive.ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict, got %v", err)
	}

	fresh, err := store.GetByID(ctx, entry.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fresh.Status != archive.StatusTranscribing {
		t.Fatalf("losing transition must not change status, got %s", fresh.Status)
	}
}

func TestResetStuckProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	cases := []struct {
		name     string
		initial  archive.Status
		expected archive.Status
	}{
		{"transcribing", archive.StatusTranscribing, archive.StatusPending},
		{"symbolizing", archive.StatusSymbolizing, archive.StatusTranscribed},
		{"anchoring", archive.StatusAnchoring, archive.StatusValidated},
	}
	var ids []int64
	for i, tc := range cases {
		entry := testsupport.NewEntry(t, store, fmt.Sprintf("Entry-%s", tc.name), fmt.Sprintf("bafyreset%d", i))
		entry.Status = tc.initial
		now := time.Now().UTC()
		entry.LastHeartbeat = &now
		if err := store.Update(ctx, entry); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		ids = append(ids, entry.ID)
	}

	count, err := store.ResetStuckProcessing(ctx)
	if err != nil {
		t.Fatalf("ResetStuckProcessing failed: %v", err)
	}
	if int(count) != len(cases) {
		t.Fatalf("expected %d entries reset, got %d", len(cases), count)
	}

	for idx, tc := range cases {
		updated, err := store.GetByID(ctx, ids[idx])
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if updated.Status != tc.expected {
			t.Fatalf("%s: expected status %s, got %s", tc.name, tc.expected, updated.Status)
		}
		if updated.LastHeartbeat != nil {
			t.Fatalf("%s: expected heartbeat cleared", tc.name)
		}
	}
}

func TestReclaimStaleProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	stale := testsupport.NewEntry(t, store, "Stale Entry", "bafystale")
	stale.Status = archive.StatusSymbolizing
	old := time.Now().UTC().Add(-time.Hour)
	stale.LastHeartbeat = &old
	if err := store.Update(ctx, stale); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	live := testsupport.NewEntry(t, store, "Live Entry", "bafylive")
	live.Status = archive.StatusSymbolizing
	now := time.Now().UTC()
	live.LastHeartbeat = &now
	if err := store.Update(ctx, live); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	count, err := store.ReclaimStaleProcessing(ctx, time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("ReclaimStaleProcessing failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 entry reclaimed, got %d", count)
	}

	reclaimed, err := store.GetByID(ctx, stale.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if reclaimed.Status != archive.StatusTranscribed {
		t.Fatalf("expected rollback to transcribed, got %s", reclaimed.Status)
	}

	untouched, err := store.GetByID(ctx, live.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if untouched.Status != archive.StatusSymbolizing {
		t.Fatalf("fresh heartbeat must not be reclaimed, got %s", untouched.Status)
	}
}

func TestNextForStatusesSkipsGatedEntries(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	frozen := testsupport.NewEntry(t, store, "Frozen Entry", "bafyfrozen")
	frozen.NeedsReview = true
	frozen.FailureReason = "transcriber unreachable"
	if err := store.Update(ctx, frozen); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	delayed := testsupport.NewEntry(t, store, "Delayed Entry", "bafydelayed")
	future := time.Now().UTC().Add(time.Hour)
	delayed.NotBefore = &future
	if err := store.Update(ctx, delayed); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	ready := testsupport.NewEntry(t, store, "Ready Entry", "bafyready")

	next, err := store.NextForStatuses(ctx, archive.StatusPending)
	if err != nil {
		t.Fatalf("NextForStatuses failed: %v", err)
	}
	if next == nil || next.ID != ready.ID {
		t.Fatalf("expected ready entry %d, got %#v", ready.ID, next)
	}
}

func TestNextForAnchoringHonorsCommunityOptOut(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.SeedCommunity(t, store, &archive.Community{
		Name:             "closed-circle",
		DefaultLanguage:  "mas",
		MinValidators:    1,
		AnchoringEnabled: false,
	})
	testsupport.SeedCommunity(t, store, &archive.Community{
		Name:             "open-circle",
		DefaultLanguage:  "sw",
		MinValidators:    1,
		AnchoringEnabled: true,
	})

	optedOut, err := store.NewEntry(ctx, archive.NewEntryParams{
		Title:          "Guarded Chant",
		Submitter:      "test-submitter",
		Language:       "mas",
		License:        "CC-BY-SA",
		Community:      "closed-circle",
		ContentPointer: "bafyoptout",
	})
	if err != nil {
		t.Fatalf("NewEntry failed: %v", err)
	}
	testsupport.AdvanceTo(t, store, optedOut, archive.StatusValidated)

	next, err := store.NextForAnchoring(ctx, archive.StatusValidated)
	if err != nil {
		t.Fatalf("NextForAnchoring failed: %v", err)
	}
	if next != nil {
		t.Fatalf("expected no anchorable entry, got %#v", next)
	}

	anchorable, err := store.NewEntry(ctx, archive.NewEntryParams{
		Title:          "Shared Song",
		Submitter:      "test-submitter",
		Language:       "sw",
		License:        "CC-BY-SA",
		Community:      "open-circle",
		ContentPointer: "bafyopen",
	})
	if err != nil {
		t.Fatalf("NewEntry failed: %v", err)
	}
	testsupport.AdvanceTo(t, store, anchorable, archive.StatusValidated)

	next, err = store.NextForAnchoring(ctx, archive.StatusValidated)
	if err != nil {
		t.Fatalf("NextForAnchoring failed: %v", err)
	}
	if next == nil || next.ID != anchorable.ID {
		t.Fatalf("expected entry %d, got %#v", anchorable.ID, next)
	}

	// An entry whose community has no stored profile is still anchorable.
	unprofiled := testsupport.NewEntry(t, store, "Unprofiled Entry", "bafynoprofile")
	testsupport.AdvanceTo(t, store, unprofiled, archive.StatusValidated)
	testsupport.AdvanceTo(t, store, anchorable, archive.StatusAnchored)

	next, err = store.NextForAnchoring(ctx, archive.StatusValidated)
	if err != nil {
		t.Fatalf("NextForAnchoring failed: %v", err)
	}
	if next == nil || next.ID != unprofiled.ID {
		t.Fatalf("expected entry %d, got %#v", unprofiled.ID, next)
	}
}

func TestRetryFrozenReleasesSelectedEntries(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	first := testsupport.NewEntry(t, store, "Frozen A", "bafyfa")
	first.NeedsReview = true
	first.FailureReason = "symbolizer returned malformed atoms"
	first.Attempts = 3
	if err := store.Update(ctx, first); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	second := testsupport.NewEntry(t, store, "Frozen B", "bafyfb")
	second.NeedsReview = true
	if err := store.Update(ctx, second); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	released, err := store.RetryFrozen(ctx, first.ID)
	if err != nil {
		t.Fatalf("RetryFrozen failed: %v", err)
	}
	if released != 1 {
		t.Fatalf("expected 1 entry released, got %d", released)
	}

	updated, err := store.GetByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if updated.NeedsReview || updated.FailureReason != "" || updated.Attempts != 0 {
		t.Fatalf("expected failure state cleared, got %#v", updated)
	}

	untouched, err := store.GetByID(ctx, second.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !untouched.NeedsReview {
		t.Fatal("unselected frozen entry must stay frozen")
	}

	releasedAll, err := store.RetryFrozen(ctx)
	if err != nil {
		t.Fatalf("RetryFrozen failed: %v", err)
	}
	if releasedAll != 1 {
		t.Fatalf("expected remaining frozen entry released, got %d", releasedAll)
	}
}

func TestListOrderingAndFilters(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	a := testsupport.NewEntry(t, store, "Entry A", "bafya")
	b := testsupport.NewEntry(t, store, "Entry B", "bafyb")
	b.Status = archive.StatusSymbolized
	if err := store.Update(ctx, b); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 2 || all[0].ID != a.ID {
		t.Fatalf("expected both entries oldest first, got %#v", all)
	}

	symbolized, err := store.List(ctx, archive.StatusSymbolized)
	if err != nil {
		t.Fatalf("List by status failed: %v", err)
	}
	if len(symbolized) != 1 || symbolized[0].ID != b.ID {
		t.Fatalf("expected only symbolized entry, got %#v", symbolized)
	}
}

func TestAddValidationDetectsDuplicates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	entry := testsupport.NewEntry(t, store, "Validated Entry", "bafyval")

	first, err := store.AddValidation(ctx, &archive.Validation{
		EntryID:   entry.ID,
		Validator: "elder-wanjiku",
		Decision:  archive.DecisionApproved,
		Notes:     "authentic recording",
	})
	if err != nil {
		t.Fatalf("AddValidation failed: %v", err)
	}
	if first.ID == 0 {
		t.Fatal("expected validation ID to be assigned")
	}

	_, err = store.AddValidation(ctx, &archive.Validation{
		EntryID:   entry.ID,
		Validator: "elder-wanjiku",
		Decision:  archive.DecisionRejected,
	})
	if !errors.Is(err, archive.ErrDuplicateValidator) {
		t.Fatalf("expected ErrDuplicateValidator, got %v", err)
	}

	validations, err := store.ValidationsForEntry(ctx, entry.ID)
	if err != nil {
		t.Fatalf("ValidationsForEntry failed: %v", err)
	}
	if len(validations) != 1 || validations[0].Decision != archive.DecisionApproved {
		t.Fatalf("unexpected validations: %#v", validations)
	}
}

func TestUpsertCommunityRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	created, err := store.UpsertCommunity(ctx, &archive.Community{
		Name:             "kikuyu",
		Description:      "Kikuyu oral traditions",
		DefaultLanguage:  "ki",
		Region:           "Central Kenya",
		Validators:       []string{"elder-wanjiku", "elder-kamau"},
		AllowedLanguages: []string{"ki", "sw"},
		SensitiveTerms:   []string{"mugo"},
		MinValidators:    2,
		AnchoringEnabled: true,
	})
	if err != nil {
		t.Fatalf("UpsertCommunity failed: %v", err)
	}
	if len(created.Validators) != 2 || !created.AnchoringEnabled {
		t.Fatalf("unexpected created community: %#v", created)
	}

	created.Region = "Mount Kenya"
	created.MinValidators = 1
	updated, err := store.UpsertCommunity(ctx, created)
	if err != nil {
		t.Fatalf("UpsertCommunity update failed: %v", err)
	}
	if updated.Region != "Mount Kenya" || updated.MinValidators != 1 {
		t.Fatalf("unexpected updated community: %#v", updated)
	}

	missing, err := store.GetCommunity(ctx, "unknown")
	if err != nil {
		t.Fatalf("GetCommunity failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing community, got %#v", missing)
	}

	all, err := store.ListCommunities(ctx)
	if err != nil {
		t.Fatalf("ListCommunities failed: %v", err)
	}
	if len(all) != 1 || all[0].Name != "kikuyu" {
		t.Fatalf("unexpected community list: %#v", all)
	}
}

func TestStatsAndHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.NewEntry(t, store, "Pending One", "bafyp1")
	symbolized := testsupport.NewEntry(t, store, "Awaiting One", "bafyaw1")
	testsupport.AdvanceTo(t, store, symbolized, archive.StatusSymbolized)
	frozen := testsupport.NewEntry(t, store, "Frozen One", "bafyfr1")
	frozen.NeedsReview = true
	if err := store.Update(ctx, frozen); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[archive.StatusPending] != 2 || stats[archive.StatusSymbolized] != 1 {
		t.Fatalf("unexpected stats: %#v", stats)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Total != 3 || health.Pending != 2 || health.Awaiting != 1 || health.Review != 1 {
		t.Fatalf("unexpected health summary: %#v", health)
	}
}
