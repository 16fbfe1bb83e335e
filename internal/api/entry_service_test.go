package api_test

import (
	"context"
	"testing"
	"time"

	"mila/internal/api"
	"mila/internal/archive"
	"mila/internal/cache"
)

type stubEntryReader struct {
	entries     []*archive.Entry
	validations []*archive.Validation
	listCalls   int
	retried     []int64
}

func (s *stubEntryReader) List(ctx context.Context, statuses ...archive.Status) ([]*archive.Entry, error) {
	s.listCalls++
	if len(statuses) == 0 {
		return s.entries, nil
	}
	var out []*archive.Entry
	for _, entry := range s.entries {
		for _, status := range statuses {
			if entry.Status == status {
				out = append(out, entry)
				break
			}
		}
	}
	return out, nil
}

func (s *stubEntryReader) ListByCommunity(ctx context.Context, community string) ([]*archive.Entry, error) {
	s.listCalls++
	var out []*archive.Entry
	for _, entry := range s.entries {
		if entry.Community == community {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (s *stubEntryReader) GetByID(ctx context.Context, id int64) (*archive.Entry, error) {
	for _, entry := range s.entries {
		if entry.ID == id {
			return entry, nil
		}
	}
	return nil, nil
}

func (s *stubEntryReader) Stats(ctx context.Context) (map[archive.Status]int, error) {
	stats := make(map[archive.Status]int)
	for _, entry := range s.entries {
		stats[entry.Status]++
	}
	return stats, nil
}

func (s *stubEntryReader) ValidationsForEntry(ctx context.Context, entryID int64) ([]*archive.Validation, error) {
	var out []*archive.Validation
	for _, v := range s.validations {
		if v.EntryID == entryID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *stubEntryReader) RetryFrozen(ctx context.Context, ids ...int64) (int64, error) {
	s.retried = append(s.retried, ids...)
	return int64(len(ids)), nil
}

func testEntries(t *testing.T) []*archive.Entry {
	t.Helper()
	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	return []*archive.Entry{
		{ID: 1, Title: "Rain Songs", Community: "kikuyu", Status: archive.StatusPending, CreatedAt: base},
		{ID: 2, Title: "Herbal Uses", Community: "kikuyu", Status: archive.StatusAnchored, CreatedAt: base.Add(time.Hour)},
		{ID: 3, Title: "Border Tales", Community: "maasai", Status: archive.StatusPending, CreatedAt: base.Add(2 * time.Hour)},
	}
}

func TestEntryServiceListSortsNewestFirst(t *testing.T) {
	reader := &stubEntryReader{entries: testEntries(t)}
	svc := api.NewEntryService(reader, nil, 0)

	entries, err := svc.List(context.Background(), archive.StatusPending)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 pending entries, got %d", len(entries))
	}
	if entries[0].ID != 3 || entries[1].ID != 1 {
		t.Fatalf("expected newest first ordering, got %d then %d", entries[0].ID, entries[1].ID)
	}
	if entries[0].Phase != "pending" {
		t.Fatalf("expected pending phase, got %q", entries[0].Phase)
	}
}

func TestEntryServiceListMemoizesQueries(t *testing.T) {
	reader := &stubEntryReader{entries: testEntries(t)}
	svc := api.NewEntryService(reader, cache.New(nil), time.Minute)

	for i := 0; i < 3; i++ {
		if _, err := svc.List(context.Background(), archive.StatusPending); err != nil {
			t.Fatalf("List: %v", err)
		}
	}
	if reader.listCalls != 1 {
		t.Fatalf("expected single store read for repeated query, got %d", reader.listCalls)
	}

	// A different filter is a different key.
	if _, err := svc.List(context.Background(), archive.StatusAnchored); err != nil {
		t.Fatalf("List: %v", err)
	}
	if reader.listCalls != 2 {
		t.Fatalf("expected cache miss for new filter, got %d calls", reader.listCalls)
	}
}

func TestEntryServiceListHonorsConfiguredQueryTTL(t *testing.T) {
	reader := &stubEntryReader{entries: testEntries(t)}
	svc := api.NewEntryService(reader, cache.New(nil), 20*time.Millisecond)

	if _, err := svc.List(context.Background(), archive.StatusPending); err != nil {
		t.Fatalf("List: %v", err)
	}
	if _, err := svc.List(context.Background(), archive.StatusPending); err != nil {
		t.Fatalf("List: %v", err)
	}
	if reader.listCalls != 1 {
		t.Fatalf("expected memoized read inside TTL, got %d calls", reader.listCalls)
	}

	time.Sleep(50 * time.Millisecond)
	if _, err := svc.List(context.Background(), archive.StatusPending); err != nil {
		t.Fatalf("List: %v", err)
	}
	if reader.listCalls != 2 {
		t.Fatalf("expected store read after TTL expiry, got %d calls", reader.listCalls)
	}
}

func TestEntryServiceDescribeIncludesValidations(t *testing.T) {
	reader := &stubEntryReader{
		entries: testEntries(t),
		validations: []*archive.Validation{
			{ID: 10, EntryID: 2, Validator: "elder-wanjiku", Decision: archive.DecisionApproved},
			{ID: 11, EntryID: 2, Validator: "elder-njeri", Decision: archive.DecisionRejected, Conflict: true},
		},
	}
	svc := api.NewEntryService(reader, nil, 0)

	entry, validations, err := svc.Describe(context.Background(), 2)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if entry == nil || entry.Title != "Herbal Uses" {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if len(validations) != 2 {
		t.Fatalf("expected 2 validations, got %d", len(validations))
	}
	if !validations[1].Conflict {
		t.Fatal("expected conflict flag preserved")
	}
}

func TestEntryServiceDescribeMissingEntry(t *testing.T) {
	svc := api.NewEntryService(&stubEntryReader{}, nil, 0)
	entry, validations, err := svc.Describe(context.Background(), 99)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if entry != nil || validations != nil {
		t.Fatal("expected nil results for unknown entry")
	}
}

func TestEntryServiceRetryForwardsIDs(t *testing.T) {
	reader := &stubEntryReader{}
	svc := api.NewEntryService(reader, nil, 0)

	released, err := svc.Retry(context.Background(), 4, 7)
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if released != 2 {
		t.Fatalf("expected 2 released, got %d", released)
	}
	if len(reader.retried) != 2 || reader.retried[0] != 4 {
		t.Fatalf("unexpected forwarded ids %v", reader.retried)
	}
}

func TestEntryServiceStats(t *testing.T) {
	svc := api.NewEntryService(&stubEntryReader{entries: testEntries(t)}, nil, 0)
	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats["pending"] != 2 || stats["anchored"] != 1 {
		t.Fatalf("unexpected stats %v", stats)
	}
}
