package testsupport

import (
	"context"
	"testing"

	"mila/internal/archive"
	"mila/internal/config"
)

// MustOpenStore opens an archive.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *archive.Store {
	t.Helper()

	store, err := archive.Open(cfg)
	if err != nil {
		t.Fatalf("archive.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewEntry creates a pending entry for tests using the provided store.
func NewEntry(t testing.TB, store *archive.Store, title, contentPointer string) *archive.Entry {
	t.Helper()

	entry, err := store.NewEntry(context.Background(), archive.NewEntryParams{
		Title:          title,
		Submitter:      "test-submitter",
		Language:       "sw",
		License:        "CC-BY-SA",
		Community:      "general",
		ContentPointer: contentPointer,
	})
	if err != nil {
		t.Fatalf("store.NewEntry: %v", err)
	}
	return entry
}

// SeedCommunity writes a community profile for tests.
func SeedCommunity(t testing.TB, store *archive.Store, community *archive.Community) {
	t.Helper()

	if _, err := store.UpsertCommunity(context.Background(), community); err != nil {
		t.Fatalf("store.UpsertCommunity: %v", err)
	}
}

// AdvanceTo walks an entry's status forward through unconditional updates,
// bypassing the pipeline. Tests use it to stage entries at a precondition.
func AdvanceTo(t testing.TB, store *archive.Store, entry *archive.Entry, status archive.Status) *archive.Entry {
	t.Helper()

	entry.Status = status
	if err := store.Update(context.Background(), entry); err != nil {
		t.Fatalf("store.Update: %v", err)
	}
	fresh, err := store.GetByID(context.Background(), entry.ID)
	if err != nil {
		t.Fatalf("store.GetByID: %v", err)
	}
	if fresh == nil {
		t.Fatalf("entry %d disappeared", entry.ID)
	}
	return fresh
}
