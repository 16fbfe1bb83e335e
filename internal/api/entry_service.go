package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"mila/internal/archive"
	"mila/internal/cache"
)

// EntryReader abstracts archive persistence interactions needed for API
// queries.
type EntryReader interface {
	List(ctx context.Context, statuses ...archive.Status) ([]*archive.Entry, error)
	ListByCommunity(ctx context.Context, community string) ([]*archive.Entry, error)
	GetByID(ctx context.Context, id int64) (*archive.Entry, error)
	Stats(ctx context.Context) (map[archive.Status]int, error)
	ValidationsForEntry(ctx context.Context, entryID int64) ([]*archive.Validation, error)
	RetryFrozen(ctx context.Context, ids ...int64) (int64, error)
}

// defaultListCacheTTL bounds how stale a memoized list response may be
// when the caller does not supply a query TTL. Writes do not invalidate,
// so the window stays short.
const defaultListCacheTTL = 2 * time.Second

// EntryService exposes read-mostly archive operations returning API DTOs.
// List responses are memoized by query so bursty dashboards and CLI
// polling do not hammer SQLite.
type EntryService struct {
	store    EntryReader
	memo     *cache.Cache
	queryTTL time.Duration
}

// NewEntryService constructs an EntryService around the provided reader.
// The memo cache may be nil to disable memoization. A non-positive
// queryTTL falls back to a short default window.
func NewEntryService(store EntryReader, memo *cache.Cache, queryTTL time.Duration) *EntryService {
	if store == nil {
		return nil
	}
	if queryTTL <= 0 {
		queryTTL = defaultListCacheTTL
	}
	return &EntryService{store: store, memo: memo, queryTTL: queryTTL}
}

// List returns entries filtered by status, newest first.
func (s *EntryService) List(ctx context.Context, statuses ...archive.Status) ([]Entry, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	parts := make([]string, 0, len(statuses)+1)
	parts = append(parts, "status")
	for _, status := range statuses {
		parts = append(parts, string(status))
	}
	key := queryKey(parts...)
	if cached, ok := s.memo.Get(key); ok {
		if entries, ok := cached.([]Entry); ok {
			return entries, nil
		}
	}
	records, err := s.store.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	entries := SortEntriesNewestFirst(FromEntries(records))
	s.memo.Set(key, entries, s.queryTTL)
	return entries, nil
}

// ListByCommunity returns entries scoped to one community, newest first.
func (s *EntryService) ListByCommunity(ctx context.Context, community string) ([]Entry, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	key := queryKey("community", strings.ToLower(strings.TrimSpace(community)))
	if cached, ok := s.memo.Get(key); ok {
		if entries, ok := cached.([]Entry); ok {
			return entries, nil
		}
	}
	records, err := s.store.ListByCommunity(ctx, community)
	if err != nil {
		return nil, err
	}
	entries := SortEntriesNewestFirst(FromEntries(records))
	s.memo.Set(key, entries, s.queryTTL)
	return entries, nil
}

// Describe fetches a single entry with its recorded validations.
func (s *EntryService) Describe(ctx context.Context, id int64) (*Entry, []Validation, error) {
	if s == nil || s.store == nil {
		return nil, nil, nil
	}
	record, err := s.store.GetByID(ctx, id)
	if err != nil || record == nil {
		return nil, nil, err
	}
	validations, err := s.store.ValidationsForEntry(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	dto := FromEntry(record)
	return &dto, FromValidations(validations), nil
}

// Stats returns entry summary counts keyed by status string.
func (s *EntryService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeArchiveStats(stats), nil
}

// Retry clears review freezes so the named entries re-enter the pipeline.
// With no IDs every frozen entry is released. Returns the number of
// entries released.
func (s *EntryService) Retry(ctx context.Context, ids ...int64) (int64, error) {
	if s == nil || s.store == nil {
		return 0, nil
	}
	return s.store.RetryFrozen(ctx, ids...)
}

// queryKey derives a stable memoization key from query parameters.
func queryKey(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return "query:" + hex.EncodeToString(sum[:])
}
