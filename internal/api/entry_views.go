package api

import (
	"sort"
	"time"
)

// SortEntriesNewestFirst orders entries by CreatedAt descending, breaking
// ties by ID descending.
func SortEntriesNewestFirst(entries []Entry) []Entry {
	if len(entries) == 0 {
		return nil
	}
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		ti := parseEntryTime(sorted[i].CreatedAt)
		tj := parseEntryTime(sorted[j].CreatedAt)
		if ti.Equal(tj) {
			return sorted[i].ID > sorted[j].ID
		}
		return ti.After(tj)
	})
	return sorted
}

func parseEntryTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	return time.Time{}
}

// ParseEntryTime exposes timestamp parsing for consumers that need
// display formatting.
func ParseEntryTime(value string) time.Time {
	return parseEntryTime(value)
}
