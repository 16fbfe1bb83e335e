package cache

import (
	"fmt"
	"sync"
	"time"
)

// VolumeCounter tracks per-community submission volume in rolling hourly
// buckets. Counts are advisory (rate dashboards, abuse signals) and are
// rebuilt from the archive if the process restarts.
type VolumeCounter struct {
	mu      sync.Mutex
	buckets map[string]int64

	now func() time.Time
}

// NewVolumeCounter creates a counter. A nil *VolumeCounter is valid and
// counts nothing.
func NewVolumeCounter() *VolumeCounter {
	return &VolumeCounter{
		buckets: make(map[string]int64),
		now:     time.Now,
	}
}

func bucketKey(community string, t time.Time) string {
	return fmt.Sprintf("%s:%s", community, t.UTC().Format("2006010215"))
}

// Increment bumps the current hour's bucket and returns the new count.
func (v *VolumeCounter) Increment(community string) int64 {
	if v == nil || community == "" {
		return 0
	}
	key := bucketKey(community, v.now())
	v.mu.Lock()
	defer v.mu.Unlock()
	v.buckets[key]++
	return v.buckets[key]
}

// Volume sums the buckets covering the past window hours (including the
// current partial hour).
func (v *VolumeCounter) Volume(community string, windowHours int) int64 {
	if v == nil || community == "" || windowHours <= 0 {
		return 0
	}
	now := v.now()
	v.mu.Lock()
	defer v.mu.Unlock()
	var total int64
	for i := 0; i < windowHours; i++ {
		total += v.buckets[bucketKey(community, now.Add(-time.Duration(i)*time.Hour))]
	}
	return total
}

// Prune drops buckets older than the retention window.
func (v *VolumeCounter) Prune(retainHours int) {
	if v == nil || retainHours <= 0 {
		return
	}
	keep := make(map[string]struct{})
	now := v.now()
	v.mu.Lock()
	defer v.mu.Unlock()
	for key := range v.buckets {
		keep[key] = struct{}{}
	}
	// Hour suffix comparison: anything older than the cutoff hour goes.
	cutoff := now.Add(-time.Duration(retainHours) * time.Hour).UTC().Format("2006010215")
	for key := range keep {
		if len(key) > len(cutoff) && key[len(key)-len(cutoff):] < cutoff {
			delete(v.buckets, key)
		}
	}
}
