// Package cache provides an in-process TTL cache used to memoize expensive
// reads and to track rolling submission volume. The cache is never a
// source of truth: every cached value is reproducible from the archive,
// and a nil or disabled cache degrades to direct store reads.
package cache
