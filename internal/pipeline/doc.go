// Package pipeline advances archive entries through the configured
// processing stages.
//
// The Manager polls the archive, reclaims stale claims via heartbeats, and
// feeds entries into registered stage handlers (transcription,
// symbolization, anchoring) while capturing retry and failure metadata.
// It also aggregates archive stats, calls stage health checks, and counts
// stage outcomes through the metrics sink.
//
// The pipeline runs two independent lanes: processing (transcription,
// symbolization) and anchoring. Each lane polls for entries matching its
// statuses and processes them independently, so anchoring a validated
// entry never delays transcription of a new submission. Every status move
// is a compare-and-swap against the entry's expected current status; a
// lost swap is a benign no-op, which makes duplicate delivery safe.
package pipeline
