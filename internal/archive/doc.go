// Package archive persists knowledge entries, validator decisions, and
// community governance records in SQLite. The archive is the single source
// of truth for pipeline progress: the status column doubles as the job
// queue, and every stage transition is a conditional write that verifies
// the expected pre-state so concurrent workers can never double-advance an
// entry.
package archive
