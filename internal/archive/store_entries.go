package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// NewEntryParams captures intake fields for a fresh submission.
type NewEntryParams struct {
	Title          string
	Submitter      string
	Language       string
	License        string
	Community      string
	ContentPointer string
	Metadata       map[string]string
}

// NewEntry inserts a pending submission awaiting transcription.
func (s *Store) NewEntry(ctx context.Context, params NewEntryParams) (*Entry, error) {
	ctx = ensureContext(ctx)
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	var metadataJSON any
	if len(params.Metadata) > 0 {
		encoded, err := json.Marshal(params.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal metadata: %w", err)
		}
		metadataJSON = string(encoded)
	}

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO entries (
            title, submitter, language, license, community, content_pointer,
            metadata_json, status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullableString(params.Title),
		nullableString(params.Submitter),
		nullableString(params.Language),
		nullableString(params.License),
		nullableString(params.Community),
		nullableString(params.ContentPointer),
		metadataJSON,
		StatusPending,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches an entry by identifier. A missing entry yields (nil, nil).
func (s *Store) GetByID(ctx context.Context, id int64) (*Entry, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return entry, nil
}

// List returns entries filtered by status set (or all entries when no
// status is provided), oldest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Entry, error) {
	ctx = ensureContext(ctx)
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + entryColumns + ` FROM entries`
	orderClause := ` ORDER BY created_at, id`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// ListByCommunity returns all entries tagged with the given community.
func (s *Store) ListByCommunity(ctx context.Context, community string) ([]*Entry, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE community = ? ORDER BY created_at, id`, community)
	if err != nil {
		return nil, fmt.Errorf("list community entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// NextForStatuses returns the oldest workable entry matching any of the
// provided statuses. Entries frozen for review or gated by a retry delay
// are skipped.
func (s *Store) NextForStatuses(ctx context.Context, statuses ...Status) (*Entry, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	ctx = ensureContext(ctx)
	placeholders := makePlaceholders(len(statuses))
	args := make([]any, 0, len(statuses)+1)
	for _, status := range statuses {
		args = append(args, status)
	}
	args = append(args, time.Now().UTC().Format(time.RFC3339Nano))

	query := `SELECT ` + entryColumns + ` FROM entries
        WHERE status IN (` + placeholders + `)
          AND needs_review = 0
          AND (not_before IS NULL OR not_before <= ?)
        ORDER BY created_at, id LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, args...)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// NextForAnchoring returns the oldest workable entry matching any of the
// provided statuses whose community has not opted out of anchoring. A
// community profile with anchoring disabled excludes its entries; entries
// without a stored profile are not excluded.
func (s *Store) NextForAnchoring(ctx context.Context, statuses ...Status) (*Entry, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	ctx = ensureContext(ctx)
	placeholders := makePlaceholders(len(statuses))
	args := make([]any, 0, len(statuses)+1)
	for _, status := range statuses {
		args = append(args, status)
	}
	args = append(args, time.Now().UTC().Format(time.RFC3339Nano))

	query := `SELECT ` + entryColumns + ` FROM entries
        WHERE status IN (` + placeholders + `)
          AND needs_review = 0
          AND (not_before IS NULL OR not_before <= ?)
          AND community NOT IN (SELECT name FROM communities WHERE anchoring_enabled = 0)
        ORDER BY created_at, id LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, args...)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Update persists changes to an existing entry without a status
// precondition. Pipeline transitions must use Transition instead.
func (s *Store) Update(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return errors.New("entry is nil")
	}
	entry.UpdatedAt = time.Now().UTC()
	_, err := s.execWithRetry(ctx, `UPDATE entries SET `+entrySetClause+` WHERE id = ?`,
		append(entrySetArgs(entry), entry.ID)...)
	if err != nil {
		return fmt.Errorf("update entry: %w", err)
	}
	return nil
}

// Stats returns a count of entries grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM entries GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("archive stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates archive state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusPending:
			health.Pending += count
		case StatusSymbolized:
			health.Awaiting += count
		case StatusValidated:
			health.Validated += count
		case StatusRejected:
			health.Rejected += count
		case StatusAnchored:
			health.Anchored += count
		default:
			if _, ok := processingStatuses[status]; ok {
				health.Processing += count
			}
		}
	}

	var review int
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT COUNT(1) FROM entries WHERE needs_review = 1`)
	if err := row.Scan(&review); err != nil {
		return health, fmt.Errorf("count review entries: %w", err)
	}
	health.Review = review
	return health, nil
}

const entryColumns = "id, title, submitter, language, license, community, content_pointer, metadata_json, transcript, detected_lang, duration_seconds, atoms_json, status, tx_ref, ledger_entry_id, attempts, not_before, needs_review, failure_reason, created_at, updated_at, last_heartbeat"

const entrySetClause = `title = ?, submitter = ?, language = ?, license = ?, community = ?,
        content_pointer = ?, metadata_json = ?, transcript = ?, detected_lang = ?,
        duration_seconds = ?, atoms_json = ?, status = ?, tx_ref = ?, ledger_entry_id = ?,
        attempts = ?, not_before = ?, needs_review = ?, failure_reason = ?, updated_at = ?,
        last_heartbeat = ?`

func entrySetArgs(entry *Entry) []any {
	return []any{
		nullableString(entry.Title),
		nullableString(entry.Submitter),
		nullableString(entry.Language),
		nullableString(entry.License),
		nullableString(entry.Community),
		nullableString(entry.ContentPointer),
		nullableString(entry.MetadataJSON),
		nullableString(entry.Transcript),
		nullableString(entry.DetectedLang),
		entry.DurationSeconds,
		nullableString(marshalAtoms(entry.Atoms)),
		entry.Status,
		nullableString(entry.TxRef),
		nullableString(entry.LedgerEntryID),
		entry.Attempts,
		nullableTime(entry.NotBefore),
		boolToInt(entry.NeedsReview),
		nullableString(entry.FailureReason),
		entry.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(entry.LastHeartbeat),
	}
}

func marshalAtoms(atoms []string) string {
	if len(atoms) == 0 {
		return ""
	}
	encoded, err := json.Marshal(atoms)
	if err != nil {
		return ""
	}
	return string(encoded)
}

func unmarshalAtoms(raw string) []string {
	if raw == "" {
		return nil
	}
	var atoms []string
	if err := json.Unmarshal([]byte(raw), &atoms); err != nil {
		return nil
	}
	return atoms
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		id            int64
		title         sql.NullString
		submitter     sql.NullString
		language      sql.NullString
		license       sql.NullString
		community     sql.NullString
		pointer       sql.NullString
		metadata      sql.NullString
		transcript    sql.NullString
		detectedLang  sql.NullString
		duration      sql.NullFloat64
		atomsRaw      sql.NullString
		statusStr     string
		txRef         sql.NullString
		ledgerEntryID sql.NullString
		attempts      sql.NullInt64
		notBeforeRaw  sql.NullString
		needsReview   sql.NullInt64
		failureReason sql.NullString
		createdRaw    sql.NullString
		updatedRaw    sql.NullString
		heartbeatRaw  sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&title,
		&submitter,
		&language,
		&license,
		&community,
		&pointer,
		&metadata,
		&transcript,
		&detectedLang,
		&duration,
		&atomsRaw,
		&statusStr,
		&txRef,
		&ledgerEntryID,
		&attempts,
		&notBeforeRaw,
		&needsReview,
		&failureReason,
		&createdRaw,
		&updatedRaw,
		&heartbeatRaw,
	); err != nil {
		return nil, err
	}

	entry := &Entry{
		ID:              id,
		Title:           title.String,
		Submitter:       submitter.String,
		Language:        language.String,
		License:         license.String,
		Community:       community.String,
		ContentPointer:  pointer.String,
		MetadataJSON:    metadata.String,
		Transcript:      transcript.String,
		DetectedLang:    detectedLang.String,
		DurationSeconds: duration.Float64,
		Atoms:           unmarshalAtoms(atomsRaw.String),
		Status:          Status(statusStr),
		TxRef:           txRef.String,
		LedgerEntryID:   ledgerEntryID.String,
		Attempts:        int(attempts.Int64),
		FailureReason:   failureReason.String,
	}
	if needsReview.Valid {
		entry.NeedsReview = needsReview.Int64 != 0
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		entry.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		entry.UpdatedAt = updated
	}
	if notBeforeRaw.Valid {
		if notBefore, err := parseTimeString(notBeforeRaw.String); err == nil {
			entry.NotBefore = &notBefore
		}
	}
	if heartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(heartbeatRaw.String); err == nil {
			entry.LastHeartbeat = &heartbeat
		}
	}
	return entry, nil
}
