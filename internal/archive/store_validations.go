package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrDuplicateValidator indicates the validator already recorded a decision
// for this entry. Validations are append-only and never overwritten.
var ErrDuplicateValidator = errors.New("validator already decided this entry")

// AddValidation appends an immutable validator decision.
func (s *Store) AddValidation(ctx context.Context, v *Validation) (*Validation, error) {
	if v == nil {
		return nil, errors.New("validation is nil")
	}
	ctx = ensureContext(ctx)
	now := time.Now().UTC()

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO validations (entry_id, validator, decision, notes, conflict, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		v.EntryID,
		v.Validator,
		v.Decision,
		nullableString(v.Notes),
		boolToInt(v.Conflict),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrDuplicateValidator
		}
		return nil, fmt.Errorf("insert validation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	stored := *v
	stored.ID = id
	stored.CreatedAt = now
	return &stored, nil
}

// ValidationsForEntry returns all decisions for an entry in arrival order.
func (s *Store) ValidationsForEntry(ctx context.Context, entryID int64) ([]*Validation, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, entry_id, validator, decision, notes, conflict, created_at
         FROM validations WHERE entry_id = ? ORDER BY id`,
		entryID,
	)
	if err != nil {
		return nil, fmt.Errorf("query validations: %w", err)
	}
	defer rows.Close()

	var validations []*Validation
	for rows.Next() {
		v, err := scanValidation(rows)
		if err != nil {
			return nil, err
		}
		validations = append(validations, v)
	}
	return validations, rows.Err()
}

func scanValidation(scanner interface{ Scan(dest ...any) error }) (*Validation, error) {
	var (
		id         int64
		entryID    int64
		validator  string
		decision   string
		notes      sql.NullString
		conflict   sql.NullInt64
		createdRaw sql.NullString
	)
	if err := scanner.Scan(&id, &entryID, &validator, &decision, &notes, &conflict, &createdRaw); err != nil {
		return nil, err
	}

	v := &Validation{
		ID:        id,
		EntryID:   entryID,
		Validator: validator,
		Decision:  Decision(decision),
		Notes:     notes.String,
	}
	if conflict.Valid {
		v.Conflict = conflict.Int64 != 0
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		v.CreatedAt = created
	}
	return v, nil
}
