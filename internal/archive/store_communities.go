package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// UpsertCommunity inserts or replaces a community's governance record.
// Callers owning a community cache must invalidate it after this returns.
func (s *Store) UpsertCommunity(ctx context.Context, c *Community) (*Community, error) {
	if c == nil {
		return nil, errors.New("community is nil")
	}
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return nil, errors.New("community name is empty")
	}
	ctx = ensureContext(ctx)
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	validators, err := marshalList(c.Validators)
	if err != nil {
		return nil, fmt.Errorf("marshal validators: %w", err)
	}
	languages, err := marshalList(c.AllowedLanguages)
	if err != nil {
		return nil, fmt.Errorf("marshal languages: %w", err)
	}
	sensitive, err := marshalList(c.SensitiveTerms)
	if err != nil {
		return nil, fmt.Errorf("marshal sensitive terms: %w", err)
	}

	minValidators := c.MinValidators
	if minValidators < 1 {
		minValidators = 1
	}

	_, err = s.execWithRetry(
		ctx,
		`INSERT INTO communities (
            name, description, default_language, region, validators_json,
            languages_json, sensitive_json, min_validators, anchoring_enabled,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(name) DO UPDATE SET
            description = excluded.description,
            default_language = excluded.default_language,
            region = excluded.region,
            validators_json = excluded.validators_json,
            languages_json = excluded.languages_json,
            sensitive_json = excluded.sensitive_json,
            min_validators = excluded.min_validators,
            anchoring_enabled = excluded.anchoring_enabled,
            updated_at = excluded.updated_at`,
		name,
		nullableString(c.Description),
		nullableString(c.DefaultLanguage),
		nullableString(c.Region),
		validators,
		languages,
		sensitive,
		minValidators,
		boolToInt(c.AnchoringEnabled),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert community: %w", err)
	}

	return s.GetCommunity(ctx, name)
}

// GetCommunity fetches a community by name. Missing yields (nil, nil).
func (s *Store) GetCommunity(ctx context.Context, name string) (*Community, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+communityColumns+` FROM communities WHERE name = ?`,
		strings.TrimSpace(name),
	)
	community, err := scanCommunity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get community: %w", err)
	}
	return community, nil
}

// ListCommunities returns all communities ordered by name.
func (s *Store) ListCommunities(ctx context.Context) ([]*Community, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT `+communityColumns+` FROM communities ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list communities: %w", err)
	}
	defer rows.Close()

	var communities []*Community
	for rows.Next() {
		community, err := scanCommunity(rows)
		if err != nil {
			return nil, err
		}
		communities = append(communities, community)
	}
	return communities, rows.Err()
}

const communityColumns = "name, description, default_language, region, validators_json, languages_json, sensitive_json, min_validators, anchoring_enabled, created_at, updated_at"

func marshalList(values []string) (any, error) {
	if len(values) == 0 {
		return nil, nil
	}
	encoded, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return string(encoded), nil
}

func unmarshalList(raw string) []string {
	if raw == "" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil
	}
	return values
}

func scanCommunity(scanner interface{ Scan(dest ...any) error }) (*Community, error) {
	var (
		name          string
		description   sql.NullString
		defaultLang   sql.NullString
		region        sql.NullString
		validators    sql.NullString
		languages     sql.NullString
		sensitive     sql.NullString
		minValidators sql.NullInt64
		anchoring     sql.NullInt64
		createdRaw    sql.NullString
		updatedRaw    sql.NullString
	)
	if err := scanner.Scan(
		&name,
		&description,
		&defaultLang,
		&region,
		&validators,
		&languages,
		&sensitive,
		&minValidators,
		&anchoring,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	community := &Community{
		Name:             name,
		Description:      description.String,
		DefaultLanguage:  defaultLang.String,
		Region:           region.String,
		Validators:       unmarshalList(validators.String),
		AllowedLanguages: unmarshalList(languages.String),
		SensitiveTerms:   unmarshalList(sensitive.String),
		MinValidators:    int(minValidators.Int64),
	}
	if anchoring.Valid {
		community.AnchoringEnabled = anchoring.Int64 != 0
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		community.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		community.UpdatedAt = updated
	}
	return community, nil
}
