package api

import (
	"context"
	"fmt"
	"strings"

	"mila/internal/archive"
	"mila/internal/cache"
	"mila/internal/rules"
	"mila/internal/services"
)

// CommunityStore abstracts the community persistence operations the API
// needs.
type CommunityStore interface {
	UpsertCommunity(ctx context.Context, c *archive.Community) (*archive.Community, error)
	GetCommunity(ctx context.Context, name string) (*archive.Community, error)
	ListCommunities(ctx context.Context) ([]*archive.Community, error)
}

// CheckRequest carries the facts for a dry-run rule evaluation. The
// submission itself is never persisted.
type CheckRequest struct {
	Community  string `json:"community"`
	Title      string `json:"title"`
	Language   string `json:"language"`
	Transcript string `json:"transcript"`
}

// CommunityService exposes community governance operations.
type CommunityService struct {
	store      CommunityStore
	memoized   *cache.Communities
	invalidate func(name string)
}

// NewCommunityService constructs a CommunityService. The memoized reader
// may be nil, in which case lookups always hit the store.
func NewCommunityService(store CommunityStore, memoized *cache.Communities) *CommunityService {
	if store == nil {
		return nil
	}
	svc := &CommunityService{store: store, memoized: memoized}
	if memoized != nil {
		svc.invalidate = memoized.Invalidate
	}
	return svc
}

// List returns all configured communities.
func (s *CommunityService) List(ctx context.Context) ([]Community, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	records, err := s.store.ListCommunities(ctx)
	if err != nil {
		return nil, err
	}
	return FromCommunities(records), nil
}

// Describe fetches a single community by name.
func (s *CommunityService) Describe(ctx context.Context, name string) (*Community, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	record, err := s.lookup(ctx, name)
	if err != nil || record == nil {
		return nil, err
	}
	dto := FromCommunity(record)
	return &dto, nil
}

// Set creates or updates a community and invalidates its cached copy.
func (s *CommunityService) Set(ctx context.Context, community *archive.Community) (*Community, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	if community == nil || strings.TrimSpace(community.Name) == "" {
		return nil, services.Wrap(services.ErrValidation, "api", "set community", "community name required", nil)
	}
	record, err := s.store.UpsertCommunity(ctx, community)
	if err != nil {
		return nil, err
	}
	if s.invalidate != nil {
		s.invalidate(record.Name)
	}
	dto := FromCommunity(record)
	return &dto, nil
}

// Check evaluates community rules against hypothetical facts without
// creating an entry.
func (s *CommunityService) Check(ctx context.Context, req CheckRequest) (*RuleCheck, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	name := strings.TrimSpace(req.Community)
	if name == "" {
		return nil, services.Wrap(services.ErrValidation, "api", "check rules", "community name required", nil)
	}
	community, err := s.lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	if community == nil {
		return nil, services.Wrap(services.ErrNotFound, "api", "check rules", fmt.Sprintf("community %q not configured", name), nil)
	}
	facts := rules.EntryFacts{
		Title:      req.Title,
		Language:   req.Language,
		Transcript: req.Transcript,
	}
	result := rules.Evaluate(facts, community)
	return &RuleCheck{Community: community.Name, Pass: result.Pass, Violations: result.Violations}, nil
}

func (s *CommunityService) lookup(ctx context.Context, name string) (*archive.Community, error) {
	if s.memoized != nil {
		return s.memoized.Get(ctx, name)
	}
	return s.store.GetCommunity(ctx, name)
}
