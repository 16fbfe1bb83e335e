// Package apiclient is the HTTP client the CLI uses to talk to a running
// mila daemon.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mila/internal/api"
	"mila/internal/config"
)

// Client talks to the daemon's HTTP API.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// New constructs a client for the given base URL. The token may be empty
// when the daemon runs without authentication.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// NewConfiguredClient constructs a client pointed at the API bind address
// from config.
func NewConfiguredClient(cfg *config.Config) *Client {
	if cfg == nil {
		return nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}
	if strings.HasPrefix(bind, ":") {
		bind = "127.0.0.1" + bind
	}
	return New("http://"+bind, cfg.Paths.APIToken)
}

// SubmitRequest mirrors the daemon's intake payload.
type SubmitRequest struct {
	Title          string            `json:"title"`
	Submitter      string            `json:"submitter"`
	Language       string            `json:"language,omitempty"`
	License        string            `json:"license,omitempty"`
	Community      string            `json:"community"`
	ContentPointer string            `json:"content_pointer,omitempty"`
	ContentBase64  string            `json:"content_base64,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// ValidationRequest mirrors the daemon's decision payload.
type ValidationRequest struct {
	EntryID   int64  `json:"entry_id"`
	Validator string `json:"validator"`
	Decision  string `json:"decision"`
	Notes     string `json:"notes,omitempty"`
}

// BulkValidationRequest applies one decision to many entries.
type BulkValidationRequest struct {
	EntryIDs  []int64 `json:"entry_ids"`
	Validator string  `json:"validator"`
	Decision  string  `json:"decision"`
	Notes     string  `json:"notes,omitempty"`
}

// CommunityRequest mirrors the daemon's community upsert payload.
type CommunityRequest struct {
	Name             string   `json:"name"`
	Description      string   `json:"description,omitempty"`
	DefaultLanguage  string   `json:"default_language,omitempty"`
	Region           string   `json:"region,omitempty"`
	Validators       []string `json:"validators,omitempty"`
	AllowedLanguages []string `json:"allowed_languages,omitempty"`
	SensitiveTerms   []string `json:"sensitive_terms,omitempty"`
	MinValidators    int      `json:"min_validators,omitempty"`
	AnchoringEnabled bool     `json:"anchoring_enabled,omitempty"`
}

// Status fetches daemon status.
func (c *Client) Status(ctx context.Context) (api.DaemonStatus, error) {
	var status api.DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &status)
	return status, err
}

// ListEntries fetches entries, optionally filtered by status values or a
// community name.
func (c *Client) ListEntries(ctx context.Context, statuses []string, community string) ([]api.Entry, error) {
	values := url.Values{}
	for _, status := range statuses {
		if trimmed := strings.TrimSpace(status); trimmed != "" {
			values.Add("status", trimmed)
		}
	}
	if community = strings.TrimSpace(community); community != "" {
		values.Set("community", community)
	}
	path := "/api/entries"
	if encoded := values.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var payload api.EntryListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Entries, nil
}

// GetEntry fetches one entry with its validations.
func (c *Client) GetEntry(ctx context.Context, id int64) (*api.EntryResponse, error) {
	var payload api.EntryResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/entries/%d", id), nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// SubmitEntry submits a new knowledge entry.
func (c *Client) SubmitEntry(ctx context.Context, req SubmitRequest) (*api.Entry, error) {
	var payload api.SubmitResponse
	if err := c.do(ctx, http.MethodPost, "/api/entries", req, &payload); err != nil {
		return nil, err
	}
	return &payload.Entry, nil
}

// RetryEntry clears the review freeze on a frozen entry.
func (c *Client) RetryEntry(ctx context.Context, id int64) (int64, error) {
	var payload api.RetryResponse
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/entries/%d/retry", id), nil, &payload); err != nil {
		return 0, err
	}
	return payload.Released, nil
}

// SubmitValidation records one validator decision.
func (c *Client) SubmitValidation(ctx context.Context, req ValidationRequest) (*api.ValidationOutcome, error) {
	var payload api.ValidationOutcome
	if err := c.do(ctx, http.MethodPost, "/api/validations", req, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// SubmitBulkValidation records one decision across many entries.
func (c *Client) SubmitBulkValidation(ctx context.Context, req BulkValidationRequest) ([]api.BulkValidationResult, error) {
	var payload api.BulkValidationResponse
	if err := c.do(ctx, http.MethodPost, "/api/validations/bulk", req, &payload); err != nil {
		return nil, err
	}
	return payload.Results, nil
}

// ListCommunities fetches all configured communities.
func (c *Client) ListCommunities(ctx context.Context) ([]api.Community, error) {
	var payload api.CommunityListResponse
	if err := c.do(ctx, http.MethodGet, "/api/communities", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Communities, nil
}

// GetCommunity fetches one community by name.
func (c *Client) GetCommunity(ctx context.Context, name string) (*api.Community, error) {
	var payload api.CommunityResponse
	if err := c.do(ctx, http.MethodGet, "/api/communities/"+url.PathEscape(name), nil, &payload); err != nil {
		return nil, err
	}
	return &payload.Community, nil
}

// SetCommunity creates or updates a community.
func (c *Client) SetCommunity(ctx context.Context, req CommunityRequest) (*api.Community, error) {
	var payload api.CommunityResponse
	if err := c.do(ctx, http.MethodPost, "/api/communities", req, &payload); err != nil {
		return nil, err
	}
	return &payload.Community, nil
}

// CheckRules dry-runs community rules against hypothetical facts.
func (c *Client) CheckRules(ctx context.Context, community string, req api.CheckRequest) (*api.RuleCheck, error) {
	var payload api.RuleCheck
	path := "/api/communities/" + url.PathEscape(community) + "/check"
	if err := c.do(ctx, http.MethodPost, path, req, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// APIError is a non-2xx daemon response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("daemon returned status %d: %s", e.StatusCode, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c == nil {
		return fmt.Errorf("api client is not configured")
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: decodeErrorMessage(resp.Body)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 2048))
	if err != nil {
		return ""
	}
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(data))
}
