// Package ledger anchors validated entries on a blockchain through an
// anchoring gateway. The gateway owns key management and contract calls;
// this client submits anchor and decision requests and records the
// resulting transaction references. Anchoring is best-effort throughout:
// callers treat every failure here as retriable out-of-band and never let
// it regress entry state.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mila/internal/config"
	"mila/internal/services"
)

// HTTPDoer describes the HTTP client used by the ledger service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Receipt is the gateway's confirmation of a submitted transaction.
type Receipt struct {
	TxRef         string `json:"tx_ref"`
	LedgerEntryID string `json:"ledger_entry_id"`
}

// Client is an HTTP-backed anchoring adapter. A nil *Client means the
// ledger is disabled; both calls then report ErrConfiguration.
type Client struct {
	baseURL  string
	apiKey   string
	contract string
	timeout  time.Duration
	client   HTTPDoer
}

// NewConfiguredClient builds a client from the ledger config section, or
// nil when anchoring is disabled.
func NewConfiguredClient(cfg *config.Config) *Client {
	if cfg == nil || !cfg.Ledger.Enabled {
		return nil
	}
	return NewClient(cfg.Ledger.BaseURL, cfg.Ledger.APIKey, cfg.Ledger.ContractAddress,
		time.Duration(cfg.Ledger.TimeoutSeconds)*time.Second, http.DefaultClient)
}

// NewClient constructs an anchoring client. A nil HTTPDoer falls back to
// http.DefaultClient.
func NewClient(baseURL, apiKey, contract string, timeout time.Duration, client HTTPDoer) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:   strings.TrimSpace(apiKey),
		contract: strings.TrimSpace(contract),
		timeout:  timeout,
		client:   client,
	}
}

// Enabled reports whether the client can reach a configured gateway.
func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != ""
}

type anchorRequest struct {
	Contract       string `json:"contract,omitempty"`
	ContentPointer string `json:"content_pointer"`
	License        string `json:"license,omitempty"`
}

// Anchor records a content pointer on the ledger and returns the
// transaction reference plus the ledger's own entry id. The gateway
// deduplicates by content pointer, so repeating an anchor after a
// transient failure returns the original receipt.
func (c *Client) Anchor(ctx context.Context, pointer, license string) (Receipt, error) {
	const stage = "anchoring"
	if !c.Enabled() {
		return Receipt{}, services.Wrap(services.ErrConfiguration, stage, "anchor", "ledger gateway is not configured", nil)
	}
	pointer = strings.TrimSpace(pointer)
	if pointer == "" {
		return Receipt{}, services.Wrap(services.ErrPermanent, stage, "anchor", "empty content pointer", nil)
	}
	return c.post(ctx, stage, "anchor", "/v1/anchors",
		anchorRequest{Contract: c.contract, ContentPointer: pointer, License: license})
}

type decisionRequest struct {
	Contract      string `json:"contract,omitempty"`
	LedgerEntryID string `json:"ledger_entry_id"`
	Approved      bool   `json:"approved"`
}

// RecordDecision writes the community's consensus outcome against an
// already anchored ledger entry.
func (c *Client) RecordDecision(ctx context.Context, ledgerEntryID string, approved bool) (Receipt, error) {
	const stage = "anchoring"
	if !c.Enabled() {
		return Receipt{}, services.Wrap(services.ErrConfiguration, stage, "record-decision", "ledger gateway is not configured", nil)
	}
	ledgerEntryID = strings.TrimSpace(ledgerEntryID)
	if ledgerEntryID == "" {
		return Receipt{}, services.Wrap(services.ErrPermanent, stage, "record-decision", "empty ledger entry id", nil)
	}
	return c.post(ctx, stage, "record-decision", "/v1/decisions",
		decisionRequest{Contract: c.contract, LedgerEntryID: ledgerEntryID, Approved: approved})
}

func (c *Client) post(ctx context.Context, stage, operation, path string, payload any) (Receipt, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Receipt{}, services.Wrap(services.ErrPermanent, stage, operation, "encode request", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return Receipt{}, services.Wrap(services.ErrPermanent, stage, operation, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Receipt{}, services.Wrap(services.ErrTransient, stage, operation, "call ledger gateway", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		marker := services.MarkerForHTTPStatus(resp.StatusCode)
		detail := fmt.Sprintf("ledger gateway returned %d", resp.StatusCode)
		return Receipt{}, services.Wrap(marker, stage, operation, detail, readErrorBody(resp.Body))
	}

	var receipt Receipt
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
		return Receipt{}, services.Wrap(services.ErrTransient, stage, operation, "decode response", err)
	}
	if strings.TrimSpace(receipt.TxRef) == "" {
		return Receipt{}, services.Wrap(services.ErrTransient, stage, operation, "ledger gateway returned no transaction reference", nil)
	}
	return receipt, nil
}

func readErrorBody(r io.Reader) error {
	data, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return fmt.Errorf("%s", bytes.TrimSpace(data))
}
