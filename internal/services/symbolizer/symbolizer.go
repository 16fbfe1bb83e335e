// Package symbolizer calls the external fact-extraction service, which
// turns a transcript into atoms. An atom is an opaque structured-fact
// string, for example `(treats "mwarubaini" "ngozi")`; its internal grammar
// belongs to the service, and the pipeline only checks gross shape before
// storing it.
package symbolizer

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

// HTTPDoer describes the HTTP client used by the symbolizer service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Result is one completed extraction. Raw carries the service's unparsed
// output for debugging.
type Result struct {
	Atoms []string `json:"atoms"`
	Raw   string   `json:"raw"`
}

// Client is an HTTP-backed fact-extraction adapter.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	timeout time.Duration
	client  HTTPDoer
}

// NewConfiguredClient builds a client from the symbolizer config section.
func NewConfiguredClient(cfg *config.Config) *Client {
	if cfg == nil {
		return nil
	}
	return NewClient(cfg.Symbolizer.BaseURL, cfg.Symbolizer.APIKey, cfg.Symbolizer.Model,
		time.Duration(cfg.Symbolizer.TimeoutSeconds)*time.Second, http.DefaultClient)
}

// NewClient constructs an extraction client. A nil HTTPDoer falls back to
// http.DefaultClient.
func NewClient(baseURL, apiKey, model string, timeout time.Duration, client HTTPDoer) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		model:   strings.TrimSpace(model),
		timeout: timeout,
		client:  client,
	}
}

type extractRequest struct {
	Model      string `json:"model,omitempty"`
	Transcript string `json:"transcript"`
	Context    string `json:"context,omitempty"`
}

// ExtractAtoms asks the service for structured facts from a transcript.
// The context string carries community and language hints for the
// extraction model.
func (c *Client) ExtractAtoms(ctx context.Context, transcript, extractionContext string) (Result, error) {
	const stage = "symbolization"
	if c == nil || c.baseURL == "" {
		return Result{}, services.Wrap(services.ErrConfiguration, stage, "extract-atoms", "symbolizer base URL is not configured", nil)
	}
	if strings.TrimSpace(transcript) == "" {
		return Result{}, services.Wrap(services.ErrPermanent, stage, "extract-atoms", "no transcript to symbolize", nil)
	}

	body, err := json.Marshal(extractRequest{Model: c.model, Transcript: transcript, Context: extractionContext})
	if err != nil {
		return Result{}, services.Wrap(services.ErrPermanent, stage, "extract-atoms", "encode request", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/extract", bytes.NewReader(body))
	if err != nil {
		return Result{}, services.Wrap(services.ErrPermanent, stage, "extract-atoms", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransient, stage, "extract-atoms", "call symbolization service", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		marker := services.MarkerForHTTPStatus(resp.StatusCode)
		detail := fmt.Sprintf("symbolization service returned %d", resp.StatusCode)
		return Result{}, services.Wrap(marker, stage, "extract-atoms", detail, readErrorBody(resp.Body))
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, services.Wrap(services.ErrTransient, stage, "extract-atoms", "decode response", err)
	}
	if len(result.Atoms) == 0 {
		return Result{}, services.Wrap(services.ErrPermanent, stage, "extract-atoms", "symbolization service returned no atoms", nil)
	}
	if err := ValidateAtoms(result.Atoms); err != nil {
		return Result{}, services.Wrap(services.ErrPermanent, stage, "extract-atoms", "malformed atoms", err)
	}
	return result, nil
}

// ValidateAtoms checks the gross shape of extracted atoms: each must be
// non-blank with balanced parentheses and brackets. Atom grammar beyond
// that is the extraction service's concern.
func ValidateAtoms(atoms []string) error {
	for i, atom := range atoms {
		if strings.TrimSpace(atom) == "" {
			return fmt.Errorf("atom %d is blank", i)
		}
		if !balanced(atom) {
			return fmt.Errorf("atom %d has unbalanced delimiters: %s", i, atom)
		}
	}
	return nil
}

func balanced(s string) bool {
	var stack []rune
	for _, r := range s {
		switch r {
		case '(', '[':
			stack = append(stack, r)
		case ')':
			if len(stack) == 0 || stack[len(stack)-1] != '(' {
				return false
			}
			stack = stack[:len(stack)-1]
		case ']':
			if len(stack) == 0 || stack[len(stack)-1] != '[' {
				return false
			}
			stack = stack[:len(stack)-1]
		}
	}
	return len(stack) == 0
}

func readErrorBody(r io.Reader) error {
	data, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return fmt.Errorf("%s", bytes.TrimSpace(data))
}
