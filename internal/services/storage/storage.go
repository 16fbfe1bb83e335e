// Package storage talks to the content-addressed storage gateway holding
// the original submission media. The archive stores only pointers (CIDs);
// this client resolves them to bytes and writes new content.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"mila/internal/config"
	"mila/internal/services"
)

// HTTPDoer describes the HTTP client used by the storage gateway client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is an HTTP client for an IPFS-style gateway.
type Client struct {
	gatewayURL string
	timeout    time.Duration
	client     HTTPDoer
}

// NewConfiguredClient builds a client from the storage config section.
func NewConfiguredClient(cfg *config.Config) *Client {
	if cfg == nil {
		return nil
	}
	return NewClient(cfg.Storage.GatewayURL,
		time.Duration(cfg.Storage.TimeoutSeconds)*time.Second, http.DefaultClient)
}

// NewClient constructs a storage client. A nil HTTPDoer falls back to
// http.DefaultClient.
func NewClient(gatewayURL string, timeout time.Duration, client HTTPDoer) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		gatewayURL: strings.TrimRight(strings.TrimSpace(gatewayURL), "/"),
		timeout:    timeout,
		client:     client,
	}
}

// Fetch resolves a content pointer to its bytes. A pointer the gateway
// does not know maps to services.ErrNotFound.
func (c *Client) Fetch(ctx context.Context, pointer string) ([]byte, error) {
	const stage = "storage"
	if c == nil || c.gatewayURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, stage, "fetch", "storage gateway URL is not configured", nil)
	}
	pointer = strings.TrimSpace(pointer)
	if pointer == "" {
		return nil, services.Wrap(services.ErrPermanent, stage, "fetch", "empty content pointer", nil)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.gatewayURL+"/ipfs/"+pointer, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrPermanent, stage, "fetch", "build request", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, stage, "fetch", "call storage gateway", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		marker := services.MarkerForHTTPStatus(resp.StatusCode)
		detail := fmt.Sprintf("storage gateway returned %d for %s", resp.StatusCode, pointer)
		return nil, services.Wrap(marker, stage, "fetch", detail, nil)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, stage, "fetch", "read content", err)
	}
	if len(data) == 0 {
		return nil, services.Wrap(services.ErrPermanent, stage, "fetch", "storage gateway returned empty content", nil)
	}
	return data, nil
}

type addResponse struct {
	Hash string `json:"Hash"`
}

// Store writes content to the gateway and returns its pointer. Storing the
// same bytes twice returns the same pointer, so retries are harmless.
func (c *Client) Store(ctx context.Context, data []byte) (string, error) {
	const stage = "storage"
	if c == nil || c.gatewayURL == "" {
		return "", services.Wrap(services.ErrConfiguration, stage, "store", "storage gateway URL is not configured", nil)
	}
	if len(data) == 0 {
		return "", services.Wrap(services.ErrPermanent, stage, "store", "no content to store", nil)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "content")
	if err != nil {
		return "", services.Wrap(services.ErrPermanent, stage, "store", "build multipart body", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", services.Wrap(services.ErrPermanent, stage, "store", "build multipart body", err)
	}
	if err := writer.Close(); err != nil {
		return "", services.Wrap(services.ErrPermanent, stage, "store", "build multipart body", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.gatewayURL+"/api/v0/add", &body)
	if err != nil {
		return "", services.Wrap(services.ErrPermanent, stage, "store", "build request", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, stage, "store", "call storage gateway", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		marker := services.MarkerForHTTPStatus(resp.StatusCode)
		detail := fmt.Sprintf("storage gateway returned %d", resp.StatusCode)
		return "", services.Wrap(marker, stage, "store", detail, nil)
	}

	var parsed addResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", services.Wrap(services.ErrTransient, stage, "store", "decode response", err)
	}
	if strings.TrimSpace(parsed.Hash) == "" {
		return "", services.Wrap(services.ErrTransient, stage, "store", "storage gateway returned no content hash", nil)
	}
	return parsed.Hash, nil
}
