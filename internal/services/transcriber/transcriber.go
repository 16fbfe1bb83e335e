// Package transcriber calls the external speech-to-text service. The
// service receives raw audio and a declared language hint and returns the
// transcript with what it actually detected.
package transcriber

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

// HTTPDoer describes the HTTP client used by the transcriber service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Result is one completed transcription.
type Result struct {
	Text             string  `json:"text"`
	DetectedLanguage string  `json:"detected_language"`
	DurationSeconds  float64 `json:"duration_seconds"`
}

// Client is an HTTP-backed transcription adapter. It performs a single
// synchronous call per transcript; retrying a failed call is the pipeline's
// job, and repeating a call with the same content is safe.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	timeout time.Duration
	client  HTTPDoer
}

// NewConfiguredClient builds a client from the transcriber config section.
func NewConfiguredClient(cfg *config.Config) *Client {
	if cfg == nil {
		return nil
	}
	return NewClient(cfg.Transcriber.BaseURL, cfg.Transcriber.APIKey, cfg.Transcriber.Model,
		time.Duration(cfg.Transcriber.TimeoutSeconds)*time.Second, http.DefaultClient)
}

// NewClient constructs a transcription client. A nil HTTPDoer falls back to
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

type transcribeRequest struct {
	Model    string `json:"model,omitempty"`
	Language string `json:"language,omitempty"`
	Audio    []byte `json:"audio"`
}

// Transcribe sends audio for transcription. The language is a hint; the
// service reports the language it detected in the result.
func (c *Client) Transcribe(ctx context.Context, audio []byte, lang string) (Result, error) {
	const stage = "transcription"
	if c == nil || c.baseURL == "" {
		return Result{}, services.Wrap(services.ErrConfiguration, stage, "transcribe", "transcriber base URL is not configured", nil)
	}
	if len(audio) == 0 {
		return Result{}, services.Wrap(services.ErrPermanent, stage, "transcribe", "no audio content to transcribe", nil)
	}

	body, err := json.Marshal(transcribeRequest{Model: c.model, Language: lang, Audio: audio})
	if err != nil {
		return Result{}, services.Wrap(services.ErrPermanent, stage, "transcribe", "encode request", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/transcriptions", bytes.NewReader(body))
	if err != nil {
		return Result{}, services.Wrap(services.ErrPermanent, stage, "transcribe", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransient, stage, "transcribe", "call transcription service", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		marker := services.MarkerForHTTPStatus(resp.StatusCode)
		detail := fmt.Sprintf("transcription service returned %d", resp.StatusCode)
		return Result{}, services.Wrap(marker, stage, "transcribe", detail, readErrorBody(resp.Body))
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, services.Wrap(services.ErrTransient, stage, "transcribe", "decode response", err)
	}
	if strings.TrimSpace(result.Text) == "" {
		return Result{}, services.Wrap(services.ErrPermanent, stage, "transcribe", "transcription service returned an empty transcript", nil)
	}
	return result, nil
}

func readErrorBody(r io.Reader) error {
	data, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return fmt.Errorf("%s", bytes.TrimSpace(data))
}
