package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mila/internal/config"
)

const userAgent = "Mila-Go/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyEntryFrozen(ctx context.Context, title, reason string) error
	NotifyEntryValidated(ctx context.Context, title, community string) error
	NotifyEntryRejected(ctx context.Context, title, community string) error
	NotifyEntryAnchored(ctx context.Context, title, txRef string) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:   topic,
		client:     &http.Client{Timeout: timeout},
		review:     cfg.Notifications.Review,
		validation: cfg.Notifications.Validation,
		anchoring:  cfg.Notifications.Anchoring,
		errors:     cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client

	review     bool
	validation bool
	anchoring  bool
	errors     bool
}

func (n *ntfyService) NotifyEntryFrozen(ctx context.Context, title, reason string) error {
	if !n.review {
		return nil
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = "untitled entry"
	}
	data := payload{
		title:    "Entry needs review",
		message:  fmt.Sprintf("%s: %s", title, strings.TrimSpace(reason)),
		tags:     []string{"warning"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyEntryValidated(ctx context.Context, title, community string) error {
	if !n.validation {
		return nil
	}
	data := payload{
		title:   "Entry validated",
		message: fmt.Sprintf("%s approved by %s validators", strings.TrimSpace(title), strings.TrimSpace(community)),
		tags:    []string{"white_check_mark"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyEntryRejected(ctx context.Context, title, community string) error {
	if !n.validation {
		return nil
	}
	data := payload{
		title:   "Entry rejected",
		message: fmt.Sprintf("%s rejected by %s validators", strings.TrimSpace(title), strings.TrimSpace(community)),
		tags:    []string{"x"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyEntryAnchored(ctx context.Context, title, txRef string) error {
	if !n.anchoring {
		return nil
	}
	message := strings.TrimSpace(title)
	if ref := strings.TrimSpace(txRef); ref != "" {
		message = fmt.Sprintf("%s (tx %s)", message, ref)
	}
	data := payload{
		title:   "Entry anchored",
		message: message,
		tags:    []string{"link"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors || err == nil {
		return nil
	}
	message := err.Error()
	if label := strings.TrimSpace(contextLabel); label != "" {
		message = fmt.Sprintf("%s: %s", label, message)
	}
	data := payload{
		title:    "Mila error",
		message:  message,
		tags:     []string{"rotating_light"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:   "Mila test",
		message: "Notifications are configured correctly.",
		tags:    []string{"tada"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyEntryFrozen(context.Context, string, string) error    { return nil }
func (noopService) NotifyEntryValidated(context.Context, string, string) error { return nil }
func (noopService) NotifyEntryRejected(context.Context, string, string) error  { return nil }
func (noopService) NotifyEntryAnchored(context.Context, string, string) error  { return nil }
func (noopService) NotifyError(context.Context, error, string) error           { return nil }
func (noopService) TestNotification(context.Context) error                     { return nil }
