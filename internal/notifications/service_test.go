package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mila/internal/config"
	"mila/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyEntryAnchored(context.Background(), "Rain Songs", "0xabc"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	type captured struct {
		title    string
		message  string
		tags     string
		priority string
	}
	var got captured
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = captured{
			title:    r.Header.Get("Title"),
			message:  string(body),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Review = true
	cfg.Notifications.Validation = true
	cfg.Notifications.Anchoring = true
	cfg.Notifications.Errors = true
	svc := notifications.NewService(&cfg)

	if err := svc.NotifyEntryFrozen(context.Background(), "Rain Songs", "transcription failed"); err != nil {
		t.Fatalf("NotifyEntryFrozen: %v", err)
	}
	if got.title != "Entry needs review" {
		t.Fatalf("unexpected title %q", got.title)
	}
	if !strings.Contains(got.message, "Rain Songs") || !strings.Contains(got.message, "transcription failed") {
		t.Fatalf("unexpected message %q", got.message)
	}
	if got.priority != "high" {
		t.Fatalf("expected high priority, got %q", got.priority)
	}

	if err := svc.NotifyEntryAnchored(context.Background(), "Rain Songs", "0xabc"); err != nil {
		t.Fatalf("NotifyEntryAnchored: %v", err)
	}
	if !strings.Contains(got.message, "tx 0xabc") {
		t.Fatalf("expected tx ref in message, got %q", got.message)
	}

	if err := svc.NotifyError(context.Background(), errors.New("ledger unreachable"), "anchoring"); err != nil {
		t.Fatalf("NotifyError: %v", err)
	}
	if !strings.Contains(got.message, "anchoring: ledger unreachable") {
		t.Fatalf("unexpected error message %q", got.message)
	}
}

func TestNtfyServiceHonorsEventToggles(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Review = false
	cfg.Notifications.Validation = false
	cfg.Notifications.Anchoring = false
	cfg.Notifications.Errors = false
	svc := notifications.NewService(&cfg)

	_ = svc.NotifyEntryFrozen(context.Background(), "a", "b")
	_ = svc.NotifyEntryValidated(context.Background(), "a", "b")
	_ = svc.NotifyEntryRejected(context.Background(), "a", "b")
	_ = svc.NotifyEntryAnchored(context.Background(), "a", "b")
	_ = svc.NotifyError(context.Background(), errors.New("boom"), "ctx")
	if calls != 0 {
		t.Fatalf("expected no deliveries with toggles off, got %d", calls)
	}
}

func TestNtfyServiceSurfacesHTTPFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic missing", http.StatusNotFound)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)

	err := svc.TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected 404 error, got %v", err)
	}
}
