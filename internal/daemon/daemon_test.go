package daemon_test

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mila/internal/archive"
	"mila/internal/config"
	"mila/internal/consensus"
	"mila/internal/daemon"
	"mila/internal/logging"
	"mila/internal/pipeline"
	"mila/internal/services"
	"mila/internal/testsupport"
)

func TestDaemonEnforcesSingleInstance(t *testing.T) {
	td := startTestDaemon(t)

	store := testsupport.MustOpenStore(t, td.cfg)
	logger := logging.NewNop()
	manager := pipeline.NewManager(td.cfg, store, logger)
	manager.ConfigureStages(pipeline.StageSet{
		Transcriber: &passthroughStage{name: "transcription"},
	})
	engine, err := consensus.NewEngine(td.cfg, store, nil, nil, logger)
	if err != nil {
		t.Fatalf("create engine: %v", err)
	}

	second, err := daemon.New(td.cfg, store, logger, manager, engine, nil)
	if err != nil {
		t.Fatalf("create second daemon: %v", err)
	}
	defer second.Stop()

	err = second.Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected lock contention error, got %v", err)
	}
}

func TestDaemonSubmitStoresInlineContent(t *testing.T) {
	var uploaded []byte
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v0/add" {
			http.NotFound(w, r)
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		buf := make([]byte, 1024)
		n, _ := file.Read(buf)
		uploaded = buf[:n]
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"Hash":"bafyinline"}`))
	}))
	defer gateway.Close()

	td := startTestDaemon(t, func(cfg *config.Config) {
		cfg.Storage.GatewayURL = gateway.URL
	})
	seedCommunity(t, td, "kikuyu")

	entry, err := td.daemon.Submit(context.Background(), daemon.SubmitRequest{
		Title:         "Recorded Interview",
		Submitter:     "field-team",
		Community:     "kikuyu",
		ContentBase64: base64.StdEncoding.EncodeToString([]byte("audio-bytes")),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if entry.ContentPointer != "bafyinline" {
		t.Fatalf("expected stored pointer, got %q", entry.ContentPointer)
	}
	if string(uploaded) != "audio-bytes" {
		t.Fatalf("unexpected uploaded payload %q", uploaded)
	}
}

func TestDaemonSubmitRejectsConflictingContent(t *testing.T) {
	td := startTestDaemon(t)
	seedCommunity(t, td, "kikuyu")

	_, err := td.daemon.Submit(context.Background(), daemon.SubmitRequest{
		Title:          "Recorded Interview",
		Submitter:      "field-team",
		Community:      "kikuyu",
		ContentPointer: "bafyexisting",
		ContentBase64:  base64.StdEncoding.EncodeToString([]byte("audio")),
	})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = td.daemon.Submit(context.Background(), daemon.SubmitRequest{
		Title:     "Recorded Interview",
		Submitter: "field-team",
		Community: "kikuyu",
	})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for missing content, got %v", err)
	}
}

func TestDaemonSubmitDefaultsLanguage(t *testing.T) {
	td := startTestDaemon(t)
	testsupport.SeedCommunity(t, td.store, &archive.Community{
		Name:            "kikuyu",
		DefaultLanguage: "ki",
		Validators:      []string{"elder-wanjiku"},
		MinValidators:   1,
	})

	entry, err := td.daemon.Submit(context.Background(), daemon.SubmitRequest{
		Title:          "Naming Ceremony",
		Submitter:      "field-team",
		Community:      "kikuyu",
		ContentPointer: "bafynaming",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if entry.Language != "ki" {
		t.Fatalf("expected community default language, got %q", entry.Language)
	}
}
