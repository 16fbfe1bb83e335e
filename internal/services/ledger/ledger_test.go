package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mila/internal/config"
	"mila/internal/services"
)

func TestAnchorSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/anchors" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var req anchorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.ContentPointer != "QmTest123" || req.License != "CC-BY-SA" {
			t.Fatalf("unexpected request: %+v", req)
		}
		if req.Contract != "0xabc" {
			t.Fatalf("unexpected contract: %q", req.Contract)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Receipt{TxRef: "0xdeadbeef", LedgerEntryID: "77"})
	}))
	defer server.Close()

	client := NewClient(server.URL, "key-123", "0xabc", time.Second, nil)
	receipt, err := client.Anchor(context.Background(), "QmTest123", "CC-BY-SA")
	if err != nil {
		t.Fatalf("Anchor returned error: %v", err)
	}
	if receipt.TxRef != "0xdeadbeef" || receipt.LedgerEntryID != "77" {
		t.Errorf("unexpected receipt: %+v", receipt)
	}
}

func TestRecordDecisionSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/decisions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var req decisionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.LedgerEntryID != "77" || !req.Approved {
			t.Fatalf("unexpected request: %+v", req)
		}
		json.NewEncoder(w).Encode(Receipt{TxRef: "0xfeedface", LedgerEntryID: "77"})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "", time.Second, nil)
	receipt, err := client.RecordDecision(context.Background(), "77", true)
	if err != nil {
		t.Fatalf("RecordDecision returned error: %v", err)
	}
	if receipt.TxRef != "0xfeedface" {
		t.Errorf("unexpected receipt: %+v", receipt)
	}
}

func TestAnchorGatewayErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "chain congested", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "", time.Second, nil)
	_, err := client.Anchor(context.Background(), "QmTest", "")
	if !services.IsTransient(err) {
		t.Errorf("gateway error should be transient, got %v", err)
	}
}

func TestDisabledLedger(t *testing.T) {
	cfg := config.Default()
	cfg.Ledger.Enabled = false

	client := NewConfiguredClient(&cfg)
	if client.Enabled() {
		t.Fatal("disabled ledger should not report enabled")
	}
	if _, err := client.Anchor(context.Background(), "QmTest", ""); !errors.Is(err, services.ErrConfiguration) {
		t.Errorf("disabled ledger anchor should be a configuration error, got %v", err)
	}
	if _, err := client.RecordDecision(context.Background(), "77", false); !errors.Is(err, services.ErrConfiguration) {
		t.Errorf("disabled ledger decision should be a configuration error, got %v", err)
	}
}

func TestAnchorMissingTxRefIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Receipt{})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "", time.Second, nil)
	_, err := client.Anchor(context.Background(), "QmTest", "")
	if !services.IsTransient(err) {
		t.Errorf("missing tx ref should be transient, got %v", err)
	}
}
