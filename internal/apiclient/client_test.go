package apiclient_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"mila/internal/api"
	"mila/internal/apiclient"
)

func TestClientSendsBearerTokenAndDecodesStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/status" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(api.DaemonStatus{Running: true})
	}))
	defer server.Close()

	client := apiclient.New(server.URL, "secret")
	status, err := client.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running {
		t.Fatal("expected running status")
	}
}

func TestClientBuildsEntryQueryParameters(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode(api.EntryListResponse{Entries: []api.Entry{{ID: 1}}})
	}))
	defer server.Close()

	client := apiclient.New(server.URL, "")
	entries, err := client.ListEntries(context.Background(), []string{"pending", "anchored"}, "")
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	if gotQuery != "status=pending&status=anchored" {
		t.Fatalf("unexpected query %q", gotQuery)
	}

	if _, err := client.ListEntries(context.Background(), nil, "kikuyu"); err != nil {
		t.Fatalf("ListEntries by community: %v", err)
	}
	if gotQuery != "community=kikuyu" {
		t.Fatalf("unexpected query %q", gotQuery)
	}
}

func TestClientSurfacesAPIErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":"title is required"}`))
	}))
	defer server.Close()

	client := apiclient.New(server.URL, "")
	_, err := client.SubmitEntry(context.Background(), apiclient.SubmitRequest{})
	var apiErr *apiclient.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity || apiErr.Message != "title is required" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}

func TestClientPostsValidationPayload(t *testing.T) {
	var got apiclient.ValidationRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/validations" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(api.ValidationOutcome{Resolved: true})
	}))
	defer server.Close()

	client := apiclient.New(server.URL, "")
	outcome, err := client.SubmitValidation(context.Background(), apiclient.ValidationRequest{
		EntryID:   7,
		Validator: "elder-wanjiku",
		Decision:  "approved",
	})
	if err != nil {
		t.Fatalf("SubmitValidation: %v", err)
	}
	if !outcome.Resolved {
		t.Fatal("expected resolved outcome")
	}
	if got.EntryID != 7 || got.Decision != "approved" {
		t.Fatalf("unexpected payload %+v", got)
	}
}
