package archive_test

import (
	"testing"

	"mila/internal/archive"
)

func TestParseStatus(t *testing.T) {
	cases := []struct {
		input string
		want  archive.Status
		ok    bool
	}{
		{"pending", archive.StatusPending, true},
		{" Symbolized ", archive.StatusSymbolized, true},
		{"ANCHORED", archive.StatusAnchored, true},
		{"archived", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := archive.ParseStatus(tc.input)
		if ok != tc.ok || got != tc.want {
			t.Errorf("ParseStatus(%q) = %q, %v; want %q, %v", tc.input, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParseDecision(t *testing.T) {
	if got, ok := archive.ParseDecision(" Approved "); !ok || got != archive.DecisionApproved {
		t.Fatalf("ParseDecision approved = %q, %v", got, ok)
	}
	if _, ok := archive.ParseDecision("maybe"); ok {
		t.Fatal("expected unknown decision to be rejected")
	}
}

func TestStableStatusRollsBackClaims(t *testing.T) {
	cases := map[archive.Status]archive.Status{
		archive.StatusTranscribing: archive.StatusPending,
		archive.StatusSymbolizing:  archive.StatusTranscribed,
		archive.StatusAnchoring:    archive.StatusValidated,
		archive.StatusValidated:    archive.StatusValidated,
		archive.StatusRejected:     archive.StatusRejected,
	}
	for status, want := range cases {
		if got := status.StableStatus(); got != want {
			t.Errorf("StableStatus(%s) = %s, want %s", status, got, want)
		}
	}
}

func TestPhaseLabels(t *testing.T) {
	cases := map[archive.Status]string{
		archive.StatusPending:      "pending",
		archive.StatusTranscribing: "processing",
		archive.StatusSymbolized:   "processing",
		archive.StatusValidated:    "validated",
		archive.StatusAnchoring:    "validated",
		archive.StatusAnchored:     "anchored",
		archive.StatusRejected:     "rejected",
	}
	for status, want := range cases {
		if got := status.Phase(); got != want {
			t.Errorf("Phase(%s) = %s, want %s", status, got, want)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	if !archive.StatusAnchored.IsTerminal() || !archive.StatusRejected.IsTerminal() {
		t.Fatal("anchored and rejected must be terminal")
	}
	if archive.StatusValidated.IsTerminal() {
		t.Fatal("validated must not be terminal")
	}
}
