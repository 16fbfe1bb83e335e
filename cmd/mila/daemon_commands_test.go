package main

import (
	"strings"
	"testing"

	"mila/internal/api"
)

func TestRenderArchiveStatsSortsStatuses(t *testing.T) {
	out := renderArchiveStats(map[string]int{
		"symbolized": 2,
		"anchored":   1,
		"pending":    4,
	})
	anchored := strings.Index(out, "anchored")
	pending := strings.Index(out, "pending")
	symbolized := strings.Index(out, "symbolized")
	if anchored == -1 || pending == -1 || symbolized == -1 {
		t.Fatalf("missing statuses in output:\n%s", out)
	}
	if !(anchored < pending && pending < symbolized) {
		t.Fatalf("expected alphabetical status order, got:\n%s", out)
	}
}

func TestRenderArchiveStatsEmpty(t *testing.T) {
	out := renderArchiveStats(nil)
	if !strings.Contains(out, "archive is empty") {
		t.Fatalf("unexpected empty-archive output %q", out)
	}
}

func TestRenderStageMetrics(t *testing.T) {
	out := renderStageMetrics(map[string]api.StageMetrics{
		"transcription": {Started: 5, Completed: 4, Failed: 1, Retried: 2},
	})
	for _, fragment := range []string{"transcription", "5", "4", "1", "2", "Retried"} {
		if !strings.Contains(out, fragment) {
			t.Fatalf("expected %q in metrics table:\n%s", fragment, out)
		}
	}
	if renderStageMetrics(nil) != "" {
		t.Fatal("expected empty output for no metrics")
	}
}

func TestFormatPhaseMarksReview(t *testing.T) {
	entry := api.Entry{Phase: "processing", NeedsReview: true}
	if got := formatPhase(entry); got != "processing (review)" {
		t.Fatalf("formatPhase = %q", got)
	}
	entry.NeedsReview = false
	if got := formatPhase(entry); got != "processing" {
		t.Fatalf("formatPhase = %q", got)
	}
}
