package model

import (
	"strings"
	"testing"
)

func TestNewIDFormat(t *testing.T) {
	id := NewID()
	if len(id) != 32 {
		t.Fatalf("expected 32 characters, got %d", len(id))
	}
	if strings.ContainsAny(id, "-ABCDEF") {
		t.Fatalf("expected lowercase hex without dashes, got %q", id)
	}
}

func TestDocumentLifecycle(t *testing.T) {
	doc := NewDocument("nb1", "https://example.com/a")
	if doc.Status != DocumentPending {
		t.Fatalf("new document status = %s", doc.Status)
	}

	processing, err := doc.StartProcessing()
	if err != nil {
		t.Fatalf("start processing: %v", err)
	}
	completed, err := processing.Complete("Title", "hash")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.Status != DocumentCompleted || completed.Title != "Title" || completed.ContentHash != "hash" {
		t.Fatalf("unexpected completed document: %+v", completed)
	}

	// the original value is untouched
	if doc.Status != DocumentPending {
		t.Fatalf("transition mutated the original value: %s", doc.Status)
	}
}

func TestDocumentIllegalTransitions(t *testing.T) {
	doc := NewDocument("nb1", "https://example.com/a")
	processing, _ := doc.StartProcessing()
	completed, _ := processing.Complete("", "h")

	if _, err := completed.StartProcessing(); err == nil {
		t.Fatal("expected COMPLETED -> PROCESSING to fail")
	}
	if _, err := doc.Complete("t", "h"); err == nil {
		t.Fatal("expected PENDING -> COMPLETED to fail")
	}
	if _, err := doc.Retry(); err == nil {
		t.Fatal("expected PENDING -> PENDING retry to fail")
	}
}

func TestDocumentRetryAfterFailure(t *testing.T) {
	doc := NewDocument("nb1", "https://example.com/a")
	processing, _ := doc.StartProcessing()
	failed, err := processing.Fail("boom")
	if err != nil {
		t.Fatalf("fail: %v", err)
	}
	if failed.ErrorMessage != "boom" {
		t.Fatalf("error message = %q", failed.ErrorMessage)
	}
	retried, err := failed.Retry()
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if retried.Status != DocumentPending || retried.ErrorMessage != "" {
		t.Fatalf("unexpected retried document: %+v", retried)
	}
}

func TestNewCrawlJobValidation(t *testing.T) {
	tests := []struct {
		name    string
		seed    string
		depth   int
		pages   int
		include string
		wantErr bool
	}{
		{name: "valid", seed: "https://ex.com/docs", depth: 2, pages: 10},
		{name: "relative seed", seed: "/docs", depth: 1, pages: 1, wantErr: true},
		{name: "non-http scheme", seed: "ftp://ex.com/", depth: 1, pages: 1, wantErr: true},
		{name: "zero depth", seed: "https://ex.com/", depth: 0, pages: 1, wantErr: true},
		{name: "zero pages", seed: "https://ex.com/", depth: 1, pages: 0, wantErr: true},
		{name: "bad include regex", seed: "https://ex.com/", depth: 1, pages: 1, include: "[", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job, err := NewCrawlJob("nb1", tt.seed, tt.depth, tt.pages, tt.include, "")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if job.Domain != "ex.com" {
				t.Fatalf("domain = %q", job.Domain)
			}
		})
	}
}

func TestCrawlJobCancellation(t *testing.T) {
	job, _ := NewCrawlJob("nb1", "https://ex.com/", 1, 5, "", "")

	cancelled, err := job.Cancel()
	if err != nil {
		t.Fatalf("cancel pending job: %v", err)
	}
	if !cancelled.Terminal() {
		t.Fatal("cancelled job should be terminal")
	}
	if _, err := cancelled.Cancel(); err == nil {
		t.Fatal("expected cancel of terminal job to fail")
	}
	if _, err := cancelled.Start(); err == nil {
		t.Fatal("expected start of terminal job to fail")
	}

	running, _ := job.Start()
	if _, err := running.Cancel(); err != nil {
		t.Fatalf("cancel running job: %v", err)
	}
}

func TestEvaluationRunTransitions(t *testing.T) {
	if _, err := NewEvaluationRun("ds", 0, EvaluationRetrievalOnly); err == nil {
		t.Fatal("expected k=0 to be rejected")
	}
	if _, err := NewEvaluationRun("ds", 5, "weird"); err == nil {
		t.Fatal("expected unknown type to be rejected")
	}

	run, err := NewEvaluationRun("ds", 5, EvaluationFullRAG)
	if err != nil {
		t.Fatalf("new run: %v", err)
	}
	running, err := run.Start()
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := running.Start(); err == nil {
		t.Fatal("expected double start to fail")
	}
	done, err := running.Complete(AggregateMetrics{Precision: 0.2})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Metrics.Precision != 0.2 {
		t.Fatalf("metrics not recorded: %+v", done.Metrics)
	}
}

func TestParseDifficulty(t *testing.T) {
	if d := ParseDifficulty("factual"); d != DifficultyFactual {
		t.Fatalf("got %q", d)
	}
	if d := ParseDifficulty("impossible"); d != "" {
		t.Fatalf("unknown label should map to empty, got %q", d)
	}
}
