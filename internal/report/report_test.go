package report

import (
	"context"
	"strings"
	"testing"

	"github.com/stellarlinkco/batch-eval/internal/config"
	"github.com/stellarlinkco/batch-eval/internal/store"
)

func setup(t *testing.T) (*Reporter, *store.SQLiteStore) {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	cfg := &config.Config{
		Models: []config.ModelConfig{
			{Name: "model-a", Provider: "openai"},
			{Name: "model-b", Provider: "anthropic"},
		},
		Benchmarks: map[string]config.BenchmarkConfig{
			"mmlu": {MaxOutputTokens: 1},
		},
	}

	r, err := New(s, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r, s
}

// seedResult records one question plus a result for each model, completing
// model-a's with the given score and leaving model-b's pending.
func seedResult(t *testing.T, s *store.SQLiteStore, sessionID int64, score float64) {
	t.Helper()
	ctx := context.Background()

	qID, err := s.AddPreparedQuestion(ctx, &store.PreparedQuestion{
		SessionID:     sessionID,
		BenchmarkName: "mmlu",
		Category:      "general",
		Query:         "Pick one.",
		CorrectAnswer: "A",
	})
	if err != nil {
		t.Fatalf("AddPreparedQuestion: %v", err)
	}

	aID, err := s.AddModelResult(ctx, &store.ModelResult{
		PreparedQuestionID: qID,
		ModelName:          "model-a",
		Status:             store.ResultPending,
		EstimatedInTokens:  10,
		EstimatedOutTokens: 1,
		EstimatedInCost:    0.001,
		EstimatedOutCost:   0.0001,
	})
	if err != nil {
		t.Fatalf("AddModelResult model-a: %v", err)
	}
	if _, err := s.AddModelResult(ctx, &store.ModelResult{
		PreparedQuestionID: qID,
		ModelName:          "model-b",
		Status:             store.ResultPending,
	}); err != nil {
		t.Fatalf("AddModelResult model-b: %v", err)
	}

	if err := s.UpdateExecutionResults(ctx, aID, store.ExecutionUpdate{
		Response:       "A",
		ActualInTokens: 10,
		ActualInCost:   0.002,
		ActualOutCost:  0.0002,
		Score:          score,
	}); err != nil {
		t.Fatalf("UpdateExecutionResults: %v", err)
	}
}

func TestSessionReport(t *testing.T) {
	r, s := setup(t)
	seedResult(t, s, 1, 1)
	seedResult(t, s, 1, 0)

	entries, err := r.SessionReport(context.Background(), 1)
	if err != nil {
		t.Fatalf("SessionReport: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries): got %d want 2", len(entries))
	}

	// model-a completed 2/2 with avg 0.5 and ranks above the pending model-b.
	a := entries[0]
	if a.ModelName != "model-a" {
		t.Fatalf("rank1: got %q want model-a", a.ModelName)
	}
	if a.Questions != 2 || a.Completed != 2 {
		t.Errorf("model-a counts: got %d/%d want 2/2", a.Completed, a.Questions)
	}
	if a.AvgScore != 0.5 {
		t.Errorf("model-a avg score: got %v want 0.5", a.AvgScore)
	}
	if a.Provider != "openai" {
		t.Errorf("model-a provider: got %q", a.Provider)
	}
	if a.ActualCost <= 0 || a.EstimatedCost <= 0 {
		t.Errorf("model-a costs: actual %v estimated %v", a.ActualCost, a.EstimatedCost)
	}

	b := entries[1]
	if b.ModelName != "model-b" {
		t.Fatalf("rank2: got %q want model-b", b.ModelName)
	}
	if b.Completed != 0 || b.Questions != 2 {
		t.Errorf("model-b counts: got %d/%d want 0/2", b.Completed, b.Questions)
	}
	if b.AvgScore != 0 {
		t.Errorf("model-b avg score: got %v want 0", b.AvgScore)
	}
}

func TestSessionReport_EmptySession(t *testing.T) {
	r, _ := setup(t)

	entries, err := r.SessionReport(context.Background(), 7)
	if err != nil {
		t.Fatalf("SessionReport: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("len(entries): got %d want 0", len(entries))
	}

	if _, err := r.SessionReport(context.Background(), 0); err == nil {
		t.Fatal("expected session validation error")
	}
}

func TestRender(t *testing.T) {
	if got := Render(nil); !strings.Contains(got, "no results") {
		t.Fatalf("empty render: got %q", got)
	}

	out := Render([]Entry{
		{BenchmarkName: "gsm8k", ModelName: "model-a", AvgScore: 0.75, Completed: 3, Questions: 4, ActualCost: 0.01},
		{BenchmarkName: "mmlu", ModelName: "model-a", AvgScore: 1, Completed: 2, Questions: 2},
	})
	if !strings.Contains(out, "gsm8k\n") || !strings.Contains(out, "mmlu\n") {
		t.Fatalf("missing benchmark headers: %q", out)
	}
	if !strings.Contains(out, "75.0%") || !strings.Contains(out, "3/4 completed") {
		t.Fatalf("missing aggregate line: %q", out)
	}
}
