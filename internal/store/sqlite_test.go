package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedQuestion(t *testing.T, st *SQLiteStore, sessionID int64, benchmark, answer string) int64 {
	t.Helper()
	id, err := st.AddPreparedQuestion(context.Background(), &PreparedQuestion{
		SessionID:     sessionID,
		BenchmarkName: benchmark,
		Category:      "general",
		Query:         "What is the answer?",
		CorrectAnswer: answer,
	})
	if err != nil {
		t.Fatalf("AddPreparedQuestion: %v", err)
	}
	return id
}

func seedResult(t *testing.T, st *SQLiteStore, questionID int64, model string) int64 {
	t.Helper()
	id, err := st.AddModelResult(context.Background(), &ModelResult{
		PreparedQuestionID: questionID,
		ModelName:          model,
	})
	if err != nil {
		t.Fatalf("AddModelResult: %v", err)
	}
	return id
}

func TestRecordAndFindBatchJobs(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if _, err := st.RecordBatchJob(ctx, &BatchJob{
		SessionID: 1, BenchmarkName: "mmlu", ModelName: "gpt-test", BatchID: "batch_1",
	}); err != nil {
		t.Fatalf("RecordBatchJob: %v", err)
	}
	if _, err := st.RecordBatchJob(ctx, &BatchJob{
		SessionID: 1, BenchmarkName: "mmlu", ModelName: "gpt-test", BatchID: "batch_2",
		Status: BatchJobRetry,
	}); err != nil {
		t.Fatalf("RecordBatchJob: %v", err)
	}
	if _, err := st.RecordBatchJob(ctx, &BatchJob{
		SessionID: 2, BenchmarkName: "mmlu", ModelName: "gpt-test", BatchID: "batch_3",
	}); err != nil {
		t.Fatalf("RecordBatchJob: %v", err)
	}

	jobs, err := st.FindBatchJobs(ctx, 1, "mmlu", "gpt-test")
	if err != nil {
		t.Fatalf("FindBatchJobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("FindBatchJobs returned %d jobs, want 2", len(jobs))
	}
	if jobs[0].BatchID != "batch_1" || jobs[0].Status != BatchJobPending {
		t.Errorf("job 0 = %+v", jobs[0])
	}
	if jobs[1].BatchID != "batch_2" || jobs[1].Status != BatchJobRetry {
		t.Errorf("job 1 = %+v", jobs[1])
	}

	other, err := st.FindBatchJobs(ctx, 1, "gsm8k", "gpt-test")
	if err != nil {
		t.Fatalf("FindBatchJobs: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("unrelated triple returned %d jobs", len(other))
	}

	session, err := st.BatchJobsBySession(ctx, 1)
	if err != nil {
		t.Fatalf("BatchJobsBySession: %v", err)
	}
	if len(session) != 2 {
		t.Fatalf("BatchJobsBySession returned %d jobs, want 2", len(session))
	}
}

func TestRecordBatchJob_Validation(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if _, err := st.RecordBatchJob(ctx, nil); err == nil {
		t.Error("nil job: expected error")
	}
	if _, err := st.RecordBatchJob(ctx, &BatchJob{BenchmarkName: "mmlu", ModelName: "m"}); err == nil {
		t.Error("empty batch id: expected error")
	}
	if _, err := st.RecordBatchJob(ctx, &BatchJob{BatchID: "b"}); err == nil {
		t.Error("missing benchmark/model: expected error")
	}
}

func TestSetBatchJobStatus(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if _, err := st.RecordBatchJob(ctx, &BatchJob{
		SessionID: 1, BenchmarkName: "mmlu", ModelName: "m", BatchID: "batch_1",
	}); err != nil {
		t.Fatalf("RecordBatchJob: %v", err)
	}

	if err := st.SetBatchJobStatus(ctx, "batch_1", BatchJobRetry); err != nil {
		t.Fatalf("pending -> retry: %v", err)
	}
	if err := st.SetBatchJobStatus(ctx, "batch_1", BatchJobCompleted); err != nil {
		t.Fatalf("retry -> completed: %v", err)
	}

	err := st.SetBatchJobStatus(ctx, "batch_1", BatchJobPending)
	var terminal *TerminalStateError
	if !errors.As(err, &terminal) {
		t.Fatalf("completed -> pending: err = %v, want *TerminalStateError", err)
	}
	if terminal.Status != BatchJobCompleted {
		t.Errorf("terminal status = %s", terminal.Status)
	}

	jobs, err := st.FindBatchJobs(ctx, 1, "mmlu", "m")
	if err != nil {
		t.Fatalf("FindBatchJobs: %v", err)
	}
	if jobs[0].Status != BatchJobCompleted {
		t.Errorf("status after rejected transition = %s", jobs[0].Status)
	}
}

func TestSetBatchJobStatus_NotFound(t *testing.T) {
	st := newTestStore(t)

	err := st.SetBatchJobStatus(context.Background(), "missing", BatchJobCompleted)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestQuestionsForSessionBenchmark(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id1 := seedQuestion(t, st, 1, "mmlu", "B")
	seedQuestion(t, st, 1, "gsm8k", "42")
	seedQuestion(t, st, 2, "mmlu", "C")

	qs, err := st.QuestionsForSessionBenchmark(ctx, 1, "mmlu")
	if err != nil {
		t.Fatalf("QuestionsForSessionBenchmark: %v", err)
	}
	if len(qs) != 1 {
		t.Fatalf("got %d questions, want 1", len(qs))
	}
	if qs[0].ID != id1 || qs[0].CorrectAnswer != "B" {
		t.Errorf("question = %+v", qs[0])
	}
}

func TestUpdateExecutionResults(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	qid := seedQuestion(t, st, 1, "mmlu", "B")
	rid := seedResult(t, st, qid, "gpt-test")

	upd := ExecutionUpdate{
		Response:        "B",
		ActualInTokens:  100,
		ActualOutTokens: 1,
		ActualInCost:    0.0001,
		ActualOutCost:   0.000002,
		Score:           1,
	}
	if err := st.UpdateExecutionResults(ctx, rid, upd); err != nil {
		t.Fatalf("UpdateExecutionResults: %v", err)
	}

	results, err := st.ResultsForSessionBenchmarkModel(ctx, 1, "mmlu", "gpt-test")
	if err != nil {
		t.Fatalf("ResultsForSessionBenchmarkModel: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	r := results[0]
	if r.Status != ResultCompleted || r.Response != "B" || r.Score != 1 {
		t.Errorf("result = %+v", r)
	}
	if r.ActualInTokens != 100 || r.ActualOutTokens != 1 {
		t.Errorf("tokens = %d/%d", r.ActualInTokens, r.ActualOutTokens)
	}
	if r.ExecutedAt.IsZero() || time.Since(r.ExecutedAt) > time.Minute {
		t.Errorf("executed at = %v", r.ExecutedAt)
	}

	// A second update must not clobber the first reconciliation.
	if err := st.UpdateExecutionResults(ctx, rid, ExecutionUpdate{Response: "C", Score: 0}); err != nil {
		t.Fatalf("second UpdateExecutionResults: %v", err)
	}
	results, err = st.ResultsForSessionBenchmarkModel(ctx, 1, "mmlu", "gpt-test")
	if err != nil {
		t.Fatalf("ResultsForSessionBenchmarkModel: %v", err)
	}
	if results[0].Response != "B" || results[0].Score != 1 {
		t.Errorf("result after repeat update = %+v", results[0])
	}
}

func TestUpdateExecutionResults_NotFound(t *testing.T) {
	st := newTestStore(t)

	err := st.UpdateExecutionResults(context.Background(), 999, ExecutionUpdate{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestResultsScopedToModel(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	qid := seedQuestion(t, st, 1, "bbh", "true")
	seedResult(t, st, qid, "gpt-test")
	seedResult(t, st, qid, "claude-test")

	results, err := st.ResultsForSessionBenchmarkModel(ctx, 1, "bbh", "gpt-test")
	if err != nil {
		t.Fatalf("ResultsForSessionBenchmarkModel: %v", err)
	}
	if len(results) != 1 || results[0].ModelName != "gpt-test" {
		t.Fatalf("results = %+v", results)
	}
}

func TestOpen(t *testing.T) {
	// memory type maps to an in-memory sqlite database.
	st, err := Open(testConfig("memory", ""))
	if err != nil {
		t.Fatalf("Open(memory): %v", err)
	}
	_ = st.Close()

	if _, err := Open(testConfig("postgres", "")); err == nil {
		t.Error("unsupported type: expected error")
	}
	if _, err := Open(nil); err == nil {
		t.Error("nil config: expected error")
	}
}
