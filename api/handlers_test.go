package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/stellarlinkco/batch-eval/internal/config"
	"github.com/stellarlinkco/batch-eval/internal/store"
)

func testConfig() *config.Config {
	return &config.Config{
		Models: []config.ModelConfig{
			{Name: "local", Provider: "test"},
		},
		Benchmarks: map[string]config.BenchmarkConfig{"mmlu": {MaxOutputTokens: 1}},
	}
}

func newTestServer(t *testing.T) (*Server, *store.SQLiteStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv("BATCH_EVAL_DISABLE_AUTH", "true")

	st, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	s, err := NewServer(testConfig(), st)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s, st
}

func doRequest(s *Server, method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestHandleHealth(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(s, http.MethodGet, "/api/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestNewServer_RequiresAuthConfig(t *testing.T) {
	gin.SetMode(gin.TestMode)
	t.Setenv("BATCH_EVAL_DISABLE_AUTH", "")
	t.Setenv("BATCH_EVAL_API_KEY", "")

	st, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer st.Close()

	if _, err := NewServer(testConfig(), st); err == nil {
		t.Fatal("expected missing auth configuration error")
	}
}

func TestAPIKeyAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	t.Setenv("BATCH_EVAL_API_KEY", "secret")
	t.Setenv("BATCH_EVAL_DISABLE_AUTH", "")

	st, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer st.Close()

	s, err := NewServer(testConfig(), st)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	if w := doRequest(s, http.MethodGet, "/api/health", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("no key: status = %d", w.Code)
	}

	hdr := http.Header{}
	hdr.Set("X-API-Key", "secret")
	if w := doRequest(s, http.MethodGet, "/api/health", hdr); w.Code != http.StatusOK {
		t.Fatalf("with key: status = %d", w.Code)
	}
}

func TestHandleSessionBatches(t *testing.T) {
	s, st := newTestServer(t)

	if _, err := st.RecordBatchJob(context.Background(), &store.BatchJob{
		SessionID:     7,
		BenchmarkName: "mmlu",
		ModelName:     "local",
		BatchID:       "test_batch_1",
	}); err != nil {
		t.Fatalf("RecordBatchJob: %v", err)
	}

	w := doRequest(s, http.MethodGet, "/api/sessions/7/batches", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		SessionID int64         `json:"session_id"`
		Batches   []batchJobDTO `json:"batches"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SessionID != 7 || len(resp.Batches) != 1 {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Batches[0].BatchID != "test_batch_1" || resp.Batches[0].Status != "pending" {
		t.Fatalf("batch = %+v", resp.Batches[0])
	}
}

func TestHandleSessionBatches_InvalidID(t *testing.T) {
	s, _ := newTestServer(t)

	for _, path := range []string{"/api/sessions/abc/batches", "/api/sessions/0/batches"} {
		if w := doRequest(s, http.MethodGet, path, nil); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", path, w.Code)
		}
	}
}

func TestHandleSessionProgress_Empty(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(s, http.MethodGet, "/api/sessions/1/progress", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Rendered string `json:"rendered"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Rendered == "" {
		t.Fatal("rendered progress is empty")
	}
}

func TestHandleSessionResults(t *testing.T) {
	s, st := newTestServer(t)
	ctx := context.Background()

	qid, err := st.AddPreparedQuestion(ctx, &store.PreparedQuestion{
		SessionID:     1,
		BenchmarkName: "mmlu",
		Category:      "general",
		Query:         "q",
		CorrectAnswer: "A",
	})
	if err != nil {
		t.Fatalf("AddPreparedQuestion: %v", err)
	}
	rid, err := st.AddModelResult(ctx, &store.ModelResult{
		PreparedQuestionID: qid,
		ModelName:          "local",
	})
	if err != nil {
		t.Fatalf("AddModelResult: %v", err)
	}
	if err := st.UpdateExecutionResults(ctx, rid, store.ExecutionUpdate{
		Response: "A", Score: 1, ActualInTokens: 5, ActualOutTokens: 1,
		ActualInCost: 0.001, ActualOutCost: 0.0002,
	}); err != nil {
		t.Fatalf("UpdateExecutionResults: %v", err)
	}

	w := doRequest(s, http.MethodGet, "/api/sessions/1/results?benchmark=mmlu&model=local", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Results []modelResultDTO `json:"results"`
		Summary struct {
			Total     int     `json:"total"`
			Completed int     `json:"completed"`
			AvgScore  float64 `json:"avg_score"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Score != 1 {
		t.Fatalf("results = %+v", resp.Results)
	}
	if resp.Summary.Total != 1 || resp.Summary.Completed != 1 || resp.Summary.AvgScore != 1 {
		t.Fatalf("summary = %+v", resp.Summary)
	}
}

func TestHandleSessionResults_MissingParams(t *testing.T) {
	s, _ := newTestServer(t)

	if w := doRequest(s, http.MethodGet, "/api/sessions/1/results?benchmark=mmlu", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("missing model: status = %d", w.Code)
	}
}

func TestHandleSessionReport(t *testing.T) {
	s, st := newTestServer(t)
	ctx := context.Background()

	qid, err := st.AddPreparedQuestion(ctx, &store.PreparedQuestion{
		SessionID:     1,
		BenchmarkName: "mmlu",
		Category:      "general",
		Query:         "q",
		CorrectAnswer: "A",
	})
	if err != nil {
		t.Fatalf("AddPreparedQuestion: %v", err)
	}
	rid, err := st.AddModelResult(ctx, &store.ModelResult{
		PreparedQuestionID: qid,
		ModelName:          "local",
	})
	if err != nil {
		t.Fatalf("AddModelResult: %v", err)
	}
	if err := st.UpdateExecutionResults(ctx, rid, store.ExecutionUpdate{
		Response: "A", Score: 1,
	}); err != nil {
		t.Fatalf("UpdateExecutionResults: %v", err)
	}

	w := doRequest(s, http.MethodGet, "/api/sessions/1/report", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Entries []struct {
			ModelName string  `json:"model_name"`
			AvgScore  float64 `json:"avg_score"`
			Completed int     `json:"completed"`
		} `json:"entries"`
		Rendered string `json:"rendered"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Entries) != 1 {
		t.Fatalf("entries = %+v", resp.Entries)
	}
	if resp.Entries[0].ModelName != "local" || resp.Entries[0].AvgScore != 1 || resp.Entries[0].Completed != 1 {
		t.Fatalf("entry = %+v", resp.Entries[0])
	}
	if resp.Rendered == "" {
		t.Fatal("rendered report is empty")
	}
}

func TestHandleModelBatches_UnknownModel(t *testing.T) {
	s, _ := newTestServer(t)

	if w := doRequest(s, http.MethodGet, "/api/models/missing/batches", nil); w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestHandleModelBatches(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(s, http.MethodGet, "/api/models/local/batches?limit=5", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	if w := doRequest(s, http.MethodGet, "/api/models/local/batches?limit=bad", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad limit: status = %d", w.Code)
	}
}
