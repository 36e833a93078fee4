package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stellarlinkco/batch-eval/internal/config"
)

func newTestAdapterForTest(t *testing.T) *TestAdapter {
	t.Helper()
	a := NewTestAdapter(config.ModelConfig{
		Name:                 "test-model",
		Provider:             "test",
		InputCostPerMillion:  2.0,
		OutputCostPerMillion: 4.0,
		BatchQueueLimit:      0,
	})
	a.ArtifactDir = t.TempDir()
	return a
}

func TestAddRequest_Validation(t *testing.T) {
	a := newTestAdapterForTest(t)

	var verr *ValidationError
	if err := a.AddRequest("", []Message{{Role: "user", Content: "q"}}, 1); !errors.As(err, &verr) {
		t.Fatalf("empty custom id: err = %v, want *ValidationError", err)
	}
	if err := a.AddRequest("1", nil, 1); !errors.As(err, &verr) {
		t.Fatalf("empty messages: err = %v, want *ValidationError", err)
	}
	if err := a.AddRequest("1", []Message{{Role: "user", Content: "q"}}, 1); err != nil {
		t.Fatalf("valid request: err = %v", err)
	}
}

func TestTestAdapter_SubmitPollFetch(t *testing.T) {
	a := newTestAdapterForTest(t)
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3"} {
		if err := a.AddRequest(id, []Message{{Role: "user", Content: "What is 2+2?"}}, 5); err != nil {
			t.Fatalf("AddRequest(%s): %v", id, err)
		}
	}

	ids, err := a.Submit(ctx, "mmlu", 7, nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("Submit returned %d ids, want 1", len(ids))
	}

	status, err := a.PollStatus(ctx, ids[0])
	if err != nil {
		t.Fatalf("PollStatus: %v", err)
	}
	if status != StatusCompleted {
		t.Fatalf("status = %s, want %s", status, StatusCompleted)
	}

	items, err := a.FetchResults(ctx, ids[0])
	if err != nil {
		t.Fatalf("FetchResults: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("FetchResults returned %d items, want 3", len(items))
	}
	for _, item := range items {
		if item.Status != ItemSuccess {
			t.Errorf("item %s status = %q, want %q", item.CustomID, item.Status, ItemSuccess)
		}
		if item.Response == "" {
			t.Errorf("item %s has empty response", item.CustomID)
		}
		if item.Usage == nil || item.Usage.PromptTokens == 0 || item.Usage.CompletionTokens != 1 {
			t.Errorf("item %s usage = %+v", item.CustomID, item.Usage)
		}
	}

	// The buffer must be drained: a second submit has nothing to send.
	if _, err := a.Submit(ctx, "mmlu", 7, nil); err == nil {
		t.Fatal("second Submit succeeded on an empty buffer")
	}
}

func TestTestAdapter_FailItem(t *testing.T) {
	a := newTestAdapterForTest(t)
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3"} {
		if err := a.AddRequest(id, []Message{{Role: "user", Content: "q"}}, 1); err != nil {
			t.Fatalf("AddRequest(%s): %v", id, err)
		}
	}
	a.FailItem("2")

	ids, err := a.Submit(ctx, "mmlu", 7, nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	items, err := a.FetchResults(ctx, ids[0])
	if err != nil {
		t.Fatalf("FetchResults: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("FetchResults returned %d items, want 3", len(items))
	}

	for _, item := range items {
		if item.CustomID == "2" {
			if item.Status == ItemSuccess || item.Response != "" || item.Usage != nil {
				t.Errorf("failed item = %+v, want errored with no payload", item)
			}
			continue
		}
		if item.Status != ItemSuccess || item.Response == "" {
			t.Errorf("item %s = %+v, want success", item.CustomID, item)
		}
	}
}

func TestTestAdapter_SubmitWritesArtifact(t *testing.T) {
	a := newTestAdapterForTest(t)

	if err := a.AddRequest("42", []Message{{Role: "user", Content: "q"}}, 1); err != nil {
		t.Fatalf("AddRequest: %v", err)
	}
	if _, err := a.Submit(context.Background(), "gsm8k", 9, nil); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	path := filepath.Join(a.ArtifactDir, "9", "gsm8k", "test-model_batch_requests_0.jsonl")
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if len(b) == 0 {
		t.Fatal("artifact file is empty")
	}
}

func TestTestAdapter_FailNextAndRetry(t *testing.T) {
	a := newTestAdapterForTest(t)
	ctx := context.Background()

	if err := a.AddRequest("1", []Message{{Role: "user", Content: "q"}}, 1); err != nil {
		t.Fatalf("AddRequest: %v", err)
	}
	a.FailNext()

	ids, err := a.Submit(ctx, "bbh", 1, nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	status, err := a.PollStatus(ctx, ids[0])
	if err != nil {
		t.Fatalf("PollStatus: %v", err)
	}
	if status != StatusFailed {
		t.Fatalf("status = %s, want %s", status, StatusFailed)
	}

	// Retry capability is off by default.
	if _, supported, err := a.Retry(ctx, ids[0], nil); err != nil || supported {
		t.Fatalf("Retry default: supported = %v, err = %v", supported, err)
	}

	a.RetrySupported = true
	newID, supported, err := a.Retry(ctx, ids[0], nil)
	if err != nil || !supported {
		t.Fatalf("Retry: supported = %v, err = %v", supported, err)
	}
	if newID == "" || newID == ids[0] {
		t.Fatalf("Retry returned id %q", newID)
	}
	if status, _ := a.PollStatus(ctx, newID); status != StatusCompleted {
		t.Fatalf("retried batch status = %s, want %s", status, StatusCompleted)
	}
}

func TestTestAdapter_CannedAnswers(t *testing.T) {
	a := newTestAdapterForTest(t)
	a.Answer = func(req RequestItem) string { return "answer-" + req.CustomID }
	ctx := context.Background()

	if err := a.AddRequest("9", []Message{{Role: "user", Content: "q"}}, 1); err != nil {
		t.Fatalf("AddRequest: %v", err)
	}
	ids, err := a.Submit(ctx, "mmlu", 1, nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	items, err := a.FetchResults(ctx, ids[0])
	if err != nil {
		t.Fatalf("FetchResults: %v", err)
	}
	if items[0].Response != "answer-9" {
		t.Fatalf("response = %q, want %q", items[0].Response, "answer-9")
	}
}

func TestTestAdapter_DescribeAndCancel(t *testing.T) {
	a := newTestAdapterForTest(t)
	ctx := context.Background()

	for _, id := range []string{"1", "2"} {
		if err := a.AddRequest(id, []Message{{Role: "user", Content: "q"}}, 1); err != nil {
			t.Fatalf("AddRequest: %v", err)
		}
	}
	ids, err := a.Submit(ctx, "mmlu", 1, nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	info, err := a.Describe(ctx, ids[0])
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if info.Counts.Total != 2 || info.Counts.Completed != 2 {
		t.Fatalf("counts = %+v", info.Counts)
	}

	if err := a.Cancel(ctx, ids[0]); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if status, _ := a.PollStatus(ctx, ids[0]); status != StatusFailed {
		t.Fatalf("cancelled batch status = %s, want %s", status, StatusFailed)
	}

	list, err := a.List(ctx, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("List returned %d batches, want 1", len(list))
	}
}
