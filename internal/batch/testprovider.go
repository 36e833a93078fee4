package batch

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/stellarlinkco/batch-eval/internal/config"
	"github.com/stellarlinkco/batch-eval/internal/cost"
)

// TestAdapter simulates a provider batch API entirely in memory. Submitted
// batches complete immediately and results are synthesized from the buffered
// requests, so orchestration can be exercised without network calls.
type TestAdapter struct {
	requestBuffer

	// Answer produces the canned response for a request. Defaults to "A".
	Answer func(req RequestItem) string
	// RetrySupported makes Retry resubmit the stored requests under a new id.
	RetrySupported bool
	// ArtifactDir is where request JSONL artifacts land. Empty disables them.
	ArtifactDir string

	mu        sync.Mutex
	batches   map[string]*testBatch
	failNext  bool
	failItems map[string]bool
}

type testBatch struct {
	requests []RequestItem
	status   PollStatus
}

func NewTestAdapter(mcfg config.ModelConfig) *TestAdapter {
	return &TestAdapter{
		requestBuffer: newRequestBuffer(
			mcfg.Name,
			cost.NewBatchRates(mcfg.InputCostPerMillion, mcfg.OutputCostPerMillion),
			mcfg.BatchQueueLimit,
		),
		batches:     make(map[string]*testBatch),
		failItems:   make(map[string]bool),
		ArtifactDir: "batch",
	}
}

func (a *TestAdapter) Provider() string { return "test" }

// FailNext marks the next submitted batch as failed once polled.
func (a *TestAdapter) FailNext() {
	a.mu.Lock()
	a.failNext = true
	a.mu.Unlock()
}

// FailItem makes the result for one custom id come back errored while its
// siblings in the same batch still succeed.
func (a *TestAdapter) FailItem(customID string) {
	a.mu.Lock()
	a.failItems[customID] = true
	a.mu.Unlock()
}

func (a *TestAdapter) Submit(ctx context.Context, benchmarkName string, sessionID int64, metadata map[string]string) ([]string, error) {
	subBatches := a.take()
	if len(subBatches) == 0 {
		return nil, &ValidationError{Reason: "no buffered requests"}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	ids := make([]string, 0, len(subBatches))
	for part, reqs := range subBatches {
		_ = writeRequestArtifact(a.ArtifactDir, sessionID, benchmarkName, a.model, part, reqs)

		status := StatusCompleted
		if a.failNext {
			status = StatusFailed
			a.failNext = false
		}

		id := "test_batch_" + uuid.NewString()[:8]
		a.batches[id] = &testBatch{requests: reqs, status: status}
		ids = append(ids, id)
	}
	return ids, nil
}

func (a *TestAdapter) PollStatus(ctx context.Context, batchID string) (PollStatus, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.batches[batchID]
	if !ok {
		return StatusPending, fmt.Errorf("batch: test: unknown batch %s", batchID)
	}
	return b.status, nil
}

func (a *TestAdapter) FetchResults(ctx context.Context, batchID string) ([]ResponseItem, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.batches[batchID]
	if !ok {
		return nil, fmt.Errorf("batch: test: unknown batch %s", batchID)
	}

	out := make([]ResponseItem, 0, len(b.requests))
	for _, req := range b.requests {
		if a.failItems[req.CustomID] {
			out = append(out, ResponseItem{
				CustomID: req.CustomID,
				Status:   "errored",
			})
			continue
		}
		answer := "A"
		if a.Answer != nil {
			answer = a.Answer(req)
		}
		out = append(out, ResponseItem{
			CustomID: req.CustomID,
			Response: answer,
			Usage: &cost.Usage{
				PromptTokens:     estimateRequestTokens(req),
				CompletionTokens: 1,
			},
			Status: ItemSuccess,
		})
	}
	return out, nil
}

// Retry resubmits the stored requests under a new id when RetrySupported is
// set; otherwise it reports the capability as absent, like the live adapters
// that retain no input artifact.
func (a *TestAdapter) Retry(ctx context.Context, batchID string, metadata map[string]string) (string, bool, error) {
	if !a.RetrySupported {
		return "", false, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.batches[batchID]
	if !ok {
		return "", true, fmt.Errorf("batch: test: unknown batch %s", batchID)
	}

	id := "test_batch_" + uuid.NewString()[:8]
	a.batches[id] = &testBatch{requests: b.requests, status: StatusCompleted}
	return id, true, nil
}

func (a *TestAdapter) Describe(ctx context.Context, batchID string) (Info, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.batches[batchID]
	if !ok {
		return Info{}, fmt.Errorf("batch: test: unknown batch %s", batchID)
	}
	return a.describeLocked(batchID, b), nil
}

func (a *TestAdapter) Cancel(ctx context.Context, batchID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.batches[batchID]
	if !ok {
		return fmt.Errorf("batch: test: unknown batch %s", batchID)
	}
	b.status = StatusFailed
	return nil
}

func (a *TestAdapter) List(ctx context.Context, limit int) ([]Info, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Info, 0, len(a.batches))
	for id, b := range a.batches {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, a.describeLocked(id, b))
	}
	return out, nil
}

func (a *TestAdapter) describeLocked(id string, b *testBatch) Info {
	info := Info{
		ID:     id,
		Status: string(b.status),
		Counts: Counts{Total: len(b.requests)},
	}
	switch b.status {
	case StatusCompleted:
		info.Counts.Completed = len(b.requests)
	case StatusFailed:
		info.Counts.Failed = len(b.requests)
	}
	return info
}
