package runner

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/chainguard-dev/clog"

	"github.com/stellarlinkco/batch-eval/internal/batch"
	"github.com/stellarlinkco/batch-eval/internal/config"
	"github.com/stellarlinkco/batch-eval/internal/score"
	"github.com/stellarlinkco/batch-eval/internal/store"
)

// BatchRunner drives one benchmark's batch lifecycle for one model: it turns
// pending model results into buffered requests, submits them, and later
// reconciles provider results back into scored rows. The ledger is consulted
// before every submission, so re-running a session never double-submits.
type BatchRunner struct {
	store store.Store
	cfg   *config.Config
}

func NewBatchRunner(st store.Store, cfg *config.Config) (*BatchRunner, error) {
	if st == nil {
		return nil, errors.New("runner: nil store")
	}
	if cfg == nil {
		return nil, errors.New("runner: nil config")
	}
	return &BatchRunner{store: st, cfg: cfg}, nil
}

// EnsureModelResults creates a pending result slot, with token and cost
// estimates, for every prepared question that has none for the adapter's
// model yet.
func (r *BatchRunner) EnsureModelResults(ctx context.Context, adapter batch.Adapter, sessionID int64, benchmarkName string) error {
	if adapter == nil {
		return errors.New("runner: nil adapter")
	}

	questions, err := r.store.QuestionsForSessionBenchmark(ctx, sessionID, benchmarkName)
	if err != nil {
		return fmt.Errorf("runner: load questions: %w", err)
	}
	results, err := r.store.ResultsForSessionBenchmarkModel(ctx, sessionID, benchmarkName, adapter.ModelName())
	if err != nil {
		return fmt.Errorf("runner: load results: %w", err)
	}

	covered := make(map[int64]bool, len(results))
	for _, res := range results {
		covered[res.PreparedQuestionID] = true
	}

	rates := adapter.Rates()
	maxTokens := r.cfg.MaxOutputTokens(benchmarkName)

	for _, q := range questions {
		if covered[q.ID] {
			continue
		}
		inTokens := batch.EstimateTokens(q.Query)
		if _, err := r.store.AddModelResult(ctx, &store.ModelResult{
			PreparedQuestionID: q.ID,
			ModelName:          adapter.ModelName(),
			Status:             store.ResultPending,
			EstimatedInTokens:  inTokens,
			EstimatedOutTokens: maxTokens,
			EstimatedInCost:    rates.InputCost(inTokens),
			EstimatedOutCost:   rates.OutputCost(maxTokens),
		}); err != nil {
			return fmt.Errorf("runner: add result for question %d: %w", q.ID, err)
		}
	}
	return nil
}

// RunBenchmarkBatch buffers every pending model result as a batch request and
// submits. When the ledger already holds entries for the session/benchmark/
// model triple, submission is skipped and the existing remote batch ids come
// back instead, so a restarted process never double-bills.
func (r *BatchRunner) RunBenchmarkBatch(ctx context.Context, adapter batch.Adapter, sessionID int64, benchmarkName string) ([]string, error) {
	if adapter == nil {
		return nil, errors.New("runner: nil adapter")
	}
	log := clog.FromContext(ctx).With(
		"benchmark", benchmarkName,
		"model", adapter.ModelName(),
		"session", sessionID,
	)

	existing, err := r.store.FindBatchJobs(ctx, sessionID, benchmarkName, adapter.ModelName())
	if err != nil {
		return nil, fmt.Errorf("runner: check ledger: %w", err)
	}
	if len(existing) > 0 {
		ids := make([]string, 0, len(existing))
		for _, job := range existing {
			ids = append(ids, job.BatchID)
		}
		log.Infof("Batch already submitted (%d ledger entries), skipping", len(existing))
		return ids, nil
	}

	questions, err := r.store.QuestionsForSessionBenchmark(ctx, sessionID, benchmarkName)
	if err != nil {
		return nil, fmt.Errorf("runner: load questions: %w", err)
	}
	results, err := r.store.ResultsForSessionBenchmarkModel(ctx, sessionID, benchmarkName, adapter.ModelName())
	if err != nil {
		return nil, fmt.Errorf("runner: load results: %w", err)
	}

	questionsByID := make(map[int64]*store.PreparedQuestion, len(questions))
	for _, q := range questions {
		questionsByID[q.ID] = q
	}

	maxTokens := r.cfg.MaxOutputTokens(benchmarkName)
	buffered := 0
	for _, res := range results {
		if res.Status != store.ResultPending {
			continue
		}
		q, ok := questionsByID[res.PreparedQuestionID]
		if !ok {
			log.Warnf("Result %d references missing question %d, skipping", res.ID, res.PreparedQuestionID)
			continue
		}
		customID := strconv.FormatInt(res.ID, 10)
		if err := adapter.AddRequest(customID, []batch.Message{{Role: "user", Content: q.Query}}, maxTokens); err != nil {
			log.Warnf("Buffering result %d failed: %v", res.ID, err)
			continue
		}
		buffered++
	}
	if buffered == 0 {
		log.Infof("No pending results to submit")
		return nil, nil
	}

	metadata := map[string]string{
		"benchmark_name":  benchmarkName,
		"test_session_id": strconv.FormatInt(sessionID, 10),
	}
	ids, submitErr := adapter.Submit(ctx, benchmarkName, sessionID, metadata)

	// Record whatever was submitted even when a later sub-batch failed; those
	// batches are live at the provider and must be polled.
	for _, id := range ids {
		if _, err := r.store.RecordBatchJob(ctx, &store.BatchJob{
			SessionID:     sessionID,
			BenchmarkName: benchmarkName,
			ModelName:     adapter.ModelName(),
			BatchID:       id,
			Status:        store.BatchJobPending,
		}); err != nil {
			return ids, fmt.Errorf("runner: record batch %s: %w", id, err)
		}
	}
	if submitErr != nil {
		return ids, fmt.Errorf("runner: submit %s/%s: %w", benchmarkName, adapter.ModelName(), submitErr)
	}

	log.Infof("Submitted %d requests across %d batches", buffered, len(ids))
	return ids, nil
}

// CheckAndProcessBatchResults polls one remote batch and advances its ledger
// entry. It returns true only when the batch was fetched and reconciled in
// this call.
//
// A failed batch is marked retry and resubmitted through the adapter when the
// provider retained the input; the old entry stays as a breadcrumb and the
// new remote id gets a fresh pending entry.
func (r *BatchRunner) CheckAndProcessBatchResults(ctx context.Context, adapter batch.Adapter, batchID string, sessionID int64, benchmarkName string) (bool, error) {
	if adapter == nil {
		return false, errors.New("runner: nil adapter")
	}
	log := clog.FromContext(ctx).With(
		"benchmark", benchmarkName,
		"model", adapter.ModelName(),
		"batch", batchID,
	)

	status, err := adapter.PollStatus(ctx, batchID)
	if err != nil {
		return false, fmt.Errorf("runner: poll %s: %w", batchID, err)
	}

	switch status {
	case batch.StatusPending:
		return false, nil

	case batch.StatusCompleted:
		items, err := adapter.FetchResults(ctx, batchID)
		if err != nil {
			return false, fmt.Errorf("runner: fetch results for %s: %w", batchID, err)
		}
		if err := r.reconcile(ctx, adapter, items, sessionID, benchmarkName); err != nil {
			return false, err
		}
		if err := r.store.SetBatchJobStatus(ctx, batchID, store.BatchJobCompleted); err != nil {
			var terminal *store.TerminalStateError
			if !errors.As(err, &terminal) {
				return false, fmt.Errorf("runner: mark %s completed: %w", batchID, err)
			}
		}
		log.Infof("Reconciled %d results", len(items))
		return true, nil

	case batch.StatusFailed:
		if err := r.store.SetBatchJobStatus(ctx, batchID, store.BatchJobRetry); err != nil {
			var terminal *store.TerminalStateError
			if !errors.As(err, &terminal) {
				return false, fmt.Errorf("runner: mark %s retry: %w", batchID, err)
			}
			return false, nil
		}

		newID, supported, err := adapter.Retry(ctx, batchID, map[string]string{
			"benchmark_name":  benchmarkName,
			"test_session_id": strconv.FormatInt(sessionID, 10),
			"retry_of":        batchID,
		})
		if err != nil {
			return false, fmt.Errorf("runner: retry %s: %w", batchID, err)
		}
		if !supported {
			log.Warnf("Provider %s cannot retry from retained input, marking failed", adapter.Provider())
			if err := r.store.SetBatchJobStatus(ctx, batchID, store.BatchJobFailed); err != nil {
				return false, fmt.Errorf("runner: mark %s failed: %w", batchID, err)
			}
			return false, nil
		}
		if strings.TrimSpace(newID) == "" {
			return false, nil
		}
		if _, err := r.store.RecordBatchJob(ctx, &store.BatchJob{
			SessionID:     sessionID,
			BenchmarkName: benchmarkName,
			ModelName:     adapter.ModelName(),
			BatchID:       newID,
			Status:        store.BatchJobPending,
		}); err != nil {
			return false, fmt.Errorf("runner: record retried batch %s: %w", newID, err)
		}
		log.Infof("Batch failed, resubmitted as %s", newID)
		return false, nil

	default:
		return false, fmt.Errorf("runner: unexpected poll status %q for %s", status, batchID)
	}
}

// ProcessOutstanding polls every non-terminal ledger entry for the triple.
// Entries already in retry status are breadcrumbs superseded by a newer entry
// and are skipped. An entry whose poll or processing errors is treated as
// still pending for this pass, so one flaky batch never stalls its siblings.
// It returns true when no entry still needs polling.
func (r *BatchRunner) ProcessOutstanding(ctx context.Context, adapter batch.Adapter, sessionID int64, benchmarkName string) (bool, error) {
	if adapter == nil {
		return false, errors.New("runner: nil adapter")
	}
	log := clog.FromContext(ctx).With(
		"benchmark", benchmarkName,
		"model", adapter.ModelName(),
		"session", sessionID,
	)

	jobs, err := r.store.FindBatchJobs(ctx, sessionID, benchmarkName, adapter.ModelName())
	if err != nil {
		return false, fmt.Errorf("runner: load ledger: %w", err)
	}

	done := true
	for _, job := range jobs {
		switch job.Status {
		case store.BatchJobCompleted, store.BatchJobCancelled, store.BatchJobFailed, store.BatchJobRetry:
			continue
		}

		reconciled, err := r.CheckAndProcessBatchResults(ctx, adapter, job.BatchID, sessionID, benchmarkName)
		if err != nil {
			log.Warnf("Batch %s not processed this pass: %v", job.BatchID, err)
			done = false
			continue
		}
		if !reconciled {
			done = false
		}
	}
	return done, nil
}

// reconcile maps provider results back onto model results by custom id and
// persists response, usage, cost, and score. Orphaned or failed items are
// logged and skipped; they never abort the rest of the batch.
func (r *BatchRunner) reconcile(ctx context.Context, adapter batch.Adapter, items []batch.ResponseItem, sessionID int64, benchmarkName string) error {
	log := clog.FromContext(ctx).With(
		"benchmark", benchmarkName,
		"model", adapter.ModelName(),
	)

	scorer, ok := score.ForBenchmark(benchmarkName)
	if !ok {
		return fmt.Errorf("runner: no scorer for benchmark %q", benchmarkName)
	}

	results, err := r.store.ResultsForSessionBenchmarkModel(ctx, sessionID, benchmarkName, adapter.ModelName())
	if err != nil {
		return fmt.Errorf("runner: load results: %w", err)
	}
	questions, err := r.store.QuestionsForSessionBenchmark(ctx, sessionID, benchmarkName)
	if err != nil {
		return fmt.Errorf("runner: load questions: %w", err)
	}

	resultsByID := make(map[int64]*store.ModelResult, len(results))
	for _, res := range results {
		resultsByID[res.ID] = res
	}
	questionsByID := make(map[int64]*store.PreparedQuestion, len(questions))
	for _, q := range questions {
		questionsByID[q.ID] = q
	}

	rates := adapter.Rates()
	for _, item := range items {
		if item.Status != batch.ItemSuccess {
			log.Warnf("Item %s reported status %q, leaving unreconciled", item.CustomID, item.Status)
			continue
		}

		resultID, err := strconv.ParseInt(strings.TrimSpace(item.CustomID), 10, 64)
		if err != nil {
			log.Warnf("Item has non-numeric custom id %q, skipping", item.CustomID)
			continue
		}
		res, ok := resultsByID[resultID]
		if !ok {
			log.Warnf("Item %d matches no model result, skipping", resultID)
			continue
		}
		q, ok := questionsByID[res.PreparedQuestionID]
		if !ok {
			log.Warnf("Result %d references missing question %d, skipping", res.ID, res.PreparedQuestionID)
			continue
		}

		var inTokens, outTokens int
		if item.Usage != nil {
			inTokens = item.Usage.PromptTokens
			outTokens = item.Usage.CompletionTokens
		}

		upd := store.ExecutionUpdate{
			Response:        item.Response,
			ActualInTokens:  inTokens,
			ActualOutTokens: outTokens,
			ActualInCost:    rates.InputCost(inTokens),
			ActualOutCost:   rates.OutputCost(outTokens),
			Score:           scorer(item.Response, q.CorrectAnswer),
			// Wall time is unknown for batch execution.
			ExecutionTime: 0,
		}
		if err := r.store.UpdateExecutionResults(ctx, resultID, upd); err != nil {
			return fmt.Errorf("runner: persist result %d: %w", resultID, err)
		}
	}
	return nil
}
