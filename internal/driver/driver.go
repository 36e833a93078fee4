package driver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/chainguard-dev/clog"

	"github.com/stellarlinkco/batch-eval/internal/batch"
	"github.com/stellarlinkco/batch-eval/internal/config"
	"github.com/stellarlinkco/batch-eval/internal/runner"
	"github.com/stellarlinkco/batch-eval/internal/store"
)

// Driver sweeps the configured benchmark x model cross-product. Each pair is
// an isolated failure domain: one pair's error is recorded and logged, never
// fatal to the rest of the sweep.
type Driver struct {
	store  store.Store
	cfg    *config.Config
	runner *runner.BatchRunner

	// newAdapter builds a fresh adapter per pair; adapters buffer requests
	// and must not be shared across pairs.
	newAdapter func(cfg *config.Config, modelName string) (batch.Adapter, error)
}

// PairResult is the outcome of one benchmark x model pair in a sweep pass.
type PairResult struct {
	BenchmarkName string
	ModelName     string
	BatchIDs      []string
	Reconciled    bool
	Err           error
}

func New(st store.Store, cfg *config.Config) (*Driver, error) {
	if st == nil {
		return nil, errors.New("driver: nil store")
	}
	if cfg == nil {
		return nil, errors.New("driver: nil config")
	}

	r, err := runner.NewBatchRunner(st, cfg)
	if err != nil {
		return nil, err
	}
	return &Driver{
		store:      st,
		cfg:        cfg,
		runner:     r,
		newAdapter: batch.New,
	}, nil
}

// benchmarks returns the configured benchmark names in stable order.
func (d *Driver) benchmarks() []string {
	names := d.cfg.BenchmarkNames()
	sort.Strings(names)
	return names
}

// RunSession ensures result slots and submits one batch per pair. Pairs whose
// ledger already holds entries are skipped by the runner's idempotency guard.
func (d *Driver) RunSession(ctx context.Context, sessionID int64) []PairResult {
	var out []PairResult
	for _, benchmarkName := range d.benchmarks() {
		for _, model := range d.cfg.Models {
			out = append(out, d.runPair(ctx, sessionID, benchmarkName, model.Name))
		}
	}
	return out
}

func (d *Driver) runPair(ctx context.Context, sessionID int64, benchmarkName, modelName string) PairResult {
	res := PairResult{BenchmarkName: benchmarkName, ModelName: modelName}
	log := clog.FromContext(ctx).With("benchmark", benchmarkName, "model", modelName)

	adapter, err := d.newAdapter(d.cfg, modelName)
	if err != nil {
		log.Errorf("Building adapter failed: %v", err)
		res.Err = err
		return res
	}
	if err := d.runner.EnsureModelResults(ctx, adapter, sessionID, benchmarkName); err != nil {
		log.Errorf("Preparing result slots failed: %v", err)
		res.Err = err
		return res
	}

	ids, err := d.runner.RunBenchmarkBatch(ctx, adapter, sessionID, benchmarkName)
	res.BatchIDs = ids
	if err != nil {
		log.Errorf("Batch submission failed: %v", err)
		res.Err = err
	}
	return res
}

// CheckSession polls every pair's outstanding ledger entries and reconciles
// what finished. It reports true when no pair still has work in flight.
func (d *Driver) CheckSession(ctx context.Context, sessionID int64) (bool, []PairResult) {
	done := true
	var out []PairResult

	for _, benchmarkName := range d.benchmarks() {
		for _, model := range d.cfg.Models {
			res := PairResult{BenchmarkName: benchmarkName, ModelName: model.Name}
			log := clog.FromContext(ctx).With("benchmark", benchmarkName, "model", model.Name)

			adapter, err := d.newAdapter(d.cfg, model.Name)
			if err != nil {
				log.Errorf("Building adapter failed: %v", err)
				res.Err = err
				done = false
				out = append(out, res)
				continue
			}

			reconciled, err := d.runner.ProcessOutstanding(ctx, adapter, sessionID, benchmarkName)
			res.Reconciled = reconciled
			if err != nil {
				log.Errorf("Processing batch results failed: %v", err)
				res.Err = err
				done = false
			} else if !reconciled {
				done = false
			}
			out = append(out, res)
		}
	}
	return done, out
}

// CancelSession asks each provider to cancel the session's non-terminal
// batches and marks their ledger entries. Best effort: per-batch failures are
// logged and skipped.
func (d *Driver) CancelSession(ctx context.Context, sessionID int64) error {
	jobs, err := d.store.BatchJobsBySession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("driver: load session ledger: %w", err)
	}

	adapters := make(map[string]batch.Adapter)
	log := clog.FromContext(ctx).With("session", sessionID)

	for _, job := range jobs {
		if job.Status.Terminal() {
			continue
		}

		adapter, ok := adapters[job.ModelName]
		if !ok {
			adapter, err = d.newAdapter(d.cfg, job.ModelName)
			if err != nil {
				log.Warnf("Building adapter for %s failed: %v", job.ModelName, err)
				continue
			}
			adapters[job.ModelName] = adapter
		}

		if err := adapter.Cancel(ctx, job.BatchID); err != nil {
			log.Warnf("Cancelling batch %s failed: %v", job.BatchID, err)
			continue
		}
		if err := d.store.SetBatchJobStatus(ctx, job.BatchID, store.BatchJobCancelled); err != nil {
			var terminal *store.TerminalStateError
			if !errors.As(err, &terminal) {
				log.Warnf("Marking batch %s cancelled failed: %v", job.BatchID, err)
			}
		}
	}
	return nil
}

// ListBatches lists recent remote batches for one configured model.
func (d *Driver) ListBatches(ctx context.Context, modelName string, limit int) ([]batch.Info, error) {
	modelName = strings.TrimSpace(modelName)
	adapter, err := d.newAdapter(d.cfg, modelName)
	if err != nil {
		return nil, err
	}
	return adapter.List(ctx, limit)
}
