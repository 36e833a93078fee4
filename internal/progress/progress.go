package progress

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/chainguard-dev/clog"

	"github.com/stellarlinkco/batch-eval/internal/batch"
	"github.com/stellarlinkco/batch-eval/internal/config"
	"github.com/stellarlinkco/batch-eval/internal/store"
)

// Reporter renders read-only progress for a session's batches: ledger entries
// grouped by benchmark and provider, with live request counts from each
// provider's status endpoint. It never mutates ledger or results.
type Reporter struct {
	store store.Store
	cfg   *config.Config

	newAdapter func(cfg *config.Config, modelName string) (batch.Adapter, error)
}

// BatchProgress is the live view of one ledger entry.
type BatchProgress struct {
	BatchID      string
	ModelName    string
	LedgerStatus store.BatchJobStatus
	RemoteStatus string
	Counts       batch.Counts
}

// Group aggregates a session's batches for one benchmark and provider.
type Group struct {
	BenchmarkName string
	Provider      string
	Batches       []BatchProgress
	Totals        batch.Counts
}

func NewReporter(st store.Store, cfg *config.Config) (*Reporter, error) {
	if st == nil {
		return nil, errors.New("progress: nil store")
	}
	if cfg == nil {
		return nil, errors.New("progress: nil config")
	}
	return &Reporter{store: st, cfg: cfg, newAdapter: batch.New}, nil
}

// SessionProgress queries live counts for every ledger entry of a session,
// grouped by benchmark and provider. Unreachable batches keep their ledger
// status and zero counts rather than failing the whole report.
func (r *Reporter) SessionProgress(ctx context.Context, sessionID int64) ([]Group, error) {
	jobs, err := r.store.BatchJobsBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("progress: load session ledger: %w", err)
	}

	log := clog.FromContext(ctx).With("session", sessionID)
	adapters := make(map[string]batch.Adapter)
	groups := make(map[string]*Group)

	for _, job := range jobs {
		provider := r.providerFor(job.ModelName)

		key := job.BenchmarkName + "/" + provider
		g, ok := groups[key]
		if !ok {
			g = &Group{BenchmarkName: job.BenchmarkName, Provider: provider}
			groups[key] = g
		}

		bp := BatchProgress{
			BatchID:      job.BatchID,
			ModelName:    job.ModelName,
			LedgerStatus: job.Status,
		}

		adapter, ok := adapters[job.ModelName]
		if !ok {
			adapter, err = r.newAdapter(r.cfg, job.ModelName)
			if err != nil {
				log.Warnf("Building adapter for %s failed: %v", job.ModelName, err)
				adapter = nil
			}
			adapters[job.ModelName] = adapter
		}
		if adapter != nil {
			info, err := adapter.Describe(ctx, job.BatchID)
			if err != nil {
				log.Warnf("Describing batch %s failed: %v", job.BatchID, err)
			} else {
				bp.RemoteStatus = info.Status
				bp.Counts = info.Counts
			}
		}

		g.Batches = append(g.Batches, bp)
		g.Totals.Total += bp.Counts.Total
		g.Totals.Completed += bp.Counts.Completed
		g.Totals.Failed += bp.Counts.Failed
	}

	out := make([]Group, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BenchmarkName != out[j].BenchmarkName {
			return out[i].BenchmarkName < out[j].BenchmarkName
		}
		return out[i].Provider < out[j].Provider
	})
	return out, nil
}

func (r *Reporter) providerFor(modelName string) string {
	if mcfg, ok := r.cfg.Model(modelName); ok {
		if p := strings.ToLower(strings.TrimSpace(mcfg.Provider)); p != "" {
			return p
		}
	}
	return "unknown"
}

const barWidth = 20

// FormatCounts renders one counts line with a textual progress bar. A batch
// the provider reports no requests for renders as "no data".
func FormatCounts(c batch.Counts) string {
	if c.Total <= 0 {
		return "no data"
	}

	completed := float64(c.Completed) / float64(c.Total) * 100
	failed := float64(c.Failed) / float64(c.Total) * 100
	inProgress := 100 - completed - failed
	if inProgress < 0 {
		inProgress = 0
	}

	doneCells := c.Completed * barWidth / c.Total
	failCells := c.Failed * barWidth / c.Total
	if doneCells+failCells > barWidth {
		failCells = barWidth - doneCells
	}

	var bar strings.Builder
	bar.WriteString(strings.Repeat("#", doneCells))
	bar.WriteString(strings.Repeat("x", failCells))
	bar.WriteString(strings.Repeat(".", barWidth-doneCells-failCells))

	return fmt.Sprintf("[%s] %.1f%% completed, %.1f%% failed, %.1f%% in progress (%d/%d)",
		bar.String(), completed, failed, inProgress, c.Completed+c.Failed, c.Total)
}

// Render produces the human-readable progress report for a session.
func Render(groups []Group) string {
	if len(groups) == 0 {
		return "no batches recorded for this session\n"
	}

	var sb strings.Builder
	for _, g := range groups {
		fmt.Fprintf(&sb, "%s / %s\n", g.BenchmarkName, g.Provider)
		for _, bp := range g.Batches {
			status := bp.RemoteStatus
			if status == "" {
				status = string(bp.LedgerStatus)
			}
			fmt.Fprintf(&sb, "  %s (%s, %s): %s\n", bp.BatchID, bp.ModelName, status, FormatCounts(bp.Counts))
		}
		fmt.Fprintf(&sb, "  total: %s\n", FormatCounts(g.Totals))
	}
	return sb.String()
}
