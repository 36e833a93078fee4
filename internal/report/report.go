// Package report aggregates a session's model results into a ranked
// scoreboard per benchmark.
package report

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/stellarlinkco/batch-eval/internal/config"
	"github.com/stellarlinkco/batch-eval/internal/store"
)

// Entry is one model's aggregate for one benchmark.
type Entry struct {
	BenchmarkName string  `json:"benchmark_name"`
	ModelName     string  `json:"model_name"`
	Provider      string  `json:"provider"`
	Questions     int     `json:"questions"`
	Completed     int     `json:"completed"`
	AvgScore      float64 `json:"avg_score"`
	EstimatedCost float64 `json:"estimated_cost"`
	ActualCost    float64 `json:"actual_cost"`
}

type Reporter struct {
	store store.ResultRepository
	cfg   *config.Config
}

func New(st store.ResultRepository, cfg *config.Config) (*Reporter, error) {
	if st == nil {
		return nil, errors.New("report: nil store")
	}
	if cfg == nil {
		return nil, errors.New("report: nil config")
	}
	return &Reporter{store: st, cfg: cfg}, nil
}

// SessionReport aggregates every configured benchmark/model pair that has
// results for the session. Entries are grouped by benchmark and ranked by
// average score within each group.
func (r *Reporter) SessionReport(ctx context.Context, sessionID int64) ([]Entry, error) {
	if r == nil || r.store == nil || r.cfg == nil {
		return nil, errors.New("report: nil reporter")
	}
	if sessionID <= 0 {
		return nil, fmt.Errorf("report: session must be > 0 (got %d)", sessionID)
	}

	var out []Entry
	for _, benchmarkName := range r.cfg.BenchmarkNames() {
		for _, m := range r.cfg.Models {
			results, err := r.store.ResultsForSessionBenchmarkModel(ctx, sessionID, benchmarkName, m.Name)
			if err != nil {
				return nil, fmt.Errorf("report: load results for %s/%s: %w", benchmarkName, m.Name, err)
			}
			if len(results) == 0 {
				continue
			}
			out = append(out, aggregate(benchmarkName, m, results))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].BenchmarkName != out[j].BenchmarkName {
			return out[i].BenchmarkName < out[j].BenchmarkName
		}
		if out[i].AvgScore != out[j].AvgScore {
			return out[i].AvgScore > out[j].AvgScore
		}
		return out[i].ModelName < out[j].ModelName
	})
	return out, nil
}

func aggregate(benchmarkName string, m config.ModelConfig, results []*store.ModelResult) Entry {
	e := Entry{
		BenchmarkName: benchmarkName,
		ModelName:     m.Name,
		Provider:      strings.ToLower(strings.TrimSpace(m.Provider)),
		Questions:     len(results),
	}

	var totalScore float64
	for _, res := range results {
		e.EstimatedCost += res.EstimatedInCost + res.EstimatedOutCost
		if res.Status != store.ResultCompleted {
			continue
		}
		e.Completed++
		totalScore += res.Score
		e.ActualCost += res.ActualInCost + res.ActualOutCost
	}
	if e.Completed > 0 {
		e.AvgScore = totalScore / float64(e.Completed)
	}
	return e
}

// Render formats entries as a plain-text scoreboard.
func Render(entries []Entry) string {
	if len(entries) == 0 {
		return "no results recorded for this session\n"
	}

	var b strings.Builder
	current := ""
	for _, e := range entries {
		if e.BenchmarkName != current {
			if current != "" {
				b.WriteString("\n")
			}
			current = e.BenchmarkName
			fmt.Fprintf(&b, "%s\n", current)
		}
		fmt.Fprintf(&b, "  %-24s %6.1f%%  %d/%d completed  $%.4f\n",
			e.ModelName, e.AvgScore*100, e.Completed, e.Questions, e.ActualCost)
	}
	return b.String()
}
