package benchmark

import (
	"context"
	"errors"
	"fmt"

	"github.com/chainguard-dev/clog"

	"github.com/stellarlinkco/batch-eval/internal/store"
)

// Seed loads a dataset and records its questions for a session. A
// benchmark that already has prepared questions for the session is left
// untouched, so re-running prepare is safe.
func Seed(ctx context.Context, repo store.QuestionRepository, ds Dataset, sessionID int64) (int, error) {
	if repo == nil || ds == nil {
		return 0, errors.New("benchmark: nil repository or dataset")
	}
	if sessionID <= 0 {
		return 0, fmt.Errorf("benchmark: session must be > 0 (got %d)", sessionID)
	}

	log := clog.FromContext(ctx).With(
		"benchmark", ds.Name(),
		"session", sessionID,
	)

	existing, err := repo.QuestionsForSessionBenchmark(ctx, sessionID, ds.Name())
	if err != nil {
		return 0, fmt.Errorf("benchmark: check existing questions: %w", err)
	}
	if len(existing) > 0 {
		log.Infof("questions already prepared, skipping (%d existing)", len(existing))
		return 0, nil
	}

	questions, err := ds.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("benchmark: load %s: %w", ds.Name(), err)
	}

	for _, q := range questions {
		_, err := repo.AddPreparedQuestion(ctx, &store.PreparedQuestion{
			SessionID:     sessionID,
			BenchmarkName: ds.Name(),
			Category:      q.Category,
			Query:         q.Query,
			CorrectAnswer: q.CorrectAnswer,
		})
		if err != nil {
			return 0, fmt.Errorf("benchmark: record question: %w", err)
		}
	}

	log.Infof("prepared %d questions", len(questions))
	return len(questions), nil
}
