package batch

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/stellarlinkco/batch-eval/internal/config"
	"github.com/stellarlinkco/batch-eval/internal/cost"
	"github.com/stellarlinkco/batch-eval/internal/gemini"
)

// GoogleAdapter submits batches through the Gemini batch API as inlined
// requests on a long-running operation. The caller's custom id travels in the
// per-request "key" metadata and is echoed back on each inlined response.
type GoogleAdapter struct {
	requestBuffer
	client      *gemini.Client
	artifactDir string
}

func NewGoogleAdapter(pcfg config.ProviderConfig, mcfg config.ModelConfig) *GoogleAdapter {
	opts := make([]gemini.Option, 0, 1)
	if v := strings.TrimSpace(pcfg.BaseURL); v != "" {
		opts = append(opts, gemini.WithBaseURL(v))
	}

	return &GoogleAdapter{
		requestBuffer: newRequestBuffer(
			mcfg.Name,
			cost.NewBatchRates(mcfg.InputCostPerMillion, mcfg.OutputCostPerMillion),
			mcfg.BatchQueueLimit,
		),
		client:      gemini.NewClient(pcfg.APIKey, opts...),
		artifactDir: "batch",
	}
}

func (a *GoogleAdapter) Provider() string { return "google" }

func (a *GoogleAdapter) Submit(ctx context.Context, benchmarkName string, sessionID int64, metadata map[string]string) ([]string, error) {
	subBatches := a.take()
	if len(subBatches) == 0 {
		return nil, &ValidationError{Reason: "no buffered requests"}
	}

	ids := make([]string, 0, len(subBatches))
	for part, reqs := range subBatches {
		_ = writeRequestArtifact(a.artifactDir, sessionID, benchmarkName, a.model, part, reqs)

		inlined := make([]gemini.InlinedRequest, 0, len(reqs))
		for _, req := range reqs {
			inlined = append(inlined, gemini.InlinedRequest{
				Request: &gemini.GenerateContentRequest{
					Contents: toGeminiContents(req.Messages),
					GenerationConfig: &gemini.GenerationConfig{
						MaxOutputTokens: req.MaxOutputTokens,
					},
				},
				Metadata: map[string]string{"key": req.CustomID},
			})
		}

		displayName := fmt.Sprintf("%s-%d-%s-%s", benchmarkName, sessionID, a.model, uuid.NewString()[:8])
		op, err := a.client.CreateBatch(ctx, a.model, displayName, inlined)
		if err != nil {
			return ids, &SubmissionError{Provider: "google", Err: err}
		}
		ids = append(ids, op.Name)
	}

	return ids, nil
}

func (a *GoogleAdapter) PollStatus(ctx context.Context, batchID string) (PollStatus, error) {
	op, err := a.client.GetBatch(ctx, batchID)
	if err != nil {
		return StatusPending, fmt.Errorf("batch: google: retrieve %s: %w", batchID, err)
	}
	if op.Error != nil {
		return StatusFailed, nil
	}

	switch op.State() {
	case gemini.BatchStateSucceeded:
		return StatusCompleted, nil
	case gemini.BatchStateFailed, gemini.BatchStateCancelled, gemini.BatchStateExpired:
		return StatusFailed, nil
	default:
		if op.Done && op.Response != nil {
			return StatusCompleted, nil
		}
		return StatusPending, nil
	}
}

func (a *GoogleAdapter) FetchResults(ctx context.Context, batchID string) ([]ResponseItem, error) {
	op, err := a.client.GetBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("batch: google: retrieve %s: %w", batchID, err)
	}
	if op.Response == nil || op.Response.InlinedResponses == nil {
		return nil, fmt.Errorf("batch: google: batch %s has no inlined responses (state %s)", batchID, op.State())
	}

	responses := op.Response.InlinedResponses.InlinedResponses
	out := make([]ResponseItem, 0, len(responses))
	for i := range responses {
		r := &responses[i]

		item := ResponseItem{CustomID: r.Key(), Status: "failed"}
		if text := strings.TrimSpace(r.Response.Text()); r.Error == nil && text != "" {
			item.Response = text
			item.Status = ItemSuccess
			if um := r.Response.UsageMetadata; um != nil {
				item.Usage = &cost.Usage{
					PromptTokens:     um.PromptTokenCount,
					CompletionTokens: um.CandidatesTokenCount,
				}
			} else {
				item.Usage = &cost.Usage{}
			}
		}
		out = append(out, item)
	}
	return out, nil
}

// Retry is unsupported: the inlined input is not retained in a resubmittable
// form, so the caller must re-derive requests from source data.
func (a *GoogleAdapter) Retry(ctx context.Context, batchID string, metadata map[string]string) (string, bool, error) {
	return "", false, nil
}

func (a *GoogleAdapter) Describe(ctx context.Context, batchID string) (Info, error) {
	op, err := a.client.GetBatch(ctx, batchID)
	if err != nil {
		return Info{}, fmt.Errorf("batch: google: retrieve %s: %w", batchID, err)
	}
	return googleInfo(op), nil
}

func (a *GoogleAdapter) Cancel(ctx context.Context, batchID string) error {
	if err := a.client.CancelBatch(ctx, batchID); err != nil {
		return fmt.Errorf("batch: google: cancel %s: %w", batchID, err)
	}
	return nil
}

func (a *GoogleAdapter) List(ctx context.Context, limit int) ([]Info, error) {
	if limit <= 0 {
		limit = 10
	}
	ops, err := a.client.ListBatches(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("batch: google: list: %w", err)
	}

	out := make([]Info, 0, len(ops))
	for i := range ops {
		out = append(out, googleInfo(&ops[i]))
	}
	return out, nil
}

func googleInfo(op *gemini.Operation) Info {
	info := Info{ID: op.Name, Status: op.State()}
	if op.Metadata != nil && op.Metadata.BatchStats != nil {
		stats := op.Metadata.BatchStats
		info.Counts = Counts{
			Total:     atoiOrZero(stats.RequestCount),
			Completed: atoiOrZero(stats.CompletedRequestCount),
			Failed:    atoiOrZero(stats.FailedRequestCount),
		}
	}
	return info
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func toGeminiContents(msgs []Message) []gemini.Content {
	out := make([]gemini.Content, 0, len(msgs))
	for _, m := range msgs {
		role := "user"
		if strings.EqualFold(strings.TrimSpace(m.Role), "assistant") {
			role = "model"
		}
		out = append(out, gemini.Content{
			Role:  role,
			Parts: []gemini.Part{{Text: m.Content}},
		})
	}
	return out
}
