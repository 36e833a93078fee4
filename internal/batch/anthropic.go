package batch

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/stellarlinkco/batch-eval/internal/config"
	"github.com/stellarlinkco/batch-eval/internal/cost"
)

// AnthropicAdapter submits batches through the Message Batches API. Requests
// go inline with the create call; results stream back as JSONL.
type AnthropicAdapter struct {
	requestBuffer
	client *anthropic.Client
}

func NewAnthropicAdapter(pcfg config.ProviderConfig, mcfg config.ModelConfig) *AnthropicAdapter {
	opts := make([]option.RequestOption, 0, 2)
	if v := strings.TrimSpace(pcfg.APIKey); v != "" {
		opts = append(opts, option.WithAPIKey(v))
	}
	if v := strings.TrimSpace(pcfg.BaseURL); v != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(v, "/")))
	}
	client := anthropic.NewClient(opts...)

	return &AnthropicAdapter{
		requestBuffer: newRequestBuffer(
			mcfg.Name,
			cost.NewBatchRates(mcfg.InputCostPerMillion, mcfg.OutputCostPerMillion),
			mcfg.BatchQueueLimit,
		),
		client: &client,
	}
}

func (a *AnthropicAdapter) Provider() string { return "anthropic" }

func (a *AnthropicAdapter) Submit(ctx context.Context, benchmarkName string, sessionID int64, metadata map[string]string) ([]string, error) {
	subBatches := a.take()
	if len(subBatches) == 0 {
		return nil, &ValidationError{Reason: "no buffered requests"}
	}

	ids := make([]string, 0, len(subBatches))
	for _, reqs := range subBatches {
		params := anthropic.MessageBatchNewParams{
			Requests: make([]anthropic.MessageBatchNewParamsRequest, 0, len(reqs)),
		}
		for _, req := range reqs {
			params.Requests = append(params.Requests, anthropic.MessageBatchNewParamsRequest{
				CustomID: req.CustomID,
				Params: anthropic.MessageBatchNewParamsRequestParams{
					Model:     anthropic.Model(a.model),
					MaxTokens: int64(req.MaxOutputTokens),
					Messages:  toAnthropicMessages(req.Messages),
				},
			})
		}

		mb, err := a.client.Messages.Batches.New(ctx, params)
		if err != nil {
			return ids, &SubmissionError{Provider: "anthropic", Err: err}
		}
		ids = append(ids, mb.ID)
	}

	return ids, nil
}

func (a *AnthropicAdapter) PollStatus(ctx context.Context, batchID string) (PollStatus, error) {
	mb, err := a.client.Messages.Batches.Get(ctx, batchID)
	if err != nil {
		return StatusPending, fmt.Errorf("batch: anthropic: retrieve %s: %w", batchID, err)
	}

	if mb.ProcessingStatus != "ended" {
		// in_progress or canceling
		return StatusPending, nil
	}

	// "ended" covers both success and failure; the request counts tell them
	// apart. A batch where nothing succeeded is a failure.
	counts := mb.RequestCounts
	if counts.Succeeded == 0 && counts.Errored+counts.Expired+counts.Canceled > 0 {
		return StatusFailed, nil
	}
	return StatusCompleted, nil
}

func (a *AnthropicAdapter) FetchResults(ctx context.Context, batchID string) ([]ResponseItem, error) {
	stream := a.client.Messages.Batches.ResultsStreaming(ctx, batchID)

	var out []ResponseItem
	for stream.Next() {
		entry := stream.Current()

		item := ResponseItem{CustomID: entry.CustomID, Status: string(entry.Result.Type)}
		if entry.Result.Type == "succeeded" {
			msg := entry.Result.Message
			item.Response = firstTextBlock(msg)
			item.Usage = &cost.Usage{
				PromptTokens:     int(msg.Usage.InputTokens),
				CompletionTokens: int(msg.Usage.OutputTokens),
			}
			item.Status = ItemSuccess
		}
		out = append(out, item)
	}
	if err := stream.Err(); err != nil {
		return out, fmt.Errorf("batch: anthropic: read results for %s: %w", batchID, err)
	}
	return out, nil
}

func firstTextBlock(msg anthropic.Message) string {
	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text
		}
	}
	return ""
}

// Retry is unsupported: the Message Batches API keeps no resubmittable input
// artifact, so the caller must re-derive requests from source data.
func (a *AnthropicAdapter) Retry(ctx context.Context, batchID string, metadata map[string]string) (string, bool, error) {
	return "", false, nil
}

func (a *AnthropicAdapter) Describe(ctx context.Context, batchID string) (Info, error) {
	mb, err := a.client.Messages.Batches.Get(ctx, batchID)
	if err != nil {
		return Info{}, fmt.Errorf("batch: anthropic: retrieve %s: %w", batchID, err)
	}
	return anthropicInfo(mb), nil
}

func (a *AnthropicAdapter) Cancel(ctx context.Context, batchID string) error {
	if _, err := a.client.Messages.Batches.Cancel(ctx, batchID); err != nil {
		return fmt.Errorf("batch: anthropic: cancel %s: %w", batchID, err)
	}
	return nil
}

func (a *AnthropicAdapter) List(ctx context.Context, limit int) ([]Info, error) {
	if limit <= 0 {
		limit = 10
	}
	page, err := a.client.Messages.Batches.List(ctx, anthropic.MessageBatchListParams{
		Limit: anthropic.Int(int64(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("batch: anthropic: list: %w", err)
	}

	out := make([]Info, 0, len(page.Data))
	for i := range page.Data {
		out = append(out, anthropicInfo(&page.Data[i]))
	}
	return out, nil
}

func anthropicInfo(mb *anthropic.MessageBatch) Info {
	counts := mb.RequestCounts
	total := counts.Processing + counts.Succeeded + counts.Errored + counts.Canceled + counts.Expired
	return Info{
		ID:     mb.ID,
		Status: string(mb.ProcessingStatus),
		Counts: Counts{
			Total:     int(total),
			Completed: int(counts.Succeeded),
			Failed:    int(counts.Errored + counts.Canceled + counts.Expired),
		},
	}
}

func toAnthropicMessages(msgs []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		role := anthropic.MessageParamRoleUser
		if strings.EqualFold(strings.TrimSpace(m.Role), "assistant") {
			role = anthropic.MessageParamRoleAssistant
		}
		out = append(out, anthropic.MessageParam{
			Role:    role,
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(m.Content)},
		})
	}
	return out
}
