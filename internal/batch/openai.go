package batch

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/stellarlinkco/batch-eval/internal/config"
	"github.com/stellarlinkco/batch-eval/internal/cost"
)

const openAICompletionWindow = "24h"

// OpenAIAdapter submits batches through the OpenAI Batch API: requests are
// uploaded as a JSONL input file, the batch references the file, and results
// come back as a JSONL output file.
type OpenAIAdapter struct {
	requestBuffer
	client      *openai.Client
	artifactDir string
}

func NewOpenAIAdapter(pcfg config.ProviderConfig, mcfg config.ModelConfig) *OpenAIAdapter {
	cfg := openai.DefaultConfig(strings.TrimSpace(pcfg.APIKey))
	if v := strings.TrimSpace(pcfg.BaseURL); v != "" {
		cfg.BaseURL = strings.TrimRight(v, "/")
	}

	return &OpenAIAdapter{
		requestBuffer: newRequestBuffer(
			mcfg.Name,
			cost.NewBatchRates(mcfg.InputCostPerMillion, mcfg.OutputCostPerMillion),
			mcfg.BatchQueueLimit,
		),
		client:      openai.NewClientWithConfig(cfg),
		artifactDir: "batch",
	}
}

func (a *OpenAIAdapter) Provider() string { return "openai" }

func (a *OpenAIAdapter) Submit(ctx context.Context, benchmarkName string, sessionID int64, metadata map[string]string) ([]string, error) {
	subBatches := a.take()
	if len(subBatches) == 0 {
		return nil, &ValidationError{Reason: "no buffered requests"}
	}

	ids := make([]string, 0, len(subBatches))
	for part, reqs := range subBatches {
		_ = writeRequestArtifact(a.artifactDir, sessionID, benchmarkName, a.model, part, reqs)

		lines := make([]openai.BatchLineItem, 0, len(reqs))
		for _, req := range reqs {
			lines = append(lines, openai.BatchChatCompletionRequest{
				CustomID: req.CustomID,
				Method:   "POST",
				URL:      openai.BatchEndpointChatCompletions,
				Body: openai.ChatCompletionRequest{
					Model:     a.model,
					Messages:  toOpenAIMessages(req.Messages),
					MaxTokens: req.MaxOutputTokens,
				},
			})
		}

		fileName := fmt.Sprintf("%s_%s_%d.jsonl", sanitizeFileName(benchmarkName), sanitizeFileName(a.model), part)
		file, err := a.client.UploadBatchFile(ctx, openai.UploadBatchFileRequest{
			FileName: fileName,
			Lines:    lines,
		})
		if err != nil {
			return ids, &SubmissionError{Provider: "openai", Err: fmt.Errorf("upload input file: %w", err)}
		}

		batch, err := a.client.CreateBatch(ctx, openai.CreateBatchRequest{
			InputFileID:      file.ID,
			Endpoint:         openai.BatchEndpointChatCompletions,
			CompletionWindow: openAICompletionWindow,
			Metadata:         metadataToAny(metadata),
		})
		if err != nil {
			return ids, &SubmissionError{Provider: "openai", Err: fmt.Errorf("create batch: %w", err)}
		}
		ids = append(ids, batch.ID)
	}

	return ids, nil
}

func (a *OpenAIAdapter) PollStatus(ctx context.Context, batchID string) (PollStatus, error) {
	b, err := a.client.RetrieveBatch(ctx, batchID)
	if err != nil {
		return StatusPending, fmt.Errorf("batch: openai: retrieve %s: %w", batchID, err)
	}
	return mapOpenAIStatus(b.Status), nil
}

func mapOpenAIStatus(status string) PollStatus {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "completed":
		return StatusCompleted
	case "failed", "expired", "cancelling", "cancelled":
		return StatusFailed
	default:
		// validating, in_progress, finalizing
		return StatusPending
	}
}

func (a *OpenAIAdapter) FetchResults(ctx context.Context, batchID string) ([]ResponseItem, error) {
	b, err := a.client.RetrieveBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("batch: openai: retrieve %s: %w", batchID, err)
	}
	if b.OutputFileID == nil || strings.TrimSpace(*b.OutputFileID) == "" {
		return nil, fmt.Errorf("batch: openai: batch %s has no output file (status %s)", batchID, b.Status)
	}

	raw, err := a.client.GetFileContent(ctx, *b.OutputFileID)
	if err != nil {
		return nil, fmt.Errorf("batch: openai: download results for %s: %w", batchID, err)
	}
	defer raw.Close()

	return parseOpenAIResults(raw)
}

// openAIOutputLine is one line of the Batch API output file.
type openAIOutputLine struct {
	CustomID string `json:"custom_id"`
	Response *struct {
		StatusCode int                           `json:"status_code"`
		Body       openai.ChatCompletionResponse `json:"body"`
	} `json:"response"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func parseOpenAIResults(r io.Reader) ([]ResponseItem, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var out []ResponseItem
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}

		var row openAIOutputLine
		if err := json.Unmarshal(line, &row); err != nil {
			return out, fmt.Errorf("batch: openai: parse result line: %w", err)
		}

		item := ResponseItem{CustomID: row.CustomID, Status: "failed"}
		if row.Response != nil && row.Response.StatusCode == 200 && len(row.Response.Body.Choices) > 0 {
			item.Response = row.Response.Body.Choices[0].Message.Content
			item.Usage = &cost.Usage{
				PromptTokens:     row.Response.Body.Usage.PromptTokens,
				CompletionTokens: row.Response.Body.Usage.CompletionTokens,
			}
			item.Status = ItemSuccess
		}
		out = append(out, item)
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("batch: openai: read results: %w", err)
	}
	return out, nil
}

// Retry resubmits the retained input file as a fresh batch. OpenAI keeps the
// uploaded input, so no requests need re-deriving.
func (a *OpenAIAdapter) Retry(ctx context.Context, batchID string, metadata map[string]string) (string, bool, error) {
	b, err := a.client.RetrieveBatch(ctx, batchID)
	if err != nil {
		return "", true, fmt.Errorf("batch: openai: retrieve %s: %w", batchID, err)
	}
	if strings.TrimSpace(b.InputFileID) == "" {
		return "", false, nil
	}

	nb, err := a.client.CreateBatch(ctx, openai.CreateBatchRequest{
		InputFileID:      b.InputFileID,
		Endpoint:         openai.BatchEndpointChatCompletions,
		CompletionWindow: openAICompletionWindow,
		Metadata:         metadataToAny(metadata),
	})
	if err != nil {
		return "", true, &SubmissionError{Provider: "openai", Err: fmt.Errorf("retry batch %s: %w", batchID, err)}
	}
	return nb.ID, true, nil
}

func (a *OpenAIAdapter) Describe(ctx context.Context, batchID string) (Info, error) {
	b, err := a.client.RetrieveBatch(ctx, batchID)
	if err != nil {
		return Info{}, fmt.Errorf("batch: openai: retrieve %s: %w", batchID, err)
	}
	return Info{
		ID:     b.ID,
		Status: b.Status,
		Counts: Counts{
			Total:     b.RequestCounts.Total,
			Completed: b.RequestCounts.Completed,
			Failed:    b.RequestCounts.Failed,
		},
	}, nil
}

func (a *OpenAIAdapter) Cancel(ctx context.Context, batchID string) error {
	if _, err := a.client.CancelBatch(ctx, batchID); err != nil {
		return fmt.Errorf("batch: openai: cancel %s: %w", batchID, err)
	}
	return nil
}

func (a *OpenAIAdapter) List(ctx context.Context, limit int) ([]Info, error) {
	if limit <= 0 {
		limit = 10
	}
	resp, err := a.client.ListBatch(ctx, nil, &limit)
	if err != nil {
		return nil, fmt.Errorf("batch: openai: list: %w", err)
	}

	out := make([]Info, 0, len(resp.Data))
	for _, b := range resp.Data {
		out = append(out, Info{
			ID:     b.ID,
			Status: b.Status,
			Counts: Counts{
				Total:     b.RequestCounts.Total,
				Completed: b.RequestCounts.Completed,
				Failed:    b.RequestCounts.Failed,
			},
		})
	}
	return out, nil
}

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		role := strings.TrimSpace(m.Role)
		if role == "" {
			role = openai.ChatMessageRoleUser
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}

func metadataToAny(in map[string]string) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
