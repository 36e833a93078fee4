package batch

import (
	"context"

	"github.com/stellarlinkco/batch-eval/internal/cost"
)

// PollStatus is the uniform tri-state a provider's batch status maps down to.
// "Not ready yet" is a normal value here, never an error.
type PollStatus string

const (
	StatusPending   PollStatus = "pending"
	StatusCompleted PollStatus = "completed"
	StatusFailed    PollStatus = "failed"
)

// ItemSuccess marks a ResponseItem the provider completed successfully.
// Any other status string is the provider's own failure vocabulary.
const ItemSuccess = "success"

// Message is one role/content turn in a request prompt.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RequestItem is one buffered request awaiting submission. CustomID is the
// caller's correlation key and must be unique within a submission.
type RequestItem struct {
	CustomID        string    `json:"custom_id"`
	Messages        []Message `json:"messages"`
	MaxOutputTokens int       `json:"max_output_tokens"`
}

// ResponseItem is one parsed provider result. A failed item carries an empty
// response and nil usage rather than aborting its whole batch.
type ResponseItem struct {
	CustomID string
	Response string
	Usage    *cost.Usage
	Status   string
}

// Counts summarizes request-level progress for one remote batch.
type Counts struct {
	Total     int
	Completed int
	Failed    int
}

// Info describes one remote batch for administrative listings and progress.
type Info struct {
	ID     string
	Status string
	Counts Counts
}

// Adapter is the uniform batch contract over one provider's batch API for one
// model. An adapter buffers requests locally until Submit flushes them; it
// holds no other state between calls.
type Adapter interface {
	// Provider returns the provider key ("openai", "anthropic", ...).
	Provider() string
	// ModelName returns the model the adapter submits against.
	ModelName() string
	// Rates returns the batch token prices for cost reconciliation.
	Rates() cost.Rates

	// AddRequest buffers one request. It fails with a *ValidationError when
	// customID is empty or messages is empty.
	AddRequest(customID string, messages []Message, maxOutputTokens int) error

	// Submit flushes buffered requests, splitting them into multiple remote
	// batches when their estimated token volume exceeds the configured queue
	// limit. Each returned id is an independent remote batch; sub-batch
	// submission is not atomic across ids.
	Submit(ctx context.Context, benchmarkName string, sessionID int64, metadata map[string]string) ([]string, error)

	// PollStatus maps the provider's status vocabulary to the tri-state. A
	// transient read failure returns (StatusPending, err).
	PollStatus(ctx context.Context, batchID string) (PollStatus, error)

	// FetchResults parses the provider's result container. Only valid once
	// PollStatus reports StatusCompleted.
	FetchResults(ctx context.Context, batchID string) ([]ResponseItem, error)

	// Retry resubmits a failed batch from the input artifact the provider
	// retained. supported=false means the provider keeps no input and the
	// caller must re-derive requests from source data.
	Retry(ctx context.Context, batchID string, metadata map[string]string) (newBatchID string, supported bool, err error)

	// Describe reports status and request counts for one remote batch.
	Describe(ctx context.Context, batchID string) (Info, error)

	// Cancel requests cancellation. Best effort.
	Cancel(ctx context.Context, batchID string) error

	// List returns up to limit recent batches. Best effort.
	List(ctx context.Context, limit int) ([]Info, error)
}
