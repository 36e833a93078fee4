package batch

import (
	"strings"

	"github.com/stellarlinkco/batch-eval/internal/cost"
)

// requestBuffer carries the per-model state every adapter shares: the model
// name, its batch prices, the queue limit, and the requests buffered between
// AddRequest and Submit.
type requestBuffer struct {
	model      string
	rates      cost.Rates
	queueLimit int
	requests   []RequestItem
}

func newRequestBuffer(model string, rates cost.Rates, queueLimit int) requestBuffer {
	return requestBuffer{
		model:      strings.TrimSpace(model),
		rates:      rates,
		queueLimit: queueLimit,
	}
}

func (b *requestBuffer) ModelName() string {
	return b.model
}

func (b *requestBuffer) Rates() cost.Rates {
	return b.rates
}

func (b *requestBuffer) AddRequest(customID string, messages []Message, maxOutputTokens int) error {
	if strings.TrimSpace(customID) == "" {
		return &ValidationError{Reason: "empty custom id"}
	}
	if len(messages) == 0 {
		return &ValidationError{Reason: "empty messages"}
	}
	if maxOutputTokens <= 0 {
		maxOutputTokens = 1
	}
	b.requests = append(b.requests, RequestItem{
		CustomID:        customID,
		Messages:        messages,
		MaxOutputTokens: maxOutputTokens,
	})
	return nil
}

// take drains the buffer and returns its contents packed into sub-batches.
func (b *requestBuffer) take() [][]RequestItem {
	reqs := b.requests
	b.requests = nil
	return splitRequests(reqs, b.queueLimit)
}
