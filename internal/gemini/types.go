package gemini

import "net/http"

// Client holds configuration for Gemini batch API requests.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Part is one piece of content, always text here.
type Part struct {
	Text string `json:"text"`
}

// Content is one role/parts turn in a request or candidate.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// GenerationConfig carries per-request generation limits.
type GenerationConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
}

// GenerateContentRequest is the request body for one batched generation.
type GenerateContentRequest struct {
	Contents         []Content         `json:"contents"`
	GenerationConfig *GenerationConfig `json:"generationConfig,omitempty"`
}

// InlinedRequest pairs a generation request with caller metadata. The "key"
// metadata entry is echoed back on the matching response.
type InlinedRequest struct {
	Request  *GenerateContentRequest `json:"request"`
	Metadata map[string]string       `json:"metadata,omitempty"`
}

// Batch processing states reported in operation metadata.
const (
	BatchStatePending   = "BATCH_STATE_PENDING"
	BatchStateRunning   = "BATCH_STATE_RUNNING"
	BatchStateSucceeded = "BATCH_STATE_SUCCEEDED"
	BatchStateFailed    = "BATCH_STATE_FAILED"
	BatchStateCancelled = "BATCH_STATE_CANCELLED"
	BatchStateExpired   = "BATCH_STATE_EXPIRED"
)

// Operation is the long-running batch job resource.
type Operation struct {
	Name     string         `json:"name"`
	Done     bool           `json:"done,omitempty"`
	Metadata *BatchMetadata `json:"metadata,omitempty"`
	Response *BatchOutput   `json:"response,omitempty"`
	Error    *StatusError   `json:"error,omitempty"`
}

// State returns the batch state from operation metadata, or "" if absent.
func (o *Operation) State() string {
	if o == nil || o.Metadata == nil {
		return ""
	}
	return o.Metadata.State
}

// BatchMetadata describes an in-flight or finished batch.
type BatchMetadata struct {
	State       string      `json:"state,omitempty"`
	DisplayName string      `json:"displayName,omitempty"`
	CreateTime  string      `json:"createTime,omitempty"`
	UpdateTime  string      `json:"updateTime,omitempty"`
	BatchStats  *BatchStats `json:"batchStats,omitempty"`
}

// BatchStats holds request-level counts. The API serializes int64 counts as
// strings, hence the string fields.
type BatchStats struct {
	RequestCount          string `json:"requestCount,omitempty"`
	CompletedRequestCount string `json:"completedRequestCount,omitempty"`
	FailedRequestCount    string `json:"failedRequestCount,omitempty"`
	PendingRequestCount   string `json:"pendingRequestCount,omitempty"`
}

// BatchOutput is the operation response payload once a batch succeeds.
type BatchOutput struct {
	InlinedResponses *InlinedResponseList `json:"inlinedResponses,omitempty"`
}

type InlinedResponseList struct {
	InlinedResponses []InlinedResponse `json:"inlinedResponses"`
}

// InlinedResponse is one per-request result. Either Response or Error is set.
type InlinedResponse struct {
	Metadata map[string]string        `json:"metadata,omitempty"`
	Response *GenerateContentResponse `json:"response,omitempty"`
	Error    *StatusError             `json:"error,omitempty"`
}

// Key returns the caller-assigned correlation key echoed on this response.
func (r *InlinedResponse) Key() string {
	if r == nil || r.Metadata == nil {
		return ""
	}
	return r.Metadata["key"]
}

// GenerateContentResponse is the per-request generation result.
type GenerateContentResponse struct {
	Candidates    []Candidate    `json:"candidates,omitempty"`
	UsageMetadata *UsageMetadata `json:"usageMetadata,omitempty"`
}

// Text returns the first candidate's concatenated text parts.
func (r *GenerateContentResponse) Text() string {
	if r == nil || len(r.Candidates) == 0 {
		return ""
	}
	out := ""
	for _, p := range r.Candidates[0].Content.Parts {
		out += p.Text
	}
	return out
}

type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount,omitempty"`
	CandidatesTokenCount int `json:"candidatesTokenCount,omitempty"`
	TotalTokenCount      int `json:"totalTokenCount,omitempty"`
}

// StatusError is a google.rpc.Status payload.
type StatusError struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Status  string `json:"status,omitempty"`
}

type listOperationsResponse struct {
	Operations    []Operation `json:"operations"`
	NextPageToken string      `json:"nextPageToken,omitempty"`
}
