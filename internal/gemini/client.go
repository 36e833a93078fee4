package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the Gemini API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if c == nil {
			return
		}
		baseURL = strings.TrimSpace(baseURL)
		if baseURL == "" {
			return
		}
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if c == nil || httpClient == nil {
			return
		}
		c.httpClient = httpClient
	}
}

// NewClient constructs a Client with the given API key and options.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// APIError represents a non-2xx response from the Gemini API.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	if e == nil {
		return "gemini: nil api error"
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = strings.TrimSpace(string(e.Body))
	}
	return fmt.Sprintf("gemini: api error (status %d): %s", e.StatusCode, msg)
}

// CreateBatch submits inlined requests as one asynchronous batch job against
// the given model and returns the created operation.
func (c *Client) CreateBatch(ctx context.Context, model, displayName string, reqs []InlinedRequest) (*Operation, error) {
	if c == nil {
		return nil, errors.New("gemini: nil client")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, errors.New("gemini: empty model")
	}
	if len(reqs) == 0 {
		return nil, errors.New("gemini: no requests")
	}

	body := map[string]any{
		"batch": map[string]any{
			"displayName": displayName,
			"inputConfig": map[string]any{
				"requests": map[string]any{
					"requests": reqs,
				},
			},
		},
	}

	path := "/models/" + url.PathEscape(model) + ":batchGenerateContent"
	var op Operation
	if err := c.do(ctx, http.MethodPost, path, body, &op); err != nil {
		return nil, err
	}
	return &op, nil
}

// GetBatch retrieves a batch operation by its resource name ("batches/...").
func (c *Client) GetBatch(ctx context.Context, name string) (*Operation, error) {
	if c == nil {
		return nil, errors.New("gemini: nil client")
	}
	name = strings.TrimSpace(strings.Trim(name, "/"))
	if name == "" {
		return nil, errors.New("gemini: empty batch name")
	}

	var op Operation
	if err := c.do(ctx, http.MethodGet, "/"+name, nil, &op); err != nil {
		return nil, err
	}
	return &op, nil
}

// CancelBatch requests cancellation of a running batch.
func (c *Client) CancelBatch(ctx context.Context, name string) error {
	if c == nil {
		return errors.New("gemini: nil client")
	}
	name = strings.TrimSpace(strings.Trim(name, "/"))
	if name == "" {
		return errors.New("gemini: empty batch name")
	}
	return c.do(ctx, http.MethodPost, "/"+name+":cancel", struct{}{}, nil)
}

// ListBatches returns up to pageSize batch operations.
func (c *Client) ListBatches(ctx context.Context, pageSize int) ([]Operation, error) {
	if c == nil {
		return nil, errors.New("gemini: nil client")
	}
	path := "/batches"
	if pageSize > 0 {
		path += "?pageSize=" + strconv.Itoa(pageSize)
	}

	var resp listOperationsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Operations, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	if ctx == nil {
		return errors.New("gemini: nil context")
	}
	if strings.TrimSpace(c.apiKey) == "" {
		return errors.New("gemini: missing api key")
	}

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("gemini: marshal request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("gemini: build request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.apiKey)
	if body != nil {
		req.Header.Set("content-type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gemini: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("gemini: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiErrorFromBody(resp.StatusCode, resp.Status, respBody)
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("gemini: decode response: %w", err)
	}
	return nil
}

func apiErrorFromBody(statusCode int, status string, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: statusCode,
		Status:     status,
		Body:       body,
	}

	var payload struct {
		Error *StatusError `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != nil {
		apiErr.Message = payload.Error.Message
	}
	return apiErr
}
