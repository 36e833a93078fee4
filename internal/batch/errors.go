package batch

import "fmt"

// ValidationError reports a malformed request rejected before submission.
// Nothing was sent to the provider.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "batch: invalid request: " + e.Reason
}

// SubmissionError reports a failure while submitting a batch to a provider.
// Sub-batches submitted before the failure may already exist remotely.
type SubmissionError struct {
	Provider string
	Err      error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("batch: %s: submit: %v", e.Provider, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}
