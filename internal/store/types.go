package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound reports a lookup that matched no row.
var ErrNotFound = errors.New("store: not found")

// BatchJobStatus is the lifecycle state of one ledger entry.
type BatchJobStatus string

const (
	BatchJobPending   BatchJobStatus = "pending"
	BatchJobCompleted BatchJobStatus = "completed"
	BatchJobRetry     BatchJobStatus = "retry"
	BatchJobFailed    BatchJobStatus = "failed"
	BatchJobCancelled BatchJobStatus = "cancelled"
)

// Terminal reports whether no further status transitions are allowed.
func (s BatchJobStatus) Terminal() bool {
	return s == BatchJobCompleted || s == BatchJobCancelled
}

// TerminalStateError rejects a status transition on a finished ledger entry.
type TerminalStateError struct {
	BatchID string
	Status  BatchJobStatus
}

func (e *TerminalStateError) Error() string {
	return fmt.Sprintf("store: batch job %s is %s and cannot change status", e.BatchID, e.Status)
}

// BatchJob is one durable ledger entry for a submitted remote batch.
type BatchJob struct {
	ID            int64
	SessionID     int64
	BenchmarkName string
	ModelName     string
	BatchID       string
	Status        BatchJobStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PreparedQuestion is one benchmark question prepared for a session.
type PreparedQuestion struct {
	ID            int64
	SessionID     int64
	BenchmarkName string
	Category      string
	Query         string
	CorrectAnswer string
	CreatedAt     time.Time
}

// Model result statuses. Reconciliation moves pending to completed exactly
// once per id.
const (
	ResultPending   = "pending"
	ResultCompleted = "completed"
)

// ModelResult is one model's answer slot for a prepared question.
type ModelResult struct {
	ID                 int64
	PreparedQuestionID int64
	ModelName          string
	Status             string
	Score              float64

	EstimatedInTokens  int
	EstimatedOutTokens int
	EstimatedInCost    float64
	EstimatedOutCost   float64

	Response        string
	ActualInTokens  int
	ActualOutTokens int
	ActualInCost    float64
	ActualOutCost   float64
	ExecutionTime   float64

	CreatedAt  time.Time
	ExecutedAt time.Time
}

// ExecutionUpdate carries the reconciled execution fields for one result.
type ExecutionUpdate struct {
	Response        string
	ActualInTokens  int
	ActualOutTokens int
	ActualInCost    float64
	ActualOutCost   float64
	Score           float64
	ExecutionTime   float64
}

// Ledger is the durable record of every submitted remote batch.
type Ledger interface {
	// RecordBatchJob appends one entry. Entries are never overwritten; a
	// retried batch gets a fresh entry for its new remote id.
	RecordBatchJob(ctx context.Context, job *BatchJob) (int64, error)
	// FindBatchJobs returns every entry for the session/benchmark/model
	// triple. Any entry at all makes re-submission for the triple redundant.
	FindBatchJobs(ctx context.Context, sessionID int64, benchmarkName, modelName string) ([]*BatchJob, error)
	// SetBatchJobStatus updates the entry for a remote batch id. Transitions
	// off a terminal status fail with *TerminalStateError.
	SetBatchJobStatus(ctx context.Context, batchID string, status BatchJobStatus) error
	// BatchJobsBySession returns every entry for a session.
	BatchJobsBySession(ctx context.Context, sessionID int64) ([]*BatchJob, error)
}

// ResultRepository is read/write access to model results.
type ResultRepository interface {
	AddModelResult(ctx context.Context, result *ModelResult) (int64, error)
	ResultsForSessionBenchmarkModel(ctx context.Context, sessionID int64, benchmarkName, modelName string) ([]*ModelResult, error)
	// UpdateExecutionResults persists reconciled fields and marks the result
	// completed. A result that is already completed is left untouched.
	UpdateExecutionResults(ctx context.Context, resultID int64, upd ExecutionUpdate) error
}

// QuestionRepository is read/write access to prepared questions.
type QuestionRepository interface {
	AddPreparedQuestion(ctx context.Context, q *PreparedQuestion) (int64, error)
	QuestionsForSessionBenchmark(ctx context.Context, sessionID int64, benchmarkName string) ([]*PreparedQuestion, error)
}

// Store is the full persistence surface.
type Store interface {
	Ledger
	ResultRepository
	QuestionRepository
	Close() error
}
