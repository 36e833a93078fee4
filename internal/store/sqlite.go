package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB

	insertJobStmt      *sql.Stmt
	jobsByTripleStmt   *sql.Stmt
	jobsBySessionStmt  *sql.Stmt
	insertQuestionStmt *sql.Stmt
	questionsStmt      *sql.Stmt
	insertResultStmt   *sql.Stmt
	resultsStmt        *sql.Stmt
}

var (
	sqliteOpen              = sql.Open
	sqlitePrepareStatements = (*SQLiteStore).prepareStatements
)

// NewSQLiteStore opens or creates a SQLite store at the given path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("store: empty sqlite path")
	}
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("store: create sqlite dir: %w", err)
			}
		}
	}

	db, err := sqliteOpen("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping sqlite: %w", err)
	}

	if err := initSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	st := &SQLiteStore{db: db}
	if err := sqlitePrepareStatements(st); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func initSQLiteSchema(db *sql.DB) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON`,
		`PRAGMA journal_mode = WAL`,
		`CREATE TABLE IF NOT EXISTS prepared_questions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			test_session_id INTEGER NOT NULL,
			benchmark_name TEXT NOT NULL,
			category TEXT NOT NULL,
			query TEXT NOT NULL,
			correct_answer TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS model_results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			prepared_question_id INTEGER NOT NULL,
			model_name TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			score REAL NOT NULL DEFAULT 0,
			estimated_in_tokens INTEGER NOT NULL DEFAULT 0,
			estimated_out_tokens INTEGER NOT NULL DEFAULT 0,
			estimated_in_cost REAL NOT NULL DEFAULT 0,
			estimated_out_cost REAL NOT NULL DEFAULT 0,
			response TEXT NOT NULL DEFAULT '',
			actual_in_tokens INTEGER NOT NULL DEFAULT 0,
			actual_out_tokens INTEGER NOT NULL DEFAULT 0,
			actual_in_cost REAL NOT NULL DEFAULT 0,
			actual_out_cost REAL NOT NULL DEFAULT 0,
			execution_time REAL NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			executed_at INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY(prepared_question_id) REFERENCES prepared_questions(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS batch_jobs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			test_session_id INTEGER NOT NULL,
			benchmark_name TEXT NOT NULL,
			model_name TEXT NOT NULL,
			batch_id TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_questions_session_benchmark
			ON prepared_questions(test_session_id, benchmark_name)`,
		`CREATE INDEX IF NOT EXISTS idx_results_question ON model_results(prepared_question_id)`,
		`CREATE INDEX IF NOT EXISTS idx_results_model ON model_results(model_name)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_triple
			ON batch_jobs(test_session_id, benchmark_name, model_name)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_batch_id ON batch_jobs(batch_id)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("store: init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) prepareStatements() error {
	if s == nil || s.db == nil {
		return errors.New("store: nil sqlite store")
	}

	ctx := context.Background()
	type stmtSpec struct {
		dst    **sql.Stmt
		query  string
		errFmt string
	}

	specs := []stmtSpec{
		{
			dst: &s.insertJobStmt,
			query: `
				INSERT INTO batch_jobs (
					test_session_id, benchmark_name, model_name, batch_id, status, created_at, updated_at
				) VALUES (?, ?, ?, ?, ?, ?, ?)
			`,
			errFmt: "store: prepare insert batch job: %w",
		},
		{
			dst: &s.jobsByTripleStmt,
			query: `
				SELECT id, test_session_id, benchmark_name, model_name, batch_id, status, created_at, updated_at
				FROM batch_jobs
				WHERE test_session_id = ? AND benchmark_name = ? AND model_name = ?
				ORDER BY created_at ASC, id ASC
			`,
			errFmt: "store: prepare batch jobs by triple: %w",
		},
		{
			dst: &s.jobsBySessionStmt,
			query: `
				SELECT id, test_session_id, benchmark_name, model_name, batch_id, status, created_at, updated_at
				FROM batch_jobs
				WHERE test_session_id = ?
				ORDER BY created_at ASC, id ASC
			`,
			errFmt: "store: prepare batch jobs by session: %w",
		},
		{
			dst: &s.insertQuestionStmt,
			query: `
				INSERT INTO prepared_questions (
					test_session_id, benchmark_name, category, query, correct_answer, created_at
				) VALUES (?, ?, ?, ?, ?, ?)
			`,
			errFmt: "store: prepare insert question: %w",
		},
		{
			dst: &s.questionsStmt,
			query: `
				SELECT id, test_session_id, benchmark_name, category, query, correct_answer, created_at
				FROM prepared_questions
				WHERE test_session_id = ? AND benchmark_name = ?
				ORDER BY id ASC
			`,
			errFmt: "store: prepare questions by session/benchmark: %w",
		},
		{
			dst: &s.insertResultStmt,
			query: `
				INSERT INTO model_results (
					prepared_question_id, model_name, status, score,
					estimated_in_tokens, estimated_out_tokens, estimated_in_cost, estimated_out_cost,
					response, actual_in_tokens, actual_out_tokens, actual_in_cost, actual_out_cost,
					execution_time, created_at, executed_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`,
			errFmt: "store: prepare insert result: %w",
		},
		{
			dst: &s.resultsStmt,
			query: `
				SELECT r.id, r.prepared_question_id, r.model_name, r.status, r.score,
					r.estimated_in_tokens, r.estimated_out_tokens, r.estimated_in_cost, r.estimated_out_cost,
					r.response, r.actual_in_tokens, r.actual_out_tokens, r.actual_in_cost, r.actual_out_cost,
					r.execution_time, r.created_at, r.executed_at
				FROM model_results r
				JOIN prepared_questions q ON q.id = r.prepared_question_id
				WHERE q.test_session_id = ? AND q.benchmark_name = ? AND r.model_name = ?
				ORDER BY r.id ASC
			`,
			errFmt: "store: prepare results by session/benchmark/model: %w",
		},
	}

	for _, spec := range specs {
		stmt, err := s.db.PrepareContext(ctx, spec.query)
		if err != nil {
			return fmt.Errorf(spec.errFmt, err)
		}
		*spec.dst = stmt
	}

	return nil
}

// Close releases database resources.
func (s *SQLiteStore) Close() error {
	if s == nil {
		return nil
	}
	stmts := []*sql.Stmt{
		s.insertJobStmt,
		s.jobsByTripleStmt,
		s.jobsBySessionStmt,
		s.insertQuestionStmt,
		s.questionsStmt,
		s.insertResultStmt,
		s.resultsStmt,
	}
	for _, stmt := range stmts {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordBatchJob appends one ledger entry and returns its row id.
func (s *SQLiteStore) RecordBatchJob(ctx context.Context, job *BatchJob) (int64, error) {
	if s == nil {
		return 0, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return 0, errors.New("store: nil context")
	}
	if job == nil {
		return 0, errors.New("store: nil batch job")
	}
	if strings.TrimSpace(job.BatchID) == "" {
		return 0, errors.New("store: empty remote batch id")
	}
	if strings.TrimSpace(job.BenchmarkName) == "" || strings.TrimSpace(job.ModelName) == "" {
		return 0, errors.New("store: batch job missing benchmark or model")
	}

	status := job.Status
	if status == "" {
		status = BatchJobPending
	}

	now := time.Now().UTC()
	created := job.CreatedAt
	if created.IsZero() {
		created = now
	}

	res, err := s.insertJobStmt.ExecContext(ctx,
		job.SessionID, job.BenchmarkName, job.ModelName, job.BatchID,
		string(status), created.Unix(), now.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("store: insert batch job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: batch job id: %w", err)
	}
	return id, nil
}

// FindBatchJobs returns every ledger entry for the triple, oldest first.
func (s *SQLiteStore) FindBatchJobs(ctx context.Context, sessionID int64, benchmarkName, modelName string) ([]*BatchJob, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	rows, err := s.jobsByTripleStmt.QueryContext(ctx, sessionID, benchmarkName, modelName)
	if err != nil {
		return nil, fmt.Errorf("store: query batch jobs: %w", err)
	}
	defer rows.Close()
	return scanBatchJobs(rows)
}

// BatchJobsBySession returns every ledger entry for a session, oldest first.
func (s *SQLiteStore) BatchJobsBySession(ctx context.Context, sessionID int64) ([]*BatchJob, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	rows, err := s.jobsBySessionStmt.QueryContext(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: query session batch jobs: %w", err)
	}
	defer rows.Close()
	return scanBatchJobs(rows)
}

func scanBatchJobs(rows *sql.Rows) ([]*BatchJob, error) {
	var out []*BatchJob
	for rows.Next() {
		var (
			job                  BatchJob
			status               string
			createdAt, updatedAt int64
		)
		if err := rows.Scan(
			&job.ID, &job.SessionID, &job.BenchmarkName, &job.ModelName,
			&job.BatchID, &status, &createdAt, &updatedAt,
		); err != nil {
			return nil, fmt.Errorf("store: scan batch job: %w", err)
		}
		job.Status = BatchJobStatus(status)
		job.CreatedAt = time.Unix(createdAt, 0).UTC()
		job.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		out = append(out, &job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate batch jobs: %w", err)
	}
	return out, nil
}

// SetBatchJobStatus transitions the entry for a remote batch id. A terminal
// entry rejects further transitions with *TerminalStateError.
func (s *SQLiteStore) SetBatchJobStatus(ctx context.Context, batchID string, status BatchJobStatus) error {
	if s == nil {
		return errors.New("store: nil sqlite store")
	}
	batchID = strings.TrimSpace(batchID)
	if batchID == "" {
		return errors.New("store: empty remote batch id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin status update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM batch_jobs WHERE batch_id = ? ORDER BY id DESC LIMIT 1`, batchID,
	).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("store: batch job %s: %w", batchID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("store: read batch job status: %w", err)
	}

	if cur := BatchJobStatus(current); cur.Terminal() {
		return &TerminalStateError{BatchID: batchID, Status: cur}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE batch_jobs SET status = ?, updated_at = ? WHERE batch_id = ?`,
		string(status), time.Now().UTC().Unix(), batchID,
	); err != nil {
		return fmt.Errorf("store: update batch job status: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit status update: %w", err)
	}
	return nil
}

// AddPreparedQuestion persists one question and returns its id.
func (s *SQLiteStore) AddPreparedQuestion(ctx context.Context, q *PreparedQuestion) (int64, error) {
	if s == nil {
		return 0, errors.New("store: nil sqlite store")
	}
	if q == nil {
		return 0, errors.New("store: nil question")
	}
	if strings.TrimSpace(q.BenchmarkName) == "" {
		return 0, errors.New("store: question missing benchmark")
	}

	created := q.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	res, err := s.insertQuestionStmt.ExecContext(ctx,
		q.SessionID, q.BenchmarkName, q.Category, q.Query, q.CorrectAnswer, created.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("store: insert question: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: question id: %w", err)
	}
	return id, nil
}

// QuestionsForSessionBenchmark returns the session's questions for a benchmark.
func (s *SQLiteStore) QuestionsForSessionBenchmark(ctx context.Context, sessionID int64, benchmarkName string) ([]*PreparedQuestion, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	rows, err := s.questionsStmt.QueryContext(ctx, sessionID, benchmarkName)
	if err != nil {
		return nil, fmt.Errorf("store: query questions: %w", err)
	}
	defer rows.Close()

	var out []*PreparedQuestion
	for rows.Next() {
		var (
			q         PreparedQuestion
			createdAt int64
		)
		if err := rows.Scan(
			&q.ID, &q.SessionID, &q.BenchmarkName, &q.Category, &q.Query, &q.CorrectAnswer, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("store: scan question: %w", err)
		}
		q.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, &q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate questions: %w", err)
	}
	return out, nil
}

// AddModelResult persists one result slot and returns its id.
func (s *SQLiteStore) AddModelResult(ctx context.Context, r *ModelResult) (int64, error) {
	if s == nil {
		return 0, errors.New("store: nil sqlite store")
	}
	if r == nil {
		return 0, errors.New("store: nil model result")
	}
	if r.PreparedQuestionID <= 0 {
		return 0, errors.New("store: model result missing question id")
	}
	if strings.TrimSpace(r.ModelName) == "" {
		return 0, errors.New("store: model result missing model name")
	}

	status := strings.TrimSpace(r.Status)
	if status == "" {
		status = ResultPending
	}
	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	var executed int64
	if !r.ExecutedAt.IsZero() {
		executed = r.ExecutedAt.Unix()
	}

	res, err := s.insertResultStmt.ExecContext(ctx,
		r.PreparedQuestionID, r.ModelName, status, r.Score,
		r.EstimatedInTokens, r.EstimatedOutTokens, r.EstimatedInCost, r.EstimatedOutCost,
		r.Response, r.ActualInTokens, r.ActualOutTokens, r.ActualInCost, r.ActualOutCost,
		r.ExecutionTime, created.Unix(), executed,
	)
	if err != nil {
		return 0, fmt.Errorf("store: insert model result: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: model result id: %w", err)
	}
	return id, nil
}

// ResultsForSessionBenchmarkModel returns a model's results for the session's
// benchmark questions.
func (s *SQLiteStore) ResultsForSessionBenchmarkModel(ctx context.Context, sessionID int64, benchmarkName, modelName string) ([]*ModelResult, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	rows, err := s.resultsStmt.QueryContext(ctx, sessionID, benchmarkName, modelName)
	if err != nil {
		return nil, fmt.Errorf("store: query model results: %w", err)
	}
	defer rows.Close()

	var out []*ModelResult
	for rows.Next() {
		var (
			r                     ModelResult
			createdAt, executedAt int64
		)
		if err := rows.Scan(
			&r.ID, &r.PreparedQuestionID, &r.ModelName, &r.Status, &r.Score,
			&r.EstimatedInTokens, &r.EstimatedOutTokens, &r.EstimatedInCost, &r.EstimatedOutCost,
			&r.Response, &r.ActualInTokens, &r.ActualOutTokens, &r.ActualInCost, &r.ActualOutCost,
			&r.ExecutionTime, &createdAt, &executedAt,
		); err != nil {
			return nil, fmt.Errorf("store: scan model result: %w", err)
		}
		r.CreatedAt = time.Unix(createdAt, 0).UTC()
		if executedAt > 0 {
			r.ExecutedAt = time.Unix(executedAt, 0).UTC()
		}
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate model results: %w", err)
	}
	return out, nil
}

// UpdateExecutionResults stores reconciled execution fields and marks the
// result completed. Only a pending result is updated, so reconciliation can
// run again without clobbering an earlier write.
func (s *SQLiteStore) UpdateExecutionResults(ctx context.Context, resultID int64, upd ExecutionUpdate) error {
	if s == nil {
		return errors.New("store: nil sqlite store")
	}
	if resultID <= 0 {
		return errors.New("store: invalid model result id")
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE model_results
		SET response = ?, actual_in_tokens = ?, actual_out_tokens = ?,
			actual_in_cost = ?, actual_out_cost = ?, score = ?, execution_time = ?,
			status = ?, executed_at = ?
		WHERE id = ? AND status = ?
	`,
		upd.Response, upd.ActualInTokens, upd.ActualOutTokens,
		upd.ActualInCost, upd.ActualOutCost, upd.Score, upd.ExecutionTime,
		ResultCompleted, time.Now().UTC().Unix(),
		resultID, ResultPending,
	)
	if err != nil {
		return fmt.Errorf("store: update execution results: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: execution update rows: %w", err)
	}
	if n > 0 {
		return nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM model_results WHERE id = ?`, resultID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("store: model result %d: %w", resultID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("store: check model result: %w", err)
	}
	// Already completed; leave the earlier reconciliation in place.
	return nil
}
