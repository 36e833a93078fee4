package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stellarlinkco/batch-eval/internal/progress"
	"github.com/stellarlinkco/batch-eval/internal/report"
	"github.com/stellarlinkco/batch-eval/internal/store"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func sessionIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return 0, false
	}
	return id, true
}

type batchJobDTO struct {
	BatchID       string    `json:"batch_id"`
	BenchmarkName string    `json:"benchmark_name"`
	ModelName     string    `json:"model_name"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (s *Server) handleSessionBatches(c *gin.Context) {
	sessionID, ok := sessionIDParam(c)
	if !ok {
		return
	}

	jobs, err := s.store.BatchJobsBySession(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]batchJobDTO, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, batchJobDTO{
			BatchID:       job.BatchID,
			BenchmarkName: job.BenchmarkName,
			ModelName:     job.ModelName,
			Status:        string(job.Status),
			CreatedAt:     job.CreatedAt,
			UpdatedAt:     job.UpdatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"session_id": sessionID, "batches": out})
}

func (s *Server) handleSessionProgress(c *gin.Context) {
	sessionID, ok := sessionIDParam(c)
	if !ok {
		return
	}

	groups, err := s.reporter.SessionProgress(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"groups":     groups,
		"rendered":   progress.Render(groups),
	})
}

type modelResultDTO struct {
	ID                 int64   `json:"id"`
	PreparedQuestionID int64   `json:"prepared_question_id"`
	Status             string  `json:"status"`
	Score              float64 `json:"score"`
	Response           string  `json:"response,omitempty"`
	ActualInTokens     int     `json:"actual_in_tokens"`
	ActualOutTokens    int     `json:"actual_out_tokens"`
	ActualInCost       float64 `json:"actual_in_cost"`
	ActualOutCost      float64 `json:"actual_out_cost"`
}

func (s *Server) handleSessionResults(c *gin.Context) {
	sessionID, ok := sessionIDParam(c)
	if !ok {
		return
	}
	benchmarkName := strings.TrimSpace(c.Query("benchmark"))
	modelName := strings.TrimSpace(c.Query("model"))
	if benchmarkName == "" || modelName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "benchmark and model query parameters are required"})
		return
	}

	results, err := s.store.ResultsForSessionBenchmarkModel(c.Request.Context(), sessionID, benchmarkName, modelName)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]modelResultDTO, 0, len(results))
	var completed int
	var totalScore, totalCost float64
	for _, r := range results {
		out = append(out, modelResultDTO{
			ID:                 r.ID,
			PreparedQuestionID: r.PreparedQuestionID,
			Status:             r.Status,
			Score:              r.Score,
			Response:           r.Response,
			ActualInTokens:     r.ActualInTokens,
			ActualOutTokens:    r.ActualOutTokens,
			ActualInCost:       r.ActualInCost,
			ActualOutCost:      r.ActualOutCost,
		})
		if r.Status == store.ResultCompleted {
			completed++
			totalScore += r.Score
		}
		totalCost += r.ActualInCost + r.ActualOutCost
	}

	summary := gin.H{
		"total":      len(results),
		"completed":  completed,
		"total_cost": totalCost,
	}
	if completed > 0 {
		summary["avg_score"] = totalScore / float64(completed)
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"benchmark":  benchmarkName,
		"model":      modelName,
		"results":    out,
		"summary":    summary,
	})
}

func (s *Server) handleSessionReport(c *gin.Context) {
	sessionID, ok := sessionIDParam(c)
	if !ok {
		return
	}

	entries, err := s.scoreboard.SessionReport(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"entries":    entries,
		"rendered":   report.Render(entries),
	})
}

func (s *Server) handleModelBatches(c *gin.Context) {
	modelName := strings.TrimSpace(c.Param("name"))
	if modelName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing model name"})
		return
	}

	limit := 10
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	infos, err := s.driver.ListBatches(c.Request.Context(), modelName, limit)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"model": modelName, "batches": infos})
}
