package api

import (
	"errors"
	"os"
	"strings"
)

func (s *Server) registerRoutes() error {
	if s == nil || s.router == nil {
		return nil
	}

	api := s.router.Group("/api")
	apiKey := strings.TrimSpace(os.Getenv("BATCH_EVAL_API_KEY"))
	if apiKey != "" {
		api.Use(apiKeyAuthMiddleware(apiKey))
	} else if strings.EqualFold(strings.TrimSpace(os.Getenv("BATCH_EVAL_DISABLE_AUTH")), "true") {
		// Explicitly allow unauthenticated access.
	} else {
		return errors.New("api: missing auth configuration: set BATCH_EVAL_API_KEY or set BATCH_EVAL_DISABLE_AUTH=true")
	}

	api.GET("/health", s.handleHealth)

	api.GET("/sessions/:id/batches", s.handleSessionBatches)
	api.GET("/sessions/:id/progress", s.handleSessionProgress)
	api.GET("/sessions/:id/results", s.handleSessionResults)
	api.GET("/sessions/:id/report", s.handleSessionReport)

	api.GET("/models/:name/batches", s.handleModelBatches)

	return nil
}
