package api

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/stellarlinkco/batch-eval/internal/config"
	"github.com/stellarlinkco/batch-eval/internal/driver"
	"github.com/stellarlinkco/batch-eval/internal/progress"
	"github.com/stellarlinkco/batch-eval/internal/report"
	"github.com/stellarlinkco/batch-eval/internal/store"
)

// Server exposes read-only batch status over HTTP. Submission and
// reconciliation stay with the CLI driver; the API only reports.
type Server struct {
	router     *gin.Engine
	store      store.Store
	config     *config.Config
	reporter   *progress.Reporter
	scoreboard *report.Reporter
	driver     *driver.Driver
}

func NewServer(cfg *config.Config, st store.Store) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("api: nil config")
	}
	if st == nil {
		return nil, errors.New("api: nil store")
	}

	reporter, err := progress.NewReporter(st, cfg)
	if err != nil {
		return nil, err
	}
	scoreboard, err := report.New(st, cfg)
	if err != nil {
		return nil, err
	}
	drv, err := driver.New(st, cfg)
	if err != nil {
		return nil, err
	}

	r := gin.New()
	s := &Server{
		router:     r,
		store:      st,
		config:     cfg,
		reporter:   reporter,
		scoreboard: scoreboard,
		driver:     drv,
	}
	s.registerMiddleware()
	if err := s.registerRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) Run(addr string) error {
	if s == nil || s.router == nil {
		return errors.New("api: nil server")
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		addr = ":8080"
	}
	return s.router.Run(addr)
}
