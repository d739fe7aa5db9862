package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/semmidev/dbpull/internal/domain"
	"github.com/semmidev/dbpull/internal/infrastructure/queue"
)

type JobStore interface {
	List(ctx context.Context, limit int) ([]queue.Job, error)
	Get(ctx context.Context, id uint) (*queue.Job, error)
}

type Enqueuer interface {
	Enqueue(ctx context.Context, req domain.JobRequest) (uint, error)
}

// Server exposes queued pulls over HTTP.
type Server struct {
	echo     *echo.Echo
	jobs     JobStore
	enqueuer Enqueuer
	addr     string
	logger   domain.Logger
}

func New(addr string, jobs JobStore, enqueuer Enqueuer, logger domain.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:     e,
		jobs:     jobs,
		enqueuer: enqueuer,
		addr:     addr,
		logger:   logger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.handleHealth)

	g := s.echo.Group("/pulls")
	g.GET("", s.handleListPulls)
	g.POST("", s.handleCreatePull)
	g.GET("/:id", s.handleGetPull)
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start() {
	go func() {
		s.logger.Infof("HTTP server listening on %s", s.addr)

		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorf("HTTP server error: %v", err)
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListPulls(c echo.Context) error {
	limit := 20
	if v := c.QueryParam("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid limit"})
		}
		limit = parsed
	}

	jobs, err := s.jobs.List(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, jobs)
}

func (s *Server) handleGetPull(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}

	job, err := s.jobs.Get(c.Request().Context(), uint(id))
	if errors.Is(err, queue.ErrJobNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, job)
}

type createPullRequest struct {
	SkipBackup bool `json:"skip_backup"`
	Force      bool `json:"force"`
}

func (s *Server) handleCreatePull(c echo.Context) error {
	var req createPullRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	// the listener is unauthenticated, so the production gate is never lifted here
	if req.Force {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "force is not accepted over HTTP; use the CLI"})
	}

	id, err := s.enqueuer.Enqueue(c.Request().Context(), domain.JobRequest{
		SkipBackup: req.SkipBackup,
		Trigger:    "api",
	})
	if err != nil {
		return s.enqueueError(c, err)
	}

	return c.JSON(http.StatusAccepted, map[string]uint{"id": id})
}

func (s *Server) enqueueError(c echo.Context, err error) error {
	var cfgErr *domain.ConfigError
	switch {
	case errors.As(err, &cfgErr):
		return c.JSON(http.StatusUnprocessableEntity, map[string]any{
			"error":   err.Error(),
			"missing": cfgErr.Missing,
		})
	case errors.Is(err, domain.ErrConfigInvalid):
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrProductionRefused):
		return c.JSON(http.StatusForbidden, map[string]string{"error": err.Error()})
	default:
		s.logger.Errorf("Failed to enqueue pull: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
