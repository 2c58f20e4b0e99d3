// Package http serves the admin surface: health, readiness, metrics, manual
// run triggers and ranked event listings.
package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/eventrank/internal/domain"
	"github.com/couchcryptid/eventrank/internal/pipeline"
)

const (
	defaultEventLimit = 20
	maxEventLimit     = 100
)

// RunController starts runs and reports their status. *pipeline.Runner
// implements it.
type RunController interface {
	Trigger(trigger pipeline.Trigger, source string) (string, error)
	Status(id string) (pipeline.RunStatus, error)
	Recent() []pipeline.RunStatus
}

// EventRanker lists the best upcoming events for a profile.
type EventRanker interface {
	Top(ctx context.Context, p domain.AudienceProfile, from time.Time, limit int) ([]domain.ScoredRecord, error)
}

// Server is the admin HTTP server.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server
	runs       RunController
	ranker     EventRanker
	clock      clockwork.Clock
	logger     *slog.Logger
}

// NewServer wires the admin routes. ranker may be nil, which disables
// /events.
func NewServer(addr string, ready sharedobs.ReadinessChecker, runs RunController, ranker EventRanker, clock clockwork.Clock, logger *slog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo: e,
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      e,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		runs:   runs,
		ranker: ranker,
		clock:  clock,
		logger: logger,
	}
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		Skipper: func(c echo.Context) bool {
			switch c.Path() {
			case "/healthz", "/readyz", "/metrics":
				return true
			}
			return false
		},
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				s.logger.Warn("http request failed", append(attrs, "error", v.Error)...)
				return nil
			}
			s.logger.Info("http request", attrs...)
			return nil
		},
	}))

	e.GET("/healthz", echo.WrapHandler(sharedobs.LivenessHandler()))
	e.GET("/readyz", echo.WrapHandler(sharedobs.ReadinessHandler(ready)))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.POST("/runs", s.handleTrigger)
	e.GET("/runs", s.handleRuns)
	e.GET("/runs/:id", s.handleRun)
	if ranker != nil {
		e.GET("/events", s.handleEvents)
	}
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.echo.StartServer(s.httpServer)
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the router, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

type triggerResponse struct {
	RunID     string `json:"run_id"`
	StatusURL string `json:"status_url"`
}

func (s *Server) handleTrigger(c echo.Context) error {
	source := c.QueryParam("source")
	id, err := s.runs.Trigger(pipeline.TriggerManual, source)
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, pipeline.ErrUnknownSource):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case err != nil:
		return err
	}
	return c.JSON(http.StatusAccepted, triggerResponse{RunID: id, StatusURL: "/runs/" + id})
}

func (s *Server) handleRun(c echo.Context) error {
	st, err := s.runs.Status(c.Param("id"))
	if errors.Is(err, pipeline.ErrRunNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}

func (s *Server) handleRuns(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"runs": s.runs.Recent()})
}

type eventsResponse struct {
	Profile string                `json:"profile"`
	Events  []domain.ScoredRecord `json:"events"`
}

func (s *Server) handleEvents(c echo.Context) error {
	profile := domain.ProfileFamily
	if v := c.QueryParam("profile"); v != "" {
		p, err := domain.ParseProfile(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		profile = p
	}
	limit := defaultEventLimit
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxEventLimit {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be between 1 and 100")
		}
		limit = n
	}

	events, err := s.ranker.Top(c.Request().Context(), profile, s.clock.Now(), limit)
	if err != nil {
		return err
	}
	if events == nil {
		events = []domain.ScoredRecord{}
	}
	return c.JSON(http.StatusOK, eventsResponse{Profile: profile.String(), Events: events})
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if m, ok := he.Message.(string); ok && m != "" {
			message = m
		} else {
			message = http.StatusText(status)
		}
	} else {
		s.logger.Error("request failed", "path", c.Request().URL.Path, "error", err)
	}
	_ = c.JSON(status, map[string]string{"error": message})
}
