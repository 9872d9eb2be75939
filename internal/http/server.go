// Package http serves the deepagent HTTP API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/deepagent/internal/logging"
	"github.com/fyrsmithlabs/deepagent/internal/orchestrator"
	"github.com/fyrsmithlabs/deepagent/internal/telemetry"
)

// Runner is the orchestrator surface the API drives.
type Runner interface {
	Process(ctx context.Context, query string, initial map[string]any) <-chan orchestrator.Event
	StateSummary() (orchestrator.StateSummary, bool)
	Phase() orchestrator.Phase
	Running() bool
}

// Server exposes a Runner over HTTP.
type Server struct {
	echo     *echo.Echo
	runner   Runner
	logger   *zap.Logger
	gatherer prometheus.Gatherer
	metrics  *Metrics
	health   func() telemetry.Health
	version  string
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithGatherer sets the registry served on /metrics. The default is
// prometheus.DefaultGatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithMetrics records per-request OTel metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithTelemetryHealth includes exporter health in /health.
func WithTelemetryHealth(fn func() telemetry.Health) Option {
	return func(s *Server) { s.health = fn }
}

// WithVersion is reported by /health.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// NewServer builds the echo instance and registers routes.
func NewServer(runner Runner, opts ...Option) (*Server, error) {
	if runner == nil {
		return nil, errors.New("http: runner is required")
	}
	s := &Server{
		runner:   runner,
		logger:   zap.NewNop(),
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("http")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.requestContext)
	e.Use(s.metrics.Middleware())
	s.echo = e

	e.GET("/health", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	v1 := e.Group("/api/v1")
	v1.POST("/runs", s.handleRun)
	v1.GET("/state", s.handleState)
	return s, nil
}

// requestContext tags the request context with its request id and logs the
// request once it completes.
func (s *Server) requestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		id := c.Response().Header().Get(echo.HeaderXRequestID)
		if logging.ValidID(id) {
			c.SetRequest(c.Request().WithContext(logging.WithRequestID(c.Request().Context(), id)))
		}

		err := next(c)
		if err != nil {
			c.Error(err)
		}
		s.logger.Info("http request",
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(start)),
			zap.String(logging.FieldRequestID, id),
		)
		return nil
	}
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves on addr until Shutdown. It returns nil after a clean
// shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Info("http server listening", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{
		Status:  "ok",
		Version: s.version,
		Phase:   s.runner.Phase(),
		Running: s.runner.Running(),
	}
	if s.health != nil {
		h := s.health()
		resp.Telemetry = &h
		if h.Degraded {
			resp.Status = "degraded"
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleState(c echo.Context) error {
	sum, ok := s.runner.StateSummary()
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no run has started")
	}
	return c.JSON(http.StatusOK, sum)
}

func (s *Server) handleRun(c echo.Context) error {
	var req RunRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}
	if s.runner.Running() {
		return echo.NewHTTPError(http.StatusConflict, orchestrator.ErrRunInProgress.Error())
	}

	events := s.runner.Process(c.Request().Context(), req.Query, req.Context)
	if wantsStream(c) {
		return s.stream(c, events)
	}

	var resp RunResponse
	for ev := range events {
		if ev.Type == orchestrator.EventError && errors.Is(ev.Err, orchestrator.ErrRunInProgress) {
			return echo.NewHTTPError(http.StatusConflict, orchestrator.ErrRunInProgress.Error())
		}
		resp.add(ev)
	}
	status := http.StatusOK
	if resp.Error != "" {
		status = http.StatusInternalServerError
		s.logger.Warn("run failed", zap.String("run_id", resp.RunID), zap.String("error", resp.Error))
	}
	return c.JSON(status, resp)
}

func wantsStream(c echo.Context) bool {
	return c.QueryParam("stream") == "true" ||
		strings.Contains(c.Request().Header.Get(echo.HeaderAccept), "text/event-stream")
}

// stream writes each event as a server-sent event named after its type.
func (s *Server) stream(c echo.Context, events <-chan orchestrator.Event) error {
	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.WriteHeader(http.StatusOK)

	for ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			s.logger.Warn("dropping unencodable event", zap.Error(err))
			continue
		}
		if _, err := fmt.Fprintf(w, "event: %s\nid: %d\ndata: %s\n\n", ev.Type, ev.Seq, data); err != nil {
			// Client went away; drain so the run can finish cleanup.
			for range events {
			}
			return nil
		}
		w.Flush()
	}
	return nil
}
