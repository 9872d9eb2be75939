package http

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/deepagent/internal/http"

// Metrics records request counts, latency and concurrency. A nil *Metrics
// records nothing.
type Metrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
	active   metric.Int64UpDownCounter
}

// NewMetrics creates the instruments on meter, or on the global meter when
// meter is nil. Instruments that fail to register are skipped.
func NewMetrics(meter metric.Meter, logger *zap.Logger) *Metrics {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Metrics{}
	var err error

	m.requests, err = meter.Int64Counter("deepagent.http.requests",
		metric.WithDescription("HTTP requests by method, route and status."),
		metric.WithUnit("{request}"))
	if err != nil {
		logger.Warn("http requests counter unavailable", zap.Error(err))
	}

	m.duration, err = meter.Float64Histogram("deepagent.http.request.duration",
		metric.WithDescription("HTTP request latency. Run requests last as long as the run."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.025, 0.1, 0.5, 1, 5, 15, 60, 300))
	if err != nil {
		logger.Warn("http duration histogram unavailable", zap.Error(err))
	}

	m.active, err = meter.Int64UpDownCounter("deepagent.http.active_requests",
		metric.WithDescription("Requests currently being served."),
		metric.WithUnit("{request}"))
	if err != nil {
		logger.Warn("http active gauge unavailable", zap.Error(err))
	}
	return m
}

// Middleware records one sample per request. Routes are labelled by their
// registered pattern; unmatched paths share the "unmatched" label.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if m == nil {
			return next
		}
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			start := time.Now()
			if m.active != nil {
				m.active.Add(ctx, 1)
			}

			err := next(c)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			attrs := metric.WithAttributes(
				attribute.String("http.method", c.Request().Method),
				attribute.String("http.route", route),
				attribute.Int("http.status_code", status),
			)
			if m.requests != nil {
				m.requests.Add(ctx, 1, attrs)
			}
			if m.duration != nil {
				m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
			}
			if m.active != nil {
				m.active.Add(ctx, -1)
			}
			return err
		}
	}
}
