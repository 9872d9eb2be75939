package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Provider owns the SDK providers created by New.
type Provider struct {
	cfg    *Config
	logger *zap.Logger

	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider

	mu       sync.Mutex
	degraded []string
	closed   bool
}

// Option configures New.
type Option func(*options)

type options struct {
	logger   *zap.Logger
	exporter sdktrace.SpanExporter
	reader   sdkmetric.Reader
	global   bool
}

// WithLogger reports degraded exporters to l.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithSpanExporter replaces the OTLP span exporter.
func WithSpanExporter(exp sdktrace.SpanExporter) Option {
	return func(o *options) { o.exporter = exp }
}

// WithMetricReader replaces the periodic OTLP metric reader.
func WithMetricReader(r sdkmetric.Reader) Option {
	return func(o *options) { o.reader = r }
}

// WithoutGlobal keeps the providers off the otel globals.
func WithoutGlobal() Option {
	return func(o *options) { o.global = false }
}

// Health is the provider state reported by the HTTP health check.
type Health struct {
	Enabled  bool     `json:"enabled"`
	Degraded bool     `json:"degraded"`
	Reasons  []string `json:"reasons,omitempty"`
}

// New validates cfg and, when enabled, builds the tracer and meter
// providers. Exporter failures degrade the Provider rather than fail.
func New(ctx context.Context, cfg *Config, opts ...Option) (*Provider, error) {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}
	o := options{logger: zap.NewNop(), global: true}
	for _, opt := range opts {
		opt(&o)
	}

	p := &Provider{cfg: cfg, logger: o.logger.Named("telemetry")}
	if !cfg.Enabled {
		return p, nil
	}

	res := newResource(cfg)

	tp, err := buildTracerProvider(ctx, cfg, res, o.exporter)
	if err != nil {
		p.degrade(err)
	} else {
		p.tracerProvider = tp
	}

	if cfg.Metrics.Enabled {
		mp, err := buildMeterProvider(ctx, cfg, res, o.reader)
		if err != nil {
			p.degrade(err)
		} else {
			p.meterProvider = mp
		}
	}

	if o.global {
		if p.tracerProvider != nil {
			otel.SetTracerProvider(p.tracerProvider)
		}
		if p.meterProvider != nil {
			otel.SetMeterProvider(p.meterProvider)
		}
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}
	return p, nil
}

func (p *Provider) degrade(err error) {
	p.mu.Lock()
	p.degraded = append(p.degraded, err.Error())
	p.mu.Unlock()
	p.logger.Warn("telemetry degraded", zap.Error(err))
}

// Tracer returns a tracer from the SDK provider, or from the global one
// when telemetry is off.
func (p *Provider) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	if p == nil || p.tracerProvider == nil {
		return otel.Tracer(name, opts...)
	}
	return p.tracerProvider.Tracer(name, opts...)
}

// Meter returns a meter from the SDK provider, or from the global one when
// telemetry or metrics are off.
func (p *Provider) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if p == nil || p.meterProvider == nil {
		return otel.Meter(name, opts...)
	}
	return p.meterProvider.Meter(name, opts...)
}

// LoggerProvider is handed to the OTEL log bridge. It is the global
// delegating provider, which stays a no-op until one is installed.
func (p *Provider) LoggerProvider() log.LoggerProvider {
	return global.GetLoggerProvider()
}

// Enabled reports whether export is configured and the provider is open.
func (p *Provider) Enabled() bool {
	if p == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.Enabled && !p.closed
}

// Health reports the current state.
func (p *Provider) Health() Health {
	if p == nil {
		return Health{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return Health{
		Enabled:  p.cfg.Enabled && !p.closed,
		Degraded: len(p.degraded) > 0,
		Reasons:  append([]string(nil), p.degraded...),
	}
}

// ForceFlush exports everything buffered.
func (p *Provider) ForceFlush(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.tracerProvider != nil {
		if err := p.tracerProvider.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flushing traces: %w", err))
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flushing metrics: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Shutdown flushes and stops the providers, bounded by the configured
// timeout when ctx has no deadline. Later calls are no-ops.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Shutdown)
		defer cancel()
	}

	var errs []error
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stopping tracer provider: %w", err))
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stopping meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}
