package main

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/tmc/langchaingo/embeddings"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/deepagent/internal/config"
	"github.com/fyrsmithlabs/deepagent/internal/events"
	"github.com/fyrsmithlabs/deepagent/internal/findings"
	"github.com/fyrsmithlabs/deepagent/internal/llm"
	"github.com/fyrsmithlabs/deepagent/internal/logging"
	"github.com/fyrsmithlabs/deepagent/internal/orchestrator"
	"github.com/fyrsmithlabs/deepagent/internal/secrets"
	"github.com/fyrsmithlabs/deepagent/internal/subagent"
	"github.com/fyrsmithlabs/deepagent/internal/telemetry"
	"github.com/fyrsmithlabs/deepagent/internal/workflows"
)

const instrumentationName = "github.com/fyrsmithlabs/deepagent"

// newGenerator builds the text generator. Tests replace it.
var newGenerator = llm.New

// app holds the wired components shared by the commands.
type app struct {
	cfg       *config.Config
	log       *logging.Logger
	telemetry *telemetry.Provider
	registry  *prometheus.Registry
	gen       llm.Generator
	scrubber  secrets.Scrubber
	orch      *orchestrator.Orchestrator

	nc       *nats.Conn
	temporal client.Client
	worker   worker.Worker
}

type appOptions struct {
	// logOutput replaces stdout as the log destination.
	logOutput zapcore.WriteSyncer
}

// newApp loads configuration and wires every component it enables. On
// error everything already started is torn down.
func newApp(ctx context.Context, path string, opts appOptions) (_ *app, err error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	a := &app{cfg: cfg, registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			a.close(context.Background())
		}
	}()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if a.telemetry, err = telemetry.New(ctx, &cfg.Telemetry); err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	if opts.logOutput != nil {
		a.log, err = logging.NewLoggerTo(&cfg.Logging, a.telemetry.LoggerProvider(), opts.logOutput)
	} else {
		a.log, err = logging.NewLogger(&cfg.Logging, a.telemetry.LoggerProvider())
	}
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	zl := a.log.Underlying()
	if h := a.telemetry.Health(); h.Degraded {
		a.log.Warn(ctx, "telemetry degraded", zap.Strings("reasons", h.Reasons))
	}

	if a.scrubber, err = secrets.New(&cfg.Secrets, secrets.WithLogger(zl)); err != nil {
		return nil, fmt.Errorf("init secret scrubber: %w", err)
	}
	if a.gen, err = newGenerator(cfg.Generator()); err != nil {
		return nil, fmt.Errorf("init generator: %w", err)
	}

	orchOpts := []orchestrator.Option{
		orchestrator.WithConfig(cfg.Orchestrator()),
		orchestrator.WithLogger(zl),
		orchestrator.WithScrubber(a.scrubber),
		orchestrator.WithMetrics(orchestrator.NewMetrics(a.registry)),
	}

	if m, err := subagent.NewMetrics(a.telemetry.Meter(instrumentationName)); err != nil {
		a.log.Warn(ctx, "sub-agent metrics disabled", zap.Error(err))
	} else {
		orchOpts = append(orchOpts, orchestrator.WithSubAgentMetrics(m))
	}

	if cfg.Findings.Enabled {
		idx, err := newFindingsIndex(cfg, zl)
		if err != nil {
			return nil, fmt.Errorf("init findings index: %w", err)
		}
		orchOpts = append(orchOpts, orchestrator.WithFindingsIndex(idx))
	}

	strategy, err := a.strategy(zl)
	if err != nil {
		return nil, err
	}
	orchOpts = append(orchOpts, orchestrator.WithStrategy(strategy))

	if cfg.NATS.Enabled {
		sink, err := a.eventSink(zl)
		if err != nil {
			return nil, err
		}
		orchOpts = append(orchOpts, orchestrator.WithEventSink(sink))
	}

	if a.orch, err = orchestrator.New(a.gen, orchOpts...); err != nil {
		return nil, fmt.Errorf("init orchestrator: %w", err)
	}
	a.log.Debug(ctx, "deepagent initialized",
		zap.String("provider", cfg.LLM.Provider),
		zap.Bool("temporal", cfg.Temporal.Enabled),
		zap.Bool("nats", cfg.NATS.Enabled),
		zap.Bool("findings", cfg.Findings.Enabled),
	)
	return a, nil
}

func newFindingsIndex(cfg *config.Config, zl *zap.Logger) (*findings.Index, error) {
	var emb embeddings.Embedder
	switch cfg.Findings.Embedder {
	case config.EmbedderOpenAI:
		e, err := findings.NewOpenAIEmbedder(cfg.Embedder())
		if err != nil {
			return nil, err
		}
		emb = e
	default:
		emb = findings.NewHashEmbedder()
	}
	return findings.NewIndex(emb, findings.WithLogger(zl))
}

// strategy returns the Temporal strategy when enabled, otherwise one that
// prompts the generator in-process. An enabled worker is started here.
func (a *app) strategy(zl *zap.Logger) (subagent.Strategy, error) {
	tc := a.cfg.Temporal
	if !tc.Enabled {
		return subagent.GeneratorStrategy{Generator: a.gen}, nil
	}

	c, err := workflows.Dial(workflows.ClientConfig{HostPort: tc.HostPort, Namespace: tc.Namespace}, zl)
	if err != nil {
		return nil, err
	}
	a.temporal = c

	metrics := workflows.NewMetrics(a.telemetry.Meter(instrumentationName))
	if tc.Worker {
		a.worker = workflows.NewWorker(c, tc.TaskQueue, &workflows.Activities{
			Generator: a.gen,
			Scrubber:  a.scrubber,
			Metrics:   metrics,
		})
		if err := a.worker.Start(); err != nil {
			a.worker = nil
			return nil, fmt.Errorf("start temporal worker: %w", err)
		}
	}
	return workflows.NewTemporalStrategy(c,
		workflows.WithTaskQueue(tc.TaskQueue),
		workflows.WithMetrics(metrics),
		workflows.WithLogger(zl),
	)
}

func (a *app) eventSink(zl *zap.Logger) (*events.NATSSink, error) {
	nc, err := connectNATS(a.cfg.NATS)
	if err != nil {
		return nil, err
	}
	a.nc = nc
	return events.NewNATSSink(nc,
		events.WithPrefix(a.cfg.NATS.SubjectPrefix),
		events.WithFlushOnTerminal(),
		events.WithLogger(zl),
	)
}

func connectNATS(cfg config.NATSConfig) (*nats.Conn, error) {
	opts := []nats.Option{nats.Name("deepagent")}
	if cfg.Token.IsSet() {
		opts = append(opts, nats.Token(cfg.Token.Value()))
	}
	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats at %s: %w", cfg.URL, err)
	}
	return nc, nil
}

// close stops everything newApp started, in reverse order.
func (a *app) close(ctx context.Context) {
	if a.worker != nil {
		a.worker.Stop()
	}
	if a.temporal != nil {
		a.temporal.Close()
	}
	if a.nc != nil {
		if err := a.nc.FlushTimeout(2 * time.Second); err != nil && a.log != nil {
			a.log.Warn(ctx, "nats flush failed", zap.Error(err))
		}
		a.nc.Close()
	}
	if a.telemetry != nil {
		if err := a.telemetry.Shutdown(ctx); err != nil && a.log != nil {
			a.log.Warn(ctx, "telemetry shutdown failed", zap.Error(err))
		}
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
}
