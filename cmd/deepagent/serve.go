package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/deepagent/internal/config"
	apihttp "github.com/fyrsmithlabs/deepagent/internal/http"
	"github.com/fyrsmithlabs/deepagent/internal/orchestrator"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve the run API, health and Prometheus metrics over HTTP.

Changes to the config file are picked up for subsequent runs.

Examples:
  deepagent serve
  deepagent serve --addr 0.0.0.0:9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from server.host and server.port)")
	return cmd
}

func serve(ctx context.Context, addr string) error {
	a, err := newApp(ctx, configPath, appOptions{})
	if err != nil {
		return err
	}
	zl := a.log.Underlying()

	srv, err := apihttp.NewServer(a.orch,
		apihttp.WithLogger(zl),
		apihttp.WithGatherer(a.registry),
		apihttp.WithMetrics(apihttp.NewMetrics(a.telemetry.Meter(instrumentationName), zl)),
		apihttp.WithTelemetryHealth(a.telemetry.Health),
		apihttp.WithVersion(version),
	)
	if err != nil {
		a.close(context.Background())
		return err
	}

	if path, ok := watchablePath(configPath); ok {
		w := config.NewWatcher(path, a.cfg, config.WithWatcherLogger(zl))
		w.OnChange(func(cfg *config.Config) { applyConfig(ctx, a.orch, cfg, zl) })
		go func() {
			if err := w.Run(ctx); err != nil {
				zl.Warn("config watcher stopped", zap.Error(err))
			}
		}()
	}

	if addr == "" {
		addr = a.cfg.Server.Addr()
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(addr) }()

	select {
	case err = <-errCh:
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Duration())
		err = srv.Shutdown(shutdownCtx)
		cancel()
		if startErr := <-errCh; err == nil {
			err = startErr
		}
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	a.close(closeCtx)
	return err
}

// watchablePath resolves the config file to watch. Nothing is watched when
// the file does not exist.
func watchablePath(path string) (string, bool) {
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return "", false
		}
		path = p
	}
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// applyConfig reconfigures the orchestrator after a reload. A reload that
// lands during a run is not applied; the next file change retries.
func applyConfig(ctx context.Context, orch *orchestrator.Orchestrator, cfg *config.Config, zl *zap.Logger) {
	if err := orch.Reconfigure(ctx, cfg.Orchestrator()); err != nil {
		zl.Warn("config change not applied", zap.Error(err))
		return
	}
	zl.Info("orchestrator reconfigured", zap.Any("agent", cfg.Orchestrator()))
}
