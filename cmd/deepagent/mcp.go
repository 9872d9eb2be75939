package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	agentmcp "github.com/fyrsmithlabs/deepagent/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run as an MCP server on stdio",
		Long: `Serve the deep_research and research_state tools over the MCP stdio
transport. Logs are written to stderr.

Example client configuration:
  {"mcpServers": {"deepagent": {"command": "deepagent", "args": ["mcp"]}}}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveMCP(cmd.Context())
		},
	}
}

func serveMCP(ctx context.Context) error {
	a, err := newApp(ctx, configPath, appOptions{logOutput: zapcore.Lock(os.Stderr)})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.close(closeCtx)
	}()

	zl := a.log.Underlying()
	srv, err := agentmcp.NewServer(a.orch, agentmcp.Config{
		Name:     "deepagent",
		Version:  version,
		Logger:   zl,
		Metrics:  agentmcp.NewMetrics(a.telemetry.Meter(instrumentationName), zl),
		Scrubber: a.scrubber,
	})
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}
