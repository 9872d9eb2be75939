package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/deepagent/internal/orchestrator"
	"github.com/fyrsmithlabs/deepagent/internal/secrets"
)

// Runner is the orchestrator surface the tools drive.
type Runner interface {
	Process(ctx context.Context, query string, initial map[string]any) <-chan orchestrator.Event
	StateSummary() (orchestrator.StateSummary, bool)
	Running() bool
}

// Config configures the MCP server.
type Config struct {
	Name    string
	Version string
	Logger  *zap.Logger
	// Metrics is optional; nil disables tool metrics.
	Metrics *Metrics
	// Scrubber redacts answers. Defaults to secrets.NoopScrubber.
	Scrubber secrets.Scrubber
}

// Server registers the research tools on an MCP server.
type Server struct {
	mcp      *mcp.Server
	runner   Runner
	logger   *zap.Logger
	metrics  *Metrics
	scrubber secrets.Scrubber
}

// NewServer creates the MCP server and registers its tools.
func NewServer(runner Runner, cfg Config) (*Server, error) {
	if runner == nil {
		return nil, errors.New("mcp: runner is required")
	}
	if cfg.Name == "" {
		cfg.Name = "deepagent"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Scrubber == nil {
		cfg.Scrubber = secrets.NoopScrubber{}
	}

	s := &Server{
		mcp:      mcp.NewServer(&mcp.Implementation{Name: cfg.Name, Version: cfg.Version}, nil),
		runner:   runner,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		scrubber: cfg.Scrubber,
	}
	s.registerTools()
	return s, nil
}

// Run serves on the stdio transport until ctx is done or the client hangs up.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

// Connect serves a single session over t.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcp.Connect(ctx, t, nil)
}
