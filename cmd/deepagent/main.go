// Command deepagent plans, executes and synthesizes multi-step research
// runs. It runs a single query from the terminal, serves the HTTP API, or
// exposes the agent as an MCP stdio tool server.
//
// Usage:
//
//	# Answer one query, with a live progress monitor
//	deepagent run --watch "how is auth token rotation handled?"
//
//	# Serve the HTTP API
//	deepagent serve --config ./deepagent.yaml
//
//	# Register as an MCP server
//	deepagent mcp
//
// Configuration is read from ~/.config/deepagent/config.yaml and from
// section-prefixed environment variables such as LLM_API_KEY.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// configPath is the --config flag shared by every command.
var configPath string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "deepagent",
		Short: "Deep research agent",
		Long: `deepagent breaks a query into tasks, works through them with optional
sub-agents and a virtual file store, and synthesizes a final answer.`,
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/deepagent/config.yaml)")

	root.AddCommand(
		newRunCmd(),
		newServeCmd(),
		newMCPCmd(),
		newWatchCmd(),
		newTailCmd(),
		newVersionCmd(),
	)
	return root
}
