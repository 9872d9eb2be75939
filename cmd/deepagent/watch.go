package main

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/deepagent/internal/config"
	"github.com/fyrsmithlabs/deepagent/internal/monitor"
)

func newWatchCmd() *cobra.Command {
	var (
		server   string
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Monitor the runs of a deepagent server",
		Long: `Poll a running "deepagent serve" instance and show the progress of its
current run.

Examples:
  deepagent watch
  deepagent watch --server http://10.0.0.5:8080 --interval 500ms`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if server == "" {
				cfg, err := config.Load(configPath)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				server = "http://" + cfg.Server.Addr()
			}
			model := monitor.NewWatchModel(monitor.NewStateClient(server), monitor.WithInterval(interval))
			_, err := tea.NewProgram(model,
				tea.WithContext(cmd.Context()),
				tea.WithAltScreen(),
			).Run()
			return err
		},
	}
	cmd.Flags().StringVar(&server, "server", "", "server URL (default from server.host and server.port)")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "refresh interval")
	return cmd
}
