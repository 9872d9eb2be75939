package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/deepagent/internal/config"
	"github.com/fyrsmithlabs/deepagent/internal/events"
	"github.com/fyrsmithlabs/deepagent/internal/monitor"
)

func newTailCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "tail [run-id]",
		Short: "Follow run events published on NATS",
		Long: `Subscribe to the events deepagent publishes on NATS and print them.
With a run id the command exits when that run ends; without one it follows
every run until interrupted.

Examples:
  deepagent tail
  deepagent tail 3f2c9a1e-... --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			var runID string
			if len(args) == 1 {
				runID = args[0]
			}

			nc, err := connectNATS(cfg.NATS)
			if err != nil {
				return err
			}
			defer nc.Close()

			ch, err := events.Subscribe(cmd.Context(), nc, cfg.NATS.SubjectPrefix, runID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			enc := json.NewEncoder(out)
			for r := range ch {
				if asJSON {
					if err := enc.Encode(r.Message); err != nil {
						return err
					}
					continue
				}
				fmt.Fprintf(out, "%s %s\n", r.Message.RunID, monitor.FormatEvent(r.Message.Event))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw event messages")
	return cmd
}
