package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/deepagent/internal/monitor"
	"github.com/fyrsmithlabs/deepagent/internal/orchestrator"
)

type runOptions struct {
	watch   bool
	json    bool
	quiet   bool
	context []string
}

func newRunCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run <query>",
		Short: "Answer a query and print the result",
		Long: `Plan, execute and synthesize a single research run. The answer is
printed to stdout; progress and logs go to stderr.

Examples:
  # Plain run
  deepagent run "summarize the auth module"

  # Live monitor
  deepagent run --watch "summarize the auth module"

  # Seed the workspace and print JSON
  deepagent run --json --context repo=svc-auth "list token rotation gaps"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, strings.Join(args, " "), opts)
		},
	}
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "show a live progress monitor")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the result as JSON")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "do not print progress events")
	cmd.Flags().StringArrayVarP(&opts.context, "context", "c", nil, "initial context as key=value (repeatable)")
	return cmd
}

// runResult is the outcome of a run as printed by --json.
type runResult struct {
	RunID    string                       `json:"run_id"`
	Answer   string                       `json:"answer,omitempty"`
	Metadata *orchestrator.AnswerMetadata `json:"metadata,omitempty"`
	Error    string                       `json:"error,omitempty"`
}

func (r *runResult) add(ev orchestrator.Event) {
	if r.RunID == "" {
		r.RunID = ev.RunID
	}
	switch ev.Type {
	case orchestrator.EventAnswer:
		r.Answer = ev.Content
		r.Metadata = ev.Metadata
	case orchestrator.EventError:
		r.Error = ev.Message
	}
}

// parseContext turns key=value pairs into the initial context map.
func parseContext(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid context %q: want key=value", p)
		}
		out[k] = v
	}
	return out, nil
}

func runQuery(cmd *cobra.Command, query string, opts runOptions) error {
	initial, err := parseContext(opts.context)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	stderr := cmd.ErrOrStderr()
	a, err := newApp(ctx, configPath, appOptions{logOutput: zapcore.AddSync(stderr)})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		a.close(closeCtx)
	}()

	events := a.orch.Process(ctx, query, initial)

	var res runResult
	if opts.watch {
		res, err = watchRun(ctx, cancel, query, events, stderr)
		if err != nil {
			return err
		}
	} else {
		for ev := range events {
			res.add(ev)
			if !opts.quiet {
				fmt.Fprintln(stderr, monitor.FormatEvent(ev))
			}
		}
	}

	if err := printResult(cmd.OutOrStdout(), res, opts.json); err != nil {
		return err
	}
	if res.Error != "" {
		return errors.New(res.Error)
	}
	return nil
}

// watchRun shows the monitor while recording the run's outcome. Quitting
// the monitor cancels the run.
func watchRun(ctx context.Context, cancel context.CancelFunc, query string, events <-chan orchestrator.Event, out io.Writer) (runResult, error) {
	var res runResult
	tee := make(chan orchestrator.Event)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer close(tee)
		for ev := range events {
			res.add(ev)
			select {
			case tee <- ev:
			case <-ctx.Done():
			}
		}
	}()

	_, err := tea.NewProgram(monitor.NewRunModel(query, tee),
		tea.WithOutput(out),
		tea.WithInput(os.Stdin),
	).Run()
	cancel()
	<-done
	if err != nil {
		return res, fmt.Errorf("monitor: %w", err)
	}
	return res, nil
}

func printResult(w io.Writer, res runResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	if res.Answer != "" {
		_, err := fmt.Fprintln(w, res.Answer)
		return err
	}
	return nil
}
