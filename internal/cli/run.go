package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/scormseq/internal/harness"
	"github.com/roach88/scormseq/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
}

// RunReport is the run command's JSON payload.
type RunReport struct {
	Scenario string               `json:"scenario"`
	Passed   bool                 `json:"passed"`
	Phase    string               `json:"phase"`
	Trace    []harness.TraceEvent `json:"trace"`
	Errors   []string             `json:"errors,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a scenario against a fresh session",
		Long: `Run a scenario file against a fresh sequencing session.

The scenario's configuration is compiled, a session is initialized with
deterministic identifiers, and every step is executed in order. With --db,
the final snapshot and the navigation trace are persisted.

Exit codes:
  0 - Scenario passed
  1 - Scenario expectations failed
  2 - Command error (invalid scenario, engine error)

Examples:
  scormseq run scenario.yaml
  scormseq run scenario.yaml --db sessions.db
  scormseq run scenario.yaml --format json --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "persist snapshot and trace to this SQLite database")

	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	logLevel := slog.LevelWarn
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	result, err := harness.RunWithLogger(scenario, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "scenario execution failed", err)
	}

	if opts.Database != "" {
		if err := persistResult(cmd.Context(), opts.Database, result); err != nil {
			return WrapExitError(ExitCommandError, "failed to persist session", err)
		}
	}

	report := RunReport{
		Scenario: result.ScenarioName,
		Passed:   result.Passed(),
		Phase:    string(result.Final.Phase),
		Trace:    result.Trace,
		Errors:   result.Errors,
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if opts.Format == "json" {
		if err := out.Success(report); err != nil {
			return err
		}
	} else {
		printRunReport(cmd, report)
	}

	if !result.Passed() {
		return NewExitError(ExitFailure, "scenario failed")
	}
	return nil
}

func printRunReport(cmd *cobra.Command, report RunReport) {
	w := cmd.OutOrStdout()
	for _, ev := range report.Trace {
		switch ev.Kind {
		case "navigation":
			if ev.Success {
				fmt.Fprintf(w, "%3d  %-12s -> %s\n", ev.Seq, ev.Request, ev.Delivered)
			} else {
				fmt.Fprintf(w, "%3d  %-12s !! %s\n", ev.Seq, ev.Request, ev.Reason)
			}
		case "progress":
			fmt.Fprintf(w, "%3d  %-12s %s\n", ev.Seq, "progress", ev.Activity)
		}
	}
	if report.Passed {
		fmt.Fprintf(w, "%s: PASS (phase %s)\n", report.Scenario, report.Phase)
		return
	}
	fmt.Fprintf(w, "%s: FAIL\n", report.Scenario)
	for _, msg := range report.Errors {
		fmt.Fprintf(w, "  %s\n", msg)
	}
}

// persistResult saves the final snapshot and the full trace.
func persistResult(ctx context.Context, dbPath string, result *harness.Result) error {
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.SaveSnapshot(ctx, result.Final); err != nil {
		return err
	}

	for _, ev := range result.Trace {
		if ev.Kind != "navigation" {
			continue
		}
		if err := st.AppendEvent(ctx, store.Event{
			SessionID:  result.Final.SessionID,
			Seq:        ev.Seq,
			Request:    ev.Request,
			TargetID:   ev.Target,
			Success:    ev.Success,
			Delivered:  ev.Delivered,
			Reason:     ev.Reason,
			Redirected: ev.Redirected,
		}); err != nil {
			return err
		}
	}

	return nil
}
