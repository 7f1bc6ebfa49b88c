package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/scormseq/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
}

// TraceReport is the trace command's JSON payload.
type TraceReport struct {
	SessionID string       `json:"session_id"`
	Phase     string       `json:"phase"`
	Hash      string       `json:"snapshot_hash"`
	Events    []TraceEntry `json:"events"`
}

// TraceEntry is one navigation event in the report.
type TraceEntry struct {
	Seq        int    `json:"seq"`
	Request    string `json:"request"`
	Target     string `json:"target,omitempty"`
	Success    bool   `json:"success"`
	Delivered  string `json:"delivered,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Redirected string `json:"redirected,omitempty"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <session-id>",
		Short: "Show the navigation trace of a stored session",
		Long: `Show the recorded navigation trace and snapshot summary of a session.

Exit codes:
  0 - Trace printed
  1 - Session not found
  2 - Command error (database not found)

Examples:
  scormseq trace linear-flow-session --db sessions.db
  scormseq trace linear-flow-session --db sessions.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runTrace(opts *TraceOptions, sessionID string, cmd *cobra.Command) error {
	if _, err := os.Stat(opts.Database); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", opts.Database))
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	infos, err := st.ListSessions(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read sessions", err)
	}
	var info *store.SessionInfo
	for i := range infos {
		if infos[i].SessionID == sessionID {
			info = &infos[i]
			break
		}
	}
	if info == nil {
		return NewExitError(ExitFailure, fmt.Sprintf("session not found: %s", sessionID))
	}

	events, err := st.ReadTrace(ctx, sessionID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read trace", err)
	}

	report := TraceReport{
		SessionID: sessionID,
		Phase:     string(info.Phase),
		Hash:      info.SnapshotHash,
		Events:    make([]TraceEntry, len(events)),
	}
	for i, ev := range events {
		report.Events[i] = TraceEntry{
			Seq:        ev.Seq,
			Request:    string(ev.Request),
			Target:     ev.TargetID,
			Success:    ev.Success,
			Delivered:  ev.Delivered,
			Reason:     string(ev.Reason),
			Redirected: string(ev.Redirected),
		}
	}

	if opts.Format == "json" {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(report)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "session %s  phase=%s  hash=%s\n", report.SessionID, report.Phase, report.Hash)
	for _, ev := range report.Events {
		if ev.Success {
			fmt.Fprintf(w, "%3d  %-12s -> %s\n", ev.Seq, ev.Request, ev.Delivered)
		} else {
			fmt.Fprintf(w, "%3d  %-12s !! %s\n", ev.Seq, ev.Request, ev.Reason)
		}
	}
	return nil
}
