package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/scormseq/internal/store"
)

// SessionsOptions holds flags for the sessions command.
type SessionsOptions struct {
	*RootOptions
	Database string
}

// SessionEntry is one session in the listing.
type SessionEntry struct {
	SessionID   string `json:"session_id"`
	Phase       string `json:"phase"`
	CurrentID   string `json:"current_id,omitempty"`
	SuspendedID string `json:"suspended_id,omitempty"`
	UpdatedAt   string `json:"updated_at"`
}

// NewSessionsCommand creates the sessions command.
func NewSessionsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SessionsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List stored sessions",
		Long: `List every session stored in the database, newest first.

Examples:
  scormseq sessions --db sessions.db
  scormseq sessions --db sessions.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessions(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runSessions(opts *SessionsOptions, cmd *cobra.Command) error {
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
		return WrapExitError(ExitCommandError, "failed to list sessions", err)
	}

	entries := make([]SessionEntry, len(infos))
	for i, info := range infos {
		entries[i] = SessionEntry{
			SessionID:   info.SessionID,
			Phase:       string(info.Phase),
			CurrentID:   info.CurrentID,
			SuspendedID: info.SuspendedID,
			UpdatedAt:   info.UpdatedAt,
		}
	}

	if opts.Format == "json" {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(entries)
	}

	w := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(w, "No sessions stored.")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%-30s %-11s current=%s suspended=%s updated=%s\n",
			e.SessionID, e.Phase, orDash(e.CurrentID), orDash(e.SuspendedID), e.UpdatedAt)
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
