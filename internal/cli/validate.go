package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/scormseq/internal/compiler"
	"github.com/roach88/scormseq/internal/tree"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
}

// ValidationReport is the validate command's JSON payload.
type ValidationReport struct {
	Path       string   `json:"path"`
	Valid      bool     `json:"valid"`
	Activities int      `json:"activities,omitempty"`
	Issues     []string `json:"issues,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <config.yaml>",
		Short: "Validate a sequencing configuration",
		Long: `Validate a sequencing configuration file.

Validation runs in two layers: schema validation rejects structural and
vocabulary errors, then tree construction checks the semantic constraints
(unique identifiers, resolvable objective references, action vocabularies).

Exit codes:
  0 - Configuration is valid
  1 - Configuration is invalid
  2 - Command error (file not found)

Examples:
  scormseq validate course.yaml
  scormseq validate course.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("config file not found: %s", path))
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	report := ValidationReport{Path: path}

	cfg, err := compiler.LoadFile(path)
	if err != nil {
		report.Issues = collectIssues(err)
		return reportInvalid(out, report)
	}

	t, err := tree.Build(cfg)
	if err != nil {
		report.Issues = collectIssues(err)
		return reportInvalid(out, report)
	}

	report.Valid = true
	report.Activities = t.Len()

	if opts.Format == "json" {
		if err := out.Success(report); err != nil {
			return err
		}
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: valid (%d activities)\n", path, t.Len())
	return nil
}

// collectIssues flattens an error into report lines, expanding schema errors
// into one line per violation.
func collectIssues(err error) []string {
	if se, ok := compiler.IsSchemaError(err); ok {
		issues := make([]string, len(se.Issues))
		for i, issue := range se.Issues {
			issues[i] = issue.String()
		}
		return issues
	}
	return []string{err.Error()}
}

func reportInvalid(out *OutputFormatter, report ValidationReport) error {
	if out.Format == "json" {
		if err := out.Success(report); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out.Writer, "%s: invalid\n", report.Path)
		for _, issue := range report.Issues {
			fmt.Fprintf(out.Writer, "  %s\n", issue)
		}
	}
	return NewExitError(ExitFailure, "configuration is invalid")
}
