package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tally/internal/ingest"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <manifest>",
		Short: "Validate a batch without reconciling it",
		Long: `Check a manifest and every file it references: manifest schema, required
CSV columns, timestamps, and counters. Reports every problem found, not
just the first. Nothing is written.

Example:
  tally validate ./batch.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateBatch(opts, args[0], cmd)
		},
	}

	return cmd
}

// validateSummary is the success payload of the validate command.
type validateSummary struct {
	Sources  int `json:"sources"`
	Sends    int `json:"sends"`
	Opens    int `json:"opens"`
	Contacts int `json:"contacts"`
}

func (s validateSummary) String() string {
	return fmt.Sprintf("batch valid: %d source(s), %d sends, %d opens, %d contacts",
		s.Sources, s.Sends, s.Opens, s.Contacts)
}

func validateBatch(opts *ValidateOptions, manifestPath string, cmd *cobra.Command) error {
	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	manifest, err := ingest.LoadManifest(manifestPath)
	if err != nil {
		out.Error(ErrCodeManifest, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load manifest", err)
	}

	batch, err := ingest.LoadBatch(manifest)
	if err != nil {
		var verr *ingest.ValidationError
		if errors.As(err, &verr) {
			out.Error(ErrCodeValidation, fmt.Sprintf("%d validation error(s)", len(verr.Rows)), verr.Rows)
			return WrapExitError(ExitFailure, "batch failed validation", err)
		}
		out.Error(ErrCodeManifest, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load batch", err)
	}

	return out.Success(validateSummary{
		Sources:  len(manifest.Sources),
		Sends:    len(batch.Sends),
		Opens:    len(batch.Opens),
		Contacts: len(batch.Contacts),
	})
}
