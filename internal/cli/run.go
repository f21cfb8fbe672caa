package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tally/internal/export"
	"github.com/roach88/tally/internal/ingest"
	"github.com/roach88/tally/internal/pipeline"
	"github.com/roach88/tally/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Out      string
	Database string

	// Generator allows overriding the batch token generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	Generator pipeline.BatchTokenGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <manifest>",
		Short: "Reconcile one batch and write its artifacts",
		Long: `Reconcile the batch described by a manifest: match send events to open
events, resolve matches against the contact directory, assign org
identities, and aggregate engagement metrics.

Artifacts (reconciled.csv, failures.csv, run_summary.json) are written to
the output directory. With --db the full run is also persisted for later
reporting.

Example:
  tally run ./batch.yaml
  tally run ./batch.yaml --out ./reports --db ./tally.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Out, "out", "", "output directory (default: manifest output field, else ./out)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database for run history (optional)")

	return cmd
}

// runSummary is the success payload of the run command.
type runSummary struct {
	BatchToken string         `json:"batch_token"`
	OutputDir  string         `json:"output_dir"`
	Sends      int            `json:"sends"`
	Enriched   int            `json:"enriched"`
	Failures   int            `json:"failures"`
	ByReason   map[string]int `json:"failures_by_reason,omitempty"`
	Orgs       int            `json:"orgs"`
	OpenRate   float64        `json:"open_rate"`
	ClickRate  float64        `json:"click_rate"`
	Persisted  bool           `json:"persisted"`
}

func (s runSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "batch %s\n", s.BatchToken)
	fmt.Fprintf(&b, "  sends:     %d\n", s.Sends)
	fmt.Fprintf(&b, "  enriched:  %d\n", s.Enriched)
	fmt.Fprintf(&b, "  failures:  %d", s.Failures)
	reasons := make([]string, 0, len(s.ByReason))
	for reason := range s.ByReason {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		fmt.Fprintf(&b, "\n    %s: %d", reason, s.ByReason[reason])
	}
	fmt.Fprintf(&b, "\n  orgs:      %d\n", s.Orgs)
	fmt.Fprintf(&b, "  open rate: %.1f%%  click rate: %.1f%%\n", s.OpenRate, s.ClickRate)
	fmt.Fprintf(&b, "  artifacts: %s", s.OutputDir)
	return b.String()
}

func runBatch(opts *RunOptions, manifestPath string, cmd *cobra.Command) error {
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
			out.Error(ErrCodeValidation, "batch failed validation", verr.Rows)
			return WrapExitError(ExitFailure, "batch failed validation", err)
		}
		out.Error(ErrCodeManifest, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load batch", err)
	}

	res, err := pipeline.Run(pipeline.Input{
		Sends:    batch.Sends,
		Opens:    batch.Opens,
		Contacts: batch.Contacts,
	}, opts.Generator)
	if err != nil {
		msg := "reconciliation failed"
		if pipeline.IsAccountingBreach(err) {
			msg = "reconciliation aborted, record accounting does not balance"
		}
		out.Error(ErrCodePipeline, err.Error(), nil)
		return WrapExitError(ExitFailure, msg, err)
	}

	outDir := opts.Out
	if outDir == "" {
		outDir = manifest.Output
	}
	if outDir == "" {
		outDir = "out"
	}
	if err := export.WriteAll(outDir, res, len(batch.Sends)); err != nil {
		out.Error(ErrCodeExport, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to write artifacts", err)
	}

	persisted := false
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			out.Error(ErrCodeDatabase, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()

		if err := st.SaveRun(context.Background(), res, len(batch.Sends)); err != nil {
			out.Error(ErrCodeDatabase, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to persist run", err)
		}
		persisted = true
	}

	byReason := make(map[string]int)
	for reason, n := range pipeline.FailureCounts(res.Failures) {
		byReason[string(reason)] = n
	}

	return out.Success(runSummary{
		BatchToken: res.BatchToken,
		OutputDir:  outDir,
		Sends:      len(batch.Sends),
		Enriched:   len(res.Records),
		Failures:   len(res.Failures),
		ByReason:   byReason,
		Orgs:       res.Registry.Len(),
		OpenRate:   res.Metrics.OpenRate,
		ClickRate:  res.Metrics.ClickRate,
		Persisted:  persisted,
	})
}
