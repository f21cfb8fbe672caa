package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tally/internal/pipeline"
	"github.com/roach88/tally/internal/record"
	"github.com/roach88/tally/internal/store"
)

// ReportOptions holds flags for the report command.
type ReportOptions struct {
	*RootOptions
	Database string
	Batch    string
	From     string
	To       string
	OrgID    int
	Sender   string
}

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Report engagement metrics for a stored batch",
		Long: `Compute engagement metrics over a persisted batch, optionally narrowed
by date range, organization, or sender. Without --batch the most recent
batch is reported.

Timestamps use the export layout, e.g. --from "01/06/2025 00:00:00".

Example:
  tally report --db ./tally.db
  tally report --db ./tally.db --batch 0190... --org 3
  tally report --db ./tally.db --from "01/06/2025 00:00:00" --to "30/06/2025 23:59:59"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Batch, "batch", "", "batch token (default: most recent)")
	cmd.Flags().StringVar(&opts.From, "from", "", "inclusive lower bound on send time")
	cmd.Flags().StringVar(&opts.To, "to", "", "inclusive upper bound on send time")
	cmd.Flags().IntVar(&opts.OrgID, "org", 0, "restrict to one org ID")
	cmd.Flags().StringVar(&opts.Sender, "sender", "", "restrict to one source name")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

// reportPayload is the success payload of the report command.
type reportPayload struct {
	BatchToken string           `json:"batch_token"`
	Filtered   bool             `json:"filtered"`
	Metrics    pipeline.Metrics `json:"metrics"`
}

func (p reportPayload) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "batch %s", p.BatchToken)
	if p.Filtered {
		b.WriteString(" (filtered)")
	}
	m := p.Metrics
	fmt.Fprintf(&b, "\n  records:       %d\n", m.TotalRecords)
	fmt.Fprintf(&b, "  views:         %d (mean %.2f, median %.2f)\n", m.TotalViews, m.MeanViews, m.MedianViews)
	fmt.Fprintf(&b, "  clicks:        %d\n", m.TotalClicks)
	fmt.Fprintf(&b, "  open rate:     %.1f%%\n", m.OpenRate)
	fmt.Fprintf(&b, "  click rate:    %.1f%%\n", m.ClickRate)
	fmt.Fprintf(&b, "  distinct orgs: %d\n", m.DistinctOrgs)
	fmt.Fprintf(&b, "  engaged orgs:  %d", m.EngagedOrgs)
	return b.String()
}

func runReport(opts *ReportOptions, cmd *cobra.Command) error {
	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	filter, err := buildFilter(opts)
	if err != nil {
		out.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid filter", err)
	}

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

	ctx := context.Background()
	token := opts.Batch
	if token == "" {
		latest, err := st.LatestBatch(ctx)
		if errors.Is(err, store.ErrBatchNotFound) {
			out.Error(ErrCodeNotFound, "no batches stored", nil)
			return WrapExitError(ExitFailure, "no batches stored", err)
		}
		if err != nil {
			out.Error(ErrCodeDatabase, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to read batches", err)
		}
		token = latest.Token
	} else if _, err := st.GetBatch(ctx, token); err != nil {
		if errors.Is(err, store.ErrBatchNotFound) {
			out.Error(ErrCodeNotFound, fmt.Sprintf("batch %q not found", token), nil)
			return WrapExitError(ExitFailure, "batch not found", err)
		}
		out.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read batch", err)
	}

	records, err := st.ReadRecords(ctx, token, filter)
	if err != nil {
		out.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read records", err)
	}

	// Metrics are recomputed over the filtered view rather than read from
	// the batch row, so filters and totals always agree.
	return out.Success(reportPayload{
		BatchToken: token,
		Filtered:   filter != (store.RecordFilter{}),
		Metrics:    pipeline.Aggregate(records, nil),
	})
}

func buildFilter(opts *ReportOptions) (store.RecordFilter, error) {
	var filter store.RecordFilter
	var err error

	if opts.From != "" {
		if filter.From, err = record.ParseTimestamp(opts.From); err != nil {
			return store.RecordFilter{}, fmt.Errorf("--from: %w", err)
		}
	}
	if opts.To != "" {
		if filter.To, err = record.ParseTimestamp(opts.To); err != nil {
			return store.RecordFilter{}, fmt.Errorf("--to: %w", err)
		}
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return store.RecordFilter{}, fmt.Errorf("--to %q precedes --from %q", opts.To, opts.From)
	}
	if opts.OrgID < 0 {
		return store.RecordFilter{}, fmt.Errorf("--org must be positive, got %d", opts.OrgID)
	}
	filter.OrgID = opts.OrgID
	filter.Sender = opts.Sender
	return filter, nil
}
