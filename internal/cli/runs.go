package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/tally/internal/store"
)

// RunsOptions holds flags shared by the runs subcommands.
type RunsOptions struct {
	*RootOptions
	Database string
}

// NewRunsCommand creates the runs command group (list, delete).
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Manage stored batch runs",
	}

	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkPersistentFlagRequired("db")

	cmd.AddCommand(newRunsListCommand(opts))
	cmd.AddCommand(newRunsDeleteCommand(opts))

	return cmd
}

// batchRow is one entry in the runs list payload.
type batchRow struct {
	Token    string    `json:"token"`
	Started  time.Time `json:"started"`
	Sends    int       `json:"sends"`
	Enriched int       `json:"enriched"`
	Failures int       `json:"failures"`
}

// batchList is the success payload of runs list.
type batchList struct {
	Batches []batchRow `json:"batches"`
}

func (l batchList) String() string {
	if len(l.Batches) == 0 {
		return "no batches stored"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-40s %-20s %8s %9s %9s", "TOKEN", "STARTED", "SENDS", "ENRICHED", "FAILURES")
	for _, row := range l.Batches {
		fmt.Fprintf(&b, "\n%-40s %-20s %8d %9d %9d",
			row.Token, row.Started.Format("2006-01-02 15:04:05"), row.Sends, row.Enriched, row.Failures)
	}
	return b.String()
}

func newRunsListCommand(opts *RunsOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List stored batches, newest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runsList(opts, cmd)
		},
	}
}

func runsList(opts *RunsOptions, cmd *cobra.Command) error {
	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
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

	batches, err := st.ListBatches(context.Background())
	if err != nil {
		out.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to list batches", err)
	}

	rows := make([]batchRow, 0, len(batches))
	for _, b := range batches {
		rows = append(rows, batchRow{
			Token:    b.Token,
			Started:  b.Started,
			Sends:    b.Sends,
			Enriched: b.Enriched,
			Failures: b.Failures,
		})
	}
	return out.Success(batchList{Batches: rows})
}

// deleteResult is the success payload of runs delete.
type deleteResult struct {
	Token   string `json:"token"`
	Deleted bool   `json:"deleted"`
}

func (r deleteResult) String() string {
	if r.Deleted {
		return fmt.Sprintf("deleted batch %s", r.Token)
	}
	return fmt.Sprintf("batch %s not found", r.Token)
}

func newRunsDeleteCommand(opts *RunsOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <token>",
		Short:         "Delete a stored batch and all its records",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runsDelete(opts, args[0], cmd)
		},
	}
}

func runsDelete(opts *RunsOptions, token string, cmd *cobra.Command) error {
	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
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

	deleted, err := st.DeleteBatch(context.Background(), token)
	if err != nil {
		out.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to delete batch", err)
	}
	if !deleted {
		out.Error(ErrCodeNotFound, fmt.Sprintf("batch %q not found", token), nil)
		return WrapExitError(ExitFailure, "batch not found", nil)
	}

	return out.Success(deleteResult{Token: token, Deleted: true})
}
