// Package export renders a completed batch run as its output artifacts:
// reconciled.csv, failures.csv, and run_summary.json.
//
// Artifacts are deterministic for a given pipeline result: rows keep batch
// order, passthrough attribute columns are the sorted union of keys across
// the batch, and the summary uses canonical JSON. Only the started/finished
// timestamps in the summary vary between otherwise identical runs.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/roach88/tally/internal/pipeline"
	"github.com/roach88/tally/internal/record"
)

// Artifact file names inside the output directory.
const (
	ReconciledFile = "reconciled.csv"
	FailuresFile   = "failures.csv"
	SummaryFile    = "run_summary.json"
)

// reconciledColumns are the fixed leading columns of reconciled.csv.
// Attribute columns follow, sorted by name.
var reconciledColumns = []string{
	"identity_key", "email", "sender", "timestamp", "offset_seconds",
	"views", "clicks", "last_opened", "org_key", "org_id",
}

var failureColumns = []string{
	"stage", "reason", "identity_key", "email", "sender", "timestamp",
}

// WriteAll renders every artifact for the run into dir, creating it if
// needed.
func WriteAll(dir string, res *pipeline.Result, sends int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	if err := writeFile(filepath.Join(dir, ReconciledFile), func(w io.Writer) error {
		return WriteReconciled(w, res.Records)
	}); err != nil {
		return err
	}

	if err := writeFile(filepath.Join(dir, FailuresFile), func(w io.Writer) error {
		return WriteFailures(w, res.Failures)
	}); err != nil {
		return err
	}

	return writeFile(filepath.Join(dir, SummaryFile), func(w io.Writer) error {
		return WriteSummary(w, res, sends)
	})
}

func writeFile(path string, render func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := render(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// WriteReconciled renders the enriched dataset as CSV. The header is the
// fixed column set plus the sorted union of attribute keys seen anywhere in
// the batch; records missing an attribute get an empty cell.
func WriteReconciled(w io.Writer, records []record.EnrichedRecord) error {
	attrCols := attrColumns(records)
	cw := csv.NewWriter(w)

	header := append(append([]string{}, reconciledColumns...), attrCols...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, r := range records {
		row := []string{
			r.IdentityKey,
			r.Email,
			r.Sender,
			record.FormatTimestamp(r.Timestamp),
			strconv.Itoa(r.Offset),
			strconv.Itoa(r.Views),
			strconv.Itoa(r.Clicks),
			record.FormatTimestamp(r.LastOpened),
			r.OrgKey,
			strconv.Itoa(r.OrgID),
		}
		for _, col := range attrCols {
			row = append(row, r.Attrs[col])
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteFailures renders the failure records as CSV.
func WriteFailures(w io.Writer, failures []record.FailureRecord) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(failureColumns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, f := range failures {
		row := []string{
			string(f.Stage),
			string(f.Reason),
			f.IdentityKey,
			f.Email,
			f.Sender,
			record.FormatTimestamp(f.Timestamp),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteSummary renders run_summary.json: batch identity, run timing,
// accounting counts, failures by reason, metrics, and the org registry.
// Canonical JSON, so identical runs diff clean.
func WriteSummary(w io.Writer, res *pipeline.Result, sends int) error {
	failures := make(map[string]any)
	for reason, n := range pipeline.FailureCounts(res.Failures) {
		failures[string(reason)] = n
	}

	registry := make([]any, 0, res.Registry.Len())
	for _, e := range res.Registry.Snapshot() {
		registry = append(registry, map[string]any{
			"org_id":  e.OrgID,
			"org_key": e.OrgKey,
		})
	}

	m := res.Metrics
	summary := map[string]any{
		"batch_token":        res.BatchToken,
		"started":            res.Started.UTC().Format(time.RFC3339),
		"finished":           res.Finished.UTC().Format(time.RFC3339),
		"sends":              sends,
		"enriched":           len(res.Records),
		"failures":           len(res.Failures),
		"failures_by_reason": failures,
		"metrics": map[string]any{
			"total_records": m.TotalRecords,
			"total_views":   m.TotalViews,
			"total_clicks":  m.TotalClicks,
			"open_rate":     m.OpenRate,
			"click_rate":    m.ClickRate,
			"mean_views":    m.MeanViews,
			"median_views":  m.MedianViews,
			"distinct_orgs": m.DistinctOrgs,
			"engaged_orgs":  m.EngagedOrgs,
		},
		"org_registry": registry,
	}

	b, err := record.MarshalCanonical(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	b = append(b, '\n')
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

// attrColumns returns the sorted union of attribute keys across the batch.
func attrColumns(records []record.EnrichedRecord) []string {
	seen := make(map[string]bool)
	for _, r := range records {
		for k := range r.Attrs {
			seen[k] = true
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}
