package harness

import (
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/tally/internal/record"
)

// Snapshot renders a result as canonical JSON for golden comparison:
// batch token, every enriched record, every failure, the org registry,
// and the metrics. Identical runs produce identical bytes.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	res := result.Pipeline

	records := make([]any, 0, len(res.Records))
	for _, r := range res.Records {
		attrs := make(map[string]any, len(r.Attrs))
		for k, v := range r.Attrs {
			attrs[k] = v
		}
		records = append(records, map[string]any{
			"identity_key": r.IdentityKey,
			"email":        r.Email,
			"sender":       r.Sender,
			"timestamp":    record.FormatTimestamp(r.Timestamp),
			"offset":       r.Offset,
			"views":        r.Views,
			"clicks":       r.Clicks,
			"last_opened":  record.FormatTimestamp(r.LastOpened),
			"org_key":      r.OrgKey,
			"org_id":       r.OrgID,
			"attrs":        attrs,
		})
	}

	failures := make([]any, 0, len(res.Failures))
	for _, f := range res.Failures {
		failures = append(failures, map[string]any{
			"stage":        string(f.Stage),
			"reason":       string(f.Reason),
			"identity_key": f.IdentityKey,
			"email":        f.Email,
			"sender":       f.Sender,
			"timestamp":    record.FormatTimestamp(f.Timestamp),
		})
	}

	registry := make([]any, 0, res.Registry.Len())
	for _, e := range res.Registry.Snapshot() {
		registry = append(registry, map[string]any{
			"org_id":  e.OrgID,
			"org_key": e.OrgKey,
		})
	}

	m := res.Metrics
	snapshot := map[string]any{
		"scenario":    scenarioName,
		"batch_token": res.BatchToken,
		"sends":       result.Sends,
		"records":     records,
		"failures":    failures,
		"registry":    registry,
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
	}

	b, err := record.MarshalCanonical(snapshot)
	if err != nil {
		return nil, fmt.Errorf("snapshot %q: %w", scenarioName, err)
	}
	return b, nil
}

// RunWithGolden executes a scenario, checks its expectations, and compares
// the full result snapshot against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}

	if failures := Check(scenario, result); len(failures) > 0 {
		for _, f := range failures {
			t.Errorf("scenario %q: %s", scenario.Name, f)
		}
		return fmt.Errorf("scenario %q: %d expectation(s) failed", scenario.Name, len(failures))
	}

	snapshot, err := Snapshot(scenario.Name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, snapshot)

	return nil
}
