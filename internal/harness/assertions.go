package harness

import (
	"fmt"

	"github.com/roach88/tally/internal/pipeline"
	"github.com/roach88/tally/internal/record"
)

// Check evaluates a scenario's expectations against a result. Every failed
// expectation is reported, not just the first. An empty slice means the
// scenario passed.
func Check(scenario *Scenario, result *Result) []string {
	var failures []string
	exp := scenario.Expect
	if exp == nil {
		return nil
	}
	res := result.Pipeline

	if exp.Enriched != nil && len(res.Records) != *exp.Enriched {
		failures = append(failures,
			fmt.Sprintf("enriched: want %d, got %d", *exp.Enriched, len(res.Records)))
	}

	if exp.Failures != nil {
		counts := pipeline.FailureCounts(res.Failures)
		for reason, want := range exp.Failures {
			if got := counts[record.Reason(reason)]; got != want {
				failures = append(failures,
					fmt.Sprintf("failures[%s]: want %d, got %d", reason, want, got))
			}
		}
	}

	if exp.Orgs != nil && res.Registry.Len() != *exp.Orgs {
		failures = append(failures,
			fmt.Sprintf("orgs: want %d, got %d", *exp.Orgs, res.Registry.Len()))
	}

	for _, re := range exp.Records {
		failures = append(failures, checkRecord(re, res.Records)...)
	}

	return failures
}

// checkRecord pins one enriched record by identity key and compares the
// requested fields.
func checkRecord(re RecordExpect, records []record.EnrichedRecord) []string {
	var r *record.EnrichedRecord
	for i := range records {
		if records[i].IdentityKey == re.IdentityKey {
			r = &records[i]
			break
		}
	}
	if r == nil {
		return []string{fmt.Sprintf("records[%s]: no enriched record with that identity key", re.IdentityKey)}
	}

	var failures []string
	if re.Offset != nil && r.Offset != *re.Offset {
		failures = append(failures,
			fmt.Sprintf("records[%s].offset: want %d, got %d", re.IdentityKey, *re.Offset, r.Offset))
	}
	if re.Views != nil && r.Views != *re.Views {
		failures = append(failures,
			fmt.Sprintf("records[%s].views: want %d, got %d", re.IdentityKey, *re.Views, r.Views))
	}
	if re.Clicks != nil && r.Clicks != *re.Clicks {
		failures = append(failures,
			fmt.Sprintf("records[%s].clicks: want %d, got %d", re.IdentityKey, *re.Clicks, r.Clicks))
	}
	if re.OrgID != nil && r.OrgID != *re.OrgID {
		failures = append(failures,
			fmt.Sprintf("records[%s].org_id: want %d, got %d", re.IdentityKey, *re.OrgID, r.OrgID))
	}
	if re.OrgKey != nil && r.OrgKey != *re.OrgKey {
		failures = append(failures,
			fmt.Sprintf("records[%s].org_key: want %q, got %q", re.IdentityKey, *re.OrgKey, r.OrgKey))
	}
	return failures
}
