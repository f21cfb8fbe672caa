package pipeline

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/tally/internal/record"
)

// Input is one batch of normalized records. The ingest normalizer has
// already validated shapes and formats; the pipeline never sees raw rows.
type Input struct {
	Sends    []record.SendEvent
	Opens    []record.OpenEvent
	Contacts []record.Contact
}

// Result is the complete outcome of one batch run.
type Result struct {
	BatchToken string
	Pairs      []record.MatchedPair    // one per send, source order
	Records    []record.EnrichedRecord // the reconciled dataset
	Failures   []record.FailureRecord  // match failures first, then resolution failures
	Registry   *Registry
	Metrics    Metrics // unfiltered aggregate over Records
	Started    time.Time
	Finished   time.Time
}

// Run executes the four stages in sequence over one batch: match, resolve,
// assign, aggregate. Each stage consumes the prior stage's full output.
//
// The returned error is non-nil only for fatal internal faults
// (ACCOUNTING_BREACH, REGISTRY_CORRUPT). Match and resolution failures are
// data in Result.Failures, never errors.
//
// A nil generator defaults to UUIDv7 batch tokens.
func Run(in Input, gen BatchTokenGenerator) (*Result, error) {
	if gen == nil {
		gen = UUIDv7Generator{}
	}

	res := &Result{
		BatchToken: gen.Generate(),
		Started:    time.Now(),
	}

	slog.Info("pipeline starting",
		"batch", res.BatchToken,
		"sends", len(in.Sends),
		"opens", len(in.Opens),
		"contacts", len(in.Contacts),
	)

	pairs, matchFailures := Match(in.Sends, in.Opens)
	res.Pairs = pairs

	enriched, resolveFailures := Resolve(pairs, in.Contacts)

	res.Registry = NewRegistry()
	assigned, err := res.Registry.Assign(enriched)
	if err != nil {
		return nil, fmt.Errorf("assign org identities: %w", err)
	}
	res.Records = assigned

	res.Failures = append(res.Failures, matchFailures...)
	res.Failures = append(res.Failures, resolveFailures...)

	// The accounting invariant must balance across every exit point. A
	// breach means a stage created or dropped a record, and partial output
	// must not be reported as a completed run.
	if len(in.Sends) != len(res.Records)+len(res.Failures) {
		return nil, newAccountingError(len(in.Sends), len(res.Records), len(res.Failures))
	}

	res.Metrics = Aggregate(res.Records, nil)
	res.Finished = time.Now()

	slog.Info("pipeline finished",
		"batch", res.BatchToken,
		"enriched", len(res.Records),
		"failures", len(res.Failures),
		"orgs", res.Registry.Len(),
		"elapsed", res.Finished.Sub(res.Started),
	)

	return res, nil
}

// FailureCounts tallies failures by reason, for the run summary and the
// CLI report.
func FailureCounts(failures []record.FailureRecord) map[record.Reason]int {
	counts := make(map[record.Reason]int)
	for _, f := range failures {
		counts[f.Reason]++
	}
	return counts
}
