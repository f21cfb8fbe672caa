// Package pipeline implements the record reconciliation engine: the
// time-window matcher, the contact resolver, the org identity registry,
// and the metrics aggregator, plus the orchestration that runs them in
// sequence for one batch.
//
// Every stage partitions its input into a success stream carried forward
// and a failure stream retained for audit. Failures never re-enter the
// pipeline. The orchestrator enforces the accounting invariant
//
//	|sends| == |enriched records| + |failure records|
//
// at the end of the run and aborts with a typed error if it does not hold.
//
// All state is per-run: the registry, the matcher's consumption markers,
// and the resolver's directory index are built inside a call and discarded
// afterwards. Nothing in this package keeps package-level mutable state,
// so concurrent runs never share counters or markers.
package pipeline
