// Package harness runs declarative reconciliation scenarios.
//
// A scenario is a YAML file holding a complete batch inline (sends, opens,
// contacts) plus expectations about the outcome. The harness feeds the
// batch through the pipeline with a fixed batch token and checks the
// expectations, and can snapshot the full result as canonical JSON for
// golden comparison.
//
// Scenarios double as executable documentation of the matching rules:
// each file under testdata/scenarios exercises one behavior.
package harness
