// Package ingest normalizes raw export files into typed records.
//
// The package owns the boundary between the messy outside world (CSV
// exports with day-first timestamps, stray whitespace, extra columns) and
// the pipeline, which only ever sees validated records. Validation collects
// every problem in a file rather than stopping at the first, so one pass
// over a bad export reports everything that needs fixing.
//
// A batch is described by a YAML manifest listing one or more sources
// (send/open file pairs) plus a shared contact directory. The manifest is
// parsed strictly and validated against an embedded CUE schema before any
// data file is touched.
package ingest
