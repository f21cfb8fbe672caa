// Package record defines the typed record model shared by every pipeline
// stage: send events, open events, matched pairs, directory contacts,
// enriched records, and failure records.
//
// Records are produced once by the ingest normalizer and treated as
// immutable afterwards. All string identity comparisons (emails, org keys)
// go through the normalization helpers in this package so that every stage
// agrees on what "the same key" means.
//
// The package also provides canonical JSON serialization used for golden
// tests and the run summary artifact. Canonical output is byte-stable for
// identical input: object keys are sorted, strings are NFC normalized, and
// HTML escaping is disabled.
package record
