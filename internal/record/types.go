package record

import "time"

// Attrs holds passthrough attributes: columns the normalizer saw but the
// core never interprets. They are carried unchanged into the output.
type Attrs map[string]string

// Clone returns a shallow copy of the attribute set.
// Returns nil for a nil receiver so zero records stay zero.
func (a Attrs) Clone() Attrs {
	if a == nil {
		return nil
	}
	out := make(Attrs, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Merge returns a new attribute set containing the receiver's entries
// overlaid with the other set. Keys present in both take the other set's
// value. Neither input is mutated.
func (a Attrs) Merge(other Attrs) Attrs {
	if a == nil && other == nil {
		return nil
	}
	out := make(Attrs, len(a)+len(other))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// SendEvent is one outbound-email send, produced by the ingest normalizer.
// Immutable once produced; consumed by the matcher.
type SendEvent struct {
	IdentityKey string    // grouping key for send/open matching
	Email       string    // recipient address, the directory join key
	OrgKey      string    // raw organization key as seen in the export
	Sender      string    // source name the event was ingested from
	Timestamp   time.Time // send time, second precision
	Attrs       Attrs
}

// OpenEvent is one open/click report row. Each open event may be consumed
// by at most one send event; consumption is tracked by the matcher, never
// on the event itself.
type OpenEvent struct {
	IdentityKey string
	Timestamp   time.Time
	Views       int
	Clicks      int
	LastOpened  time.Time // zero when the export column was empty
	Attrs       Attrs
}

// MatchedPair binds a send event to at most one open event.
//
// INVARIANT: the matcher emits exactly one pair per input send event -
// matching never creates or drops records. Offset is the elapsed seconds
// between send and open and is meaningful only when Open is non-nil.
type MatchedPair struct {
	Send   SendEvent
	Open   *OpenEvent
	Offset int
}

// Matched reports whether the pair found an open event.
func (p MatchedPair) Matched() bool {
	return p.Open != nil
}

// Contact is one directory row. The directory is read-only for the
// duration of a run.
type Contact struct {
	Email  string
	OrgKey string
	Attrs  Attrs
}

// EnrichedRecord is a matched pair merged with its directory contact and
// stamped with a run-local surrogate OrgID.
type EnrichedRecord struct {
	IdentityKey string
	Email       string
	Sender      string
	Timestamp   time.Time
	Offset      int
	Views       int
	Clicks      int
	LastOpened  time.Time
	OrgKey      string // authoritative org key after contact resolution
	OrgID       int    // assigned by the registry, 0 until assignment
	Attrs       Attrs  // send, open, and contact passthrough merged
}

// Stage identifies the pipeline stage at which a record failed.
type Stage string

const (
	StageMatch   Stage = "match"
	StageResolve Stage = "resolve"
)

// Reason is a failure reason code. These values are a stable contract
// consumed by the failure export and downstream tooling.
type Reason string

const (
	ReasonNoOpenMatch    Reason = "no_open_match"
	ReasonNoContactMatch Reason = "no_contact_match"
)

// FailureRecord is a record that exited the pipeline at some stage.
// Failures are data, not errors: they are collected, exported for audit,
// and counted against the accounting invariant
//
//	|sends| == |enriched| + |failures|
//
// which must hold at the end of every run.
type FailureRecord struct {
	Stage       Stage
	Reason      Reason
	IdentityKey string
	Email       string
	Sender      string
	Timestamp   time.Time
}
