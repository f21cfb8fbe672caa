package pipeline

import (
	"github.com/roach88/tally/internal/record"
)

// Registry maps normalized organization keys to stable surrogate integer
// IDs for one run. IDs start at 1 and are assigned in input order, so
// re-running on identical input reproduces identical IDs. A different
// input order may change specific ID values but never changes which
// records share an ID.
//
// A Registry is instantiated per run and passed through the pipeline -
// never a process-wide singleton. Not safe for concurrent use; the
// pipeline's stages run strictly in sequence.
type Registry struct {
	ids  map[string]int
	keys []string // keys[id-1] is the normalized key for id; the reverse mapping
}

// RegistryEntry is one row of a registry snapshot, ordered by ID.
type RegistryEntry struct {
	OrgID  int
	OrgKey string
}

// NewRegistry creates an empty registry. The next assigned ID is 1.
func NewRegistry() *Registry {
	return &Registry{ids: make(map[string]int)}
}

// Assign stamps every record with its OrgID, creating new IDs on first
// sight of a normalized org key. Returns a new slice; the input records
// are not mutated.
//
// Returns a REGISTRY_CORRUPT error if the forward and reverse mappings
// have diverged - that can only happen through a bug, and per the error
// policy an inconsistent registry aborts the run rather than silently
// producing partial output.
func (r *Registry) Assign(records []record.EnrichedRecord) ([]record.EnrichedRecord, error) {
	if err := r.check(); err != nil {
		return nil, err
	}

	out := make([]record.EnrichedRecord, len(records))
	for i, rec := range records {
		rec.OrgID = r.intern(record.NormalizeOrgKey(rec.OrgKey))
		out[i] = rec
	}
	return out, nil
}

// intern returns the ID for a normalized key, assigning the next integer
// on first sight. The empty key is interned like any other: records with
// a blank org column still share one deterministic ID.
func (r *Registry) intern(key string) int {
	if id, ok := r.ids[key]; ok {
		return id
	}
	id := len(r.keys) + 1
	r.ids[key] = id
	r.keys = append(r.keys, key)
	return id
}

// ID returns the assigned ID for an org key, normalizing the input first.
func (r *Registry) ID(orgKey string) (int, bool) {
	id, ok := r.ids[record.NormalizeOrgKey(orgKey)]
	return id, ok
}

// OrgKey returns the normalized org key for an ID. This is the queryable
// reverse mapping used for diagnostics and reporting.
func (r *Registry) OrgKey(id int) (string, bool) {
	if id < 1 || id > len(r.keys) {
		return "", false
	}
	return r.keys[id-1], true
}

// Len returns the number of distinct organizations seen so far.
func (r *Registry) Len() int {
	return len(r.keys)
}

// Snapshot returns all entries ordered by ID, for persistence and golden
// comparison.
func (r *Registry) Snapshot() []RegistryEntry {
	entries := make([]RegistryEntry, len(r.keys))
	for i, key := range r.keys {
		entries[i] = RegistryEntry{OrgID: i + 1, OrgKey: key}
	}
	return entries
}

// check verifies that the forward map and the reverse slice agree.
func (r *Registry) check() error {
	if len(r.ids) != len(r.keys) {
		return newRegistryError(len(r.ids), len(r.keys))
	}
	for i, key := range r.keys {
		if r.ids[key] != i+1 {
			return newRegistryError(len(r.ids), len(r.keys))
		}
	}
	return nil
}
