package pipeline

import (
	"log/slog"

	"github.com/roach88/tally/internal/record"
)

// Resolve enriches matched pairs with directory contact attributes.
//
// The directory index is built once per call, inside this function's
// scope, with first-occurrence-wins semantics: when the directory holds
// duplicate emails, later rows are ignored without error. Keys are
// canonicalized with record.NormalizeEmail on both sides of the join.
//
// Only pairs that actually matched an open event are attempted. Pairs
// that already failed at the matching stage are skipped here - their
// failure record exists and they must not be counted twice. A pair whose
// email has no directory entry fails with no_contact_match.
//
// Count invariant for this stage:
//
//	|pairs with a match| == |enriched| + |new failures|
func Resolve(pairs []record.MatchedPair, contacts []record.Contact) ([]record.EnrichedRecord, []record.FailureRecord) {
	directory := make(map[string]record.Contact, len(contacts))
	for _, c := range contacts {
		key := record.NormalizeEmail(c.Email)
		if _, dup := directory[key]; dup {
			continue
		}
		directory[key] = c
	}

	var enriched []record.EnrichedRecord
	var failures []record.FailureRecord

	for _, p := range pairs {
		if !p.Matched() {
			continue
		}

		contact, ok := directory[record.NormalizeEmail(p.Send.Email)]
		if !ok {
			failures = append(failures, record.FailureRecord{
				Stage:       record.StageResolve,
				Reason:      record.ReasonNoContactMatch,
				IdentityKey: p.Send.IdentityKey,
				Email:       p.Send.Email,
				Sender:      p.Send.Sender,
				Timestamp:   p.Send.Timestamp,
			})
			continue
		}

		enriched = append(enriched, mergePair(p, contact))
	}

	slog.Debug("contact resolution complete",
		"directory", len(directory),
		"attempted", len(enriched)+len(failures),
		"enriched", len(enriched),
		"unresolved", len(failures),
	)

	return enriched, failures
}

// mergePair flattens a matched pair and its contact into one enriched
// record. All contact attributes except the join key are merged in;
// contact passthrough wins over open passthrough, which wins over send
// passthrough. The contact's org key is authoritative when present - the
// directory is the source of truth for organization membership - with the
// send's org key as fallback.
func mergePair(p record.MatchedPair, contact record.Contact) record.EnrichedRecord {
	orgKey := contact.OrgKey
	if orgKey == "" {
		orgKey = p.Send.OrgKey
	}

	return record.EnrichedRecord{
		IdentityKey: p.Send.IdentityKey,
		Email:       p.Send.Email,
		Sender:      p.Send.Sender,
		Timestamp:   p.Send.Timestamp,
		Offset:      p.Offset,
		Views:       p.Open.Views,
		Clicks:      p.Open.Clicks,
		LastOpened:  p.Open.LastOpened,
		OrgKey:      orgKey,
		Attrs:       p.Send.Attrs.Merge(p.Open.Attrs).Merge(contact.Attrs),
	}
}
