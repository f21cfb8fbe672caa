// Package testutil provides fixture builders shared by tests across the
// repository. Builders use the export timestamp layout so test inputs read
// like the real files.
package testutil

import (
	"fmt"
	"time"

	"github.com/roach88/tally/internal/record"
)

// MustTime parses an export-layout timestamp ("02/01/2006 15:04:05") and
// panics on error. For test fixtures only.
func MustTime(s string) time.Time {
	t, err := record.ParseTimestamp(s)
	if err != nil {
		panic(fmt.Sprintf("testutil: bad fixture timestamp %q: %v", s, err))
	}
	return t
}

// Send builds a send event with the conventional fixture defaults:
// email derived from the identity key, org "Acme", sender "alex".
func Send(identity, ts string) record.SendEvent {
	return record.SendEvent{
		IdentityKey: identity,
		Email:       identity + "@example.com",
		OrgKey:      "Acme",
		Sender:      "alex",
		Timestamp:   MustTime(ts),
	}
}

// SendFor builds a send event with explicit email and org key.
func SendFor(identity, email, org, ts string) record.SendEvent {
	return record.SendEvent{
		IdentityKey: identity,
		Email:       email,
		OrgKey:      org,
		Sender:      "alex",
		Timestamp:   MustTime(ts),
	}
}

// Open builds an open event with the given view/click counters.
func Open(identity, ts string, views, clicks int) record.OpenEvent {
	return record.OpenEvent{
		IdentityKey: identity,
		Timestamp:   MustTime(ts),
		Views:       views,
		Clicks:      clicks,
	}
}

// Contact builds a directory contact.
func Contact(email, org string) record.Contact {
	return record.Contact{Email: email, OrgKey: org}
}

// Enriched builds an enriched record for aggregator tests.
func Enriched(email string, orgID, views, clicks int, ts string) record.EnrichedRecord {
	return record.EnrichedRecord{
		IdentityKey: email,
		Email:       email,
		Sender:      "alex",
		Timestamp:   MustTime(ts),
		Views:       views,
		Clicks:      clicks,
		OrgID:       orgID,
	}
}
