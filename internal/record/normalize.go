package record

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeEmail canonicalizes an email address for directory lookup:
// NFC normalization, surrounding whitespace stripped, lowercased.
//
// Every stage that compares emails must go through this function - the
// resolver's first-occurrence-wins rule is only meaningful if duplicate
// detection uses the same canonical form everywhere.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(s)))
}

// NormalizeOrgKey canonicalizes an organization key before registry
// lookup. Same rules as NormalizeEmail: case-insensitive, trimmed, NFC.
// Two raw keys that normalize identically share one OrgID.
func NormalizeOrgKey(s string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(s)))
}
