package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmail(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "Alice@Example.COM", "alice@example.com"},
		{"trims", "  bob@example.com  ", "bob@example.com"},
		{"already canonical", "carol@example.com", "carol@example.com"},
		{"empty", "", ""},
		// NFD "e" + combining acute must equal the precomposed NFC form.
		{"nfc normalization", "rémy@example.com", "rémy@example.com"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeEmail(tc.input))
		})
	}
}

func TestNormalizeOrgKey(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  string
	}{
		{"case insensitive", "Acme Corp", "acme corp"},
		{"trimmed", " Acme Corp\t", "acme corp"},
		{"empty stays empty", "   ", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeOrgKey(tc.input))
		})
	}
}

func TestNormalize_SameKeyCollapses(t *testing.T) {
	// The registry relies on this: raw variants of one org share a key.
	variants := []string{"Acme", "acme", " ACME ", "aCmE"}
	for _, v := range variants {
		assert.Equal(t, "acme", NormalizeOrgKey(v))
	}
}
