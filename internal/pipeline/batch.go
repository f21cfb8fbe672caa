package pipeline

import (
	"sync"

	"github.com/google/uuid"
)

// BatchTokenGenerator produces the token identifying one batch run.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type BatchTokenGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 batch tokens, so batch
// history listings sort by creation time for free.
//
// Stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7 string.
// Panics if UUID generation fails, which does not happen in practice.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined tokens for deterministic tests and
// golden comparison.
type FixedGenerator struct {
	mu     sync.Mutex
	tokens []string
	idx    int
}

// NewFixedGenerator creates a generator that returns tokens in order.
// Generate panics once all tokens are consumed - fail fast on test
// misconfiguration rather than silently reusing tokens.
func NewFixedGenerator(tokens ...string) *FixedGenerator {
	return &FixedGenerator{tokens: tokens}
}

// Generate returns the next predetermined token.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.tokens) {
		panic("FixedGenerator: all tokens exhausted")
	}
	token := g.tokens[g.idx]
	g.idx++
	return token
}
