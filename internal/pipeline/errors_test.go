package pipeline

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAccountingBreach(t *testing.T) {
	err := newAccountingError(4, 1, 2)

	assert.True(t, IsAccountingBreach(err))
	assert.True(t, IsAccountingBreach(fmt.Errorf("run failed: %w", err)),
		"classification survives wrapping")
	assert.False(t, IsRegistryCorrupt(err))
	assert.Contains(t, err.Error(), "ACCOUNTING_BREACH")
	assert.Contains(t, err.Error(), "4 sends != 1 enriched + 2 failures")
}

func TestIsRegistryCorrupt(t *testing.T) {
	err := newRegistryError(3, 2)

	assert.True(t, IsRegistryCorrupt(err))
	assert.True(t, IsRegistryCorrupt(fmt.Errorf("assign org identities: %w", err)))
	assert.False(t, IsAccountingBreach(err))
}

func TestErrorHelpers_UnrelatedError(t *testing.T) {
	err := errors.New("disk full")

	assert.False(t, IsAccountingBreach(err))
	assert.False(t, IsRegistryCorrupt(err))
}
