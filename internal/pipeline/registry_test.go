package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tally/internal/record"
)

func enrichedWithOrg(orgs ...string) []record.EnrichedRecord {
	records := make([]record.EnrichedRecord, len(orgs))
	for i, o := range orgs {
		records[i] = record.EnrichedRecord{Email: "x@y.com", OrgKey: o}
	}
	return records
}

func TestRegistry_AssignsSequentialIDsFromOne(t *testing.T) {
	reg := NewRegistry()

	out, err := reg.Assign(enrichedWithOrg("Acme", "Globex", "Acme", "Initech"))
	require.NoError(t, err)

	ids := []int{out[0].OrgID, out[1].OrgID, out[2].OrgID, out[3].OrgID}
	assert.Equal(t, []int{1, 2, 1, 3}, ids)
	assert.Equal(t, 3, reg.Len())
}

func TestRegistry_NormalizesKeys(t *testing.T) {
	reg := NewRegistry()

	out, err := reg.Assign(enrichedWithOrg("Acme", " ACME ", "acme"))
	require.NoError(t, err)

	assert.Equal(t, out[0].OrgID, out[1].OrgID)
	assert.Equal(t, out[0].OrgID, out[2].OrgID)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_DoesNotMutateInput(t *testing.T) {
	reg := NewRegistry()
	in := enrichedWithOrg("Acme")

	_, err := reg.Assign(in)
	require.NoError(t, err)

	assert.Equal(t, 0, in[0].OrgID, "input records must stay untouched")
}

func TestRegistry_ReverseMapping(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Assign(enrichedWithOrg("Acme", "Globex"))
	require.NoError(t, err)

	key, ok := reg.OrgKey(2)
	require.True(t, ok)
	assert.Equal(t, "globex", key)

	id, ok := reg.ID(" GLOBEX ")
	require.True(t, ok)
	assert.Equal(t, 2, id)

	_, ok = reg.OrgKey(0)
	assert.False(t, ok)
	_, ok = reg.OrgKey(99)
	assert.False(t, ok)
}

func TestRegistry_ReassignmentIsStableAcrossCalls(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Assign(enrichedWithOrg("Acme", "Globex"))
	require.NoError(t, err)

	// A later batch through the same run's registry reuses existing IDs.
	out, err := reg.Assign(enrichedWithOrg("Globex", "Hooli"))
	require.NoError(t, err)

	assert.Equal(t, 2, out[0].OrgID)
	assert.Equal(t, 3, out[1].OrgID)
}

func TestRegistry_OrderChangesIDsNotGrouping(t *testing.T) {
	a, err := NewRegistry().Assign(enrichedWithOrg("Acme", "Globex", "Acme"))
	require.NoError(t, err)
	b, err := NewRegistry().Assign(enrichedWithOrg("Globex", "Acme", "Acme"))
	require.NoError(t, err)

	// Specific values differ with order, but co-membership is invariant.
	assert.Equal(t, a[0].OrgID, a[2].OrgID)
	assert.Equal(t, b[1].OrgID, b[2].OrgID)
	assert.NotEqual(t, a[0].OrgID, b[0].OrgID)
}

func TestRegistry_EmptyOrgKeyGetsAnID(t *testing.T) {
	reg := NewRegistry()

	out, err := reg.Assign(enrichedWithOrg("", "  ", "Acme"))
	require.NoError(t, err)

	assert.Equal(t, out[0].OrgID, out[1].OrgID, "blank org keys share one ID")
	assert.NotEqual(t, out[0].OrgID, out[2].OrgID)
}

func TestRegistry_Snapshot(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Assign(enrichedWithOrg("Globex", "Acme"))
	require.NoError(t, err)

	snap := reg.Snapshot()
	assert.Equal(t, []RegistryEntry{
		{OrgID: 1, OrgKey: "globex"},
		{OrgID: 2, OrgKey: "acme"},
	}, snap)
}

func TestRegistry_CorruptionDetected(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Assign(enrichedWithOrg("Acme"))
	require.NoError(t, err)

	// Sabotage the forward map to simulate internal state corruption.
	reg.ids["rogue"] = 7

	_, err = reg.Assign(enrichedWithOrg("Globex"))
	require.Error(t, err)
	assert.True(t, IsRegistryCorrupt(err))
}
