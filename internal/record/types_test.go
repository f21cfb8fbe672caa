package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttrsClone_Independent(t *testing.T) {
	orig := Attrs{"campaign": "q3", "region": "emea"}
	clone := orig.Clone()

	clone["region"] = "apac"

	assert.Equal(t, "emea", orig["region"], "mutating the clone must not touch the original")
	assert.Equal(t, "q3", clone["campaign"])
}

func TestAttrsClone_Nil(t *testing.T) {
	var a Attrs
	assert.Nil(t, a.Clone())
}

func TestAttrsMerge(t *testing.T) {
	testCases := []struct {
		name  string
		base  Attrs
		other Attrs
		want  Attrs
	}{
		{
			name:  "disjoint keys",
			base:  Attrs{"a": "1"},
			other: Attrs{"b": "2"},
			want:  Attrs{"a": "1", "b": "2"},
		},
		{
			name:  "other wins on conflict",
			base:  Attrs{"a": "1"},
			other: Attrs{"a": "2"},
			want:  Attrs{"a": "2"},
		},
		{
			name:  "nil other",
			base:  Attrs{"a": "1"},
			other: nil,
			want:  Attrs{"a": "1"},
		},
		{
			name:  "both nil",
			base:  nil,
			other: nil,
			want:  nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.base.Merge(tc.other)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestAttrsMerge_DoesNotMutateInputs(t *testing.T) {
	base := Attrs{"a": "1"}
	other := Attrs{"a": "2"}

	_ = base.Merge(other)

	assert.Equal(t, "1", base["a"])
	assert.Equal(t, "2", other["a"])
}

func TestMatchedPair_Matched(t *testing.T) {
	unmatched := MatchedPair{Send: SendEvent{IdentityKey: "a"}}
	assert.False(t, unmatched.Matched())

	matched := MatchedPair{Send: SendEvent{IdentityKey: "a"}, Open: &OpenEvent{IdentityKey: "a"}, Offset: 3}
	assert.True(t, matched.Matched())
}
