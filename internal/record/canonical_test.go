package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortedKeys(t *testing.T) {
	got, err := MarshalCanonical(map[string]any{
		"views":  3,
		"email":  "a@b.com",
		"clicks": 1,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"clicks":1,"email":"a@b.com","views":3}`, string(got))
}

func TestMarshalCanonical_Scalars(t *testing.T) {
	testCases := []struct {
		name  string
		input any
		want  string
	}{
		{"null", nil, "null"},
		{"string", "hi", `"hi"`},
		{"bool", true, "true"},
		{"int", 42, "42"},
		{"int64", int64(-7), "-7"},
		{"float exact", 2.5, "2.5"},
		{"float whole", float64(100), "100"},
		{"float zero", float64(0), "0"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := MarshalCanonical(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.want, string(got))
		})
	}
}

func TestMarshalCanonical_NoHTMLEscaping(t *testing.T) {
	got, err := MarshalCanonical("a<b&c>d")
	require.NoError(t, err)
	assert.Equal(t, `"a<b&c>d"`, string(got))
}

func TestMarshalCanonical_NestedDeterministic(t *testing.T) {
	input := map[string]any{
		"failures": []any{
			map[string]any{"reason": "no_open_match", "identity_key": "c"},
		},
		"batch": "run-1",
	}

	first, err := MarshalCanonical(input)
	require.NoError(t, err)
	second, err := MarshalCanonical(input)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
	assert.Equal(t,
		`{"batch":"run-1","failures":[{"identity_key":"c","reason":"no_open_match"}]}`,
		string(first))
}

func TestMarshalCanonical_RejectsUnsupportedTypes(t *testing.T) {
	_, err := MarshalCanonical(struct{ X int }{1})
	assert.Error(t, err)

	_, err = MarshalCanonical(map[string]any{"ch": make(chan int)})
	assert.Error(t, err)
}
