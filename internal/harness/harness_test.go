package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalScenario = `
name: minimal
description: one send, one open, one contact
sends:
  - identity_key: a
    email: a@x.com
    org_key: Acme
    timestamp: "01/06/2025 10:00:00"
opens:
  - identity_key: a
    timestamp: "01/06/2025 10:00:02"
    views: 1
    clicks: 0
contacts:
  - email: a@x.com
    org_key: Acme
`

func TestLoadScenario_Valid(t *testing.T) {
	path := writeScenario(t, minimalScenario)

	s, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "minimal", s.Name)
	require.Len(t, s.Sends, 1)
	assert.Equal(t, "a", s.Sends[0].IdentityKey)
}

func TestLoadScenario_UnknownFieldRejected(t *testing.T) {
	path := writeScenario(t, `
name: typo
description: has a typo
send:
  - identity_key: a
    email: a@x.com
    timestamp: "01/06/2025 10:00:00"
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send")
}

func TestLoadScenario_MissingRequired(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "no name",
			content: "description: d\nsends:\n  - identity_key: a\n    email: a@x.com\n    timestamp: \"01/06/2025 10:00:00\"\n",
			want:    "name is required",
		},
		{
			name:    "no sends",
			content: "name: n\ndescription: d\n",
			want:    "sends list is required",
		},
		{
			name:    "send without email",
			content: "name: n\ndescription: d\nsends:\n  - identity_key: a\n    timestamp: \"01/06/2025 10:00:00\"\n",
			want:    "sends[0]: email is required",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeScenario(t, tc.content)
			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestRun_BuildsInputAndRuns(t *testing.T) {
	path := writeScenario(t, minimalScenario)
	s, err := LoadScenario(path)
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)

	assert.Equal(t, DefaultBatchToken, result.Pipeline.BatchToken)
	assert.Equal(t, 1, result.Sends)
	require.Len(t, result.Pipeline.Records, 1)
	assert.Equal(t, 2, result.Pipeline.Records[0].Offset)
	assert.Equal(t, "test", result.Pipeline.Records[0].Sender, "sender defaults when the scenario omits it")
}

func TestRun_BadTimestampNamesRow(t *testing.T) {
	path := writeScenario(t, `
name: bad_ts
description: send with a bad timestamp
sends:
  - identity_key: a
    email: a@x.com
    timestamp: "June 1st"
`)
	s, err := LoadScenario(path)
	require.NoError(t, err)

	_, err = Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sends[0]")
}

func TestCheck_PassingExpectations(t *testing.T) {
	path := writeScenario(t, minimalScenario+`
expect:
  enriched: 1
  failures:
    no_open_match: 0
  orgs: 1
  records:
    - identity_key: a
      offset: 2
      views: 1
`)
	s, err := LoadScenario(path)
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)

	assert.Empty(t, Check(s, result))
}

func TestCheck_ReportsEveryFailure(t *testing.T) {
	path := writeScenario(t, minimalScenario+`
expect:
  enriched: 5
  orgs: 9
  records:
    - identity_key: a
      offset: 7
    - identity_key: ghost
`)
	s, err := LoadScenario(path)
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)

	failures := Check(s, result)
	require.Len(t, failures, 4)
	assert.Contains(t, failures[0], "enriched: want 5, got 1")
	assert.Contains(t, failures[1], "orgs: want 9, got 1")
	assert.Contains(t, failures[2], "offset: want 7, got 2")
	assert.Contains(t, failures[3], "no enriched record")
}

func TestSnapshot_Deterministic(t *testing.T) {
	path := writeScenario(t, minimalScenario)
	s, err := LoadScenario(path)
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)

	first, err := Snapshot(s.Name, result)
	require.NoError(t, err)
	second, err := Snapshot(s.Name, result)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
