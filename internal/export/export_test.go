package export

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tally/internal/pipeline"
	"github.com/roach88/tally/internal/record"
	"github.com/roach88/tally/internal/testutil"
)

func exportResult(t *testing.T) (*pipeline.Result, int) {
	t.Helper()

	in := pipeline.Input{
		Sends: []record.SendEvent{
			testutil.SendFor("a", "a@x.com", "Acme", "01/06/2025 10:00:00"),
			testutil.SendFor("b", "b@x.com", "Globex", "01/06/2025 11:00:00"),
			testutil.SendFor("c", "c@x.com", "Acme", "01/06/2025 12:00:00"),
		},
		Opens: []record.OpenEvent{
			testutil.Open("a", "01/06/2025 10:00:03", 4, 1),
			testutil.Open("b", "01/06/2025 11:00:30", 2, 0),
		},
		Contacts: []record.Contact{
			testutil.Contact("a@x.com", "Acme"),
			testutil.Contact("b@x.com", "Globex"),
		},
	}

	res, err := pipeline.Run(in, pipeline.NewFixedGenerator("batch-1"))
	require.NoError(t, err)
	return res, len(in.Sends)
}

func TestWriteReconciled_FixedColumns(t *testing.T) {
	res, _ := exportResult(t)

	var buf bytes.Buffer
	require.NoError(t, WriteReconciled(&buf, res.Records))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3) // header + two records
	assert.Equal(t, "identity_key,email,sender,timestamp,offset_seconds,views,clicks,last_opened,org_key,org_id", lines[0])
	assert.Equal(t, "a,a@x.com,alex,01/06/2025 10:00:00,3,4,1,,Acme,1", lines[1])
	assert.Equal(t, "b,b@x.com,alex,01/06/2025 11:00:00,30,2,0,,Globex,2", lines[2])
}

func TestWriteReconciled_AttrColumnsSortedUnion(t *testing.T) {
	res, _ := exportResult(t)
	res.Records[0].Attrs = record.Attrs{"region": "emea"}
	res.Records[1].Attrs = record.Attrs{"campaign": "q3"}

	var buf bytes.Buffer
	require.NoError(t, WriteReconciled(&buf, res.Records))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.True(t, strings.HasSuffix(lines[0], ",campaign,region"), "attr columns appended sorted: %s", lines[0])
	assert.True(t, strings.HasSuffix(lines[1], ",,emea"), "missing attrs render empty: %s", lines[1])
	assert.True(t, strings.HasSuffix(lines[2], ",q3,"), "row 2: %s", lines[2])
}

func TestWriteReconciled_EmptyBatchStillHasHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReconciled(&buf, nil))

	assert.Equal(t, strings.Join(reconciledColumns, ",")+"\n", buf.String())
}

func TestWriteFailures(t *testing.T) {
	res, _ := exportResult(t)

	var buf bytes.Buffer
	require.NoError(t, WriteFailures(&buf, res.Failures))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "stage,reason,identity_key,email,sender,timestamp", lines[0])
	assert.Equal(t, "match,no_open_match,c,c@x.com,alex,01/06/2025 12:00:00", lines[1])
}

func TestWriteSummary_Canonical(t *testing.T) {
	res, sends := exportResult(t)

	var first, second bytes.Buffer
	require.NoError(t, WriteSummary(&first, res, sends))
	require.NoError(t, WriteSummary(&second, res, sends))

	assert.Equal(t, first.String(), second.String(), "summary bytes are deterministic")
	assert.True(t, strings.HasSuffix(first.String(), "\n"))

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(first.Bytes(), &parsed))
	assert.Equal(t, "batch-1", parsed["batch_token"])
	assert.Equal(t, float64(3), parsed["sends"])
	assert.Equal(t, float64(2), parsed["enriched"])
	assert.Equal(t, float64(1), parsed["failures"])

	byReason := parsed["failures_by_reason"].(map[string]any)
	assert.Equal(t, float64(1), byReason["no_open_match"])

	started, err := time.Parse(time.RFC3339, parsed["started"].(string))
	require.NoError(t, err)
	finished, err := time.Parse(time.RFC3339, parsed["finished"].(string))
	require.NoError(t, err)
	assert.False(t, finished.Before(started), "run timing is recorded in order")

	registry := parsed["org_registry"].([]any)
	require.Len(t, registry, 2)
	first0 := registry[0].(map[string]any)
	assert.Equal(t, float64(1), first0["org_id"])
	assert.Equal(t, "acme", first0["org_key"])
}

func TestWriteSummary_KeysSorted(t *testing.T) {
	res, sends := exportResult(t)

	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, res, sends))

	s := buf.String()
	assert.Less(t, strings.Index(s, `"batch_token"`), strings.Index(s, `"enriched"`))
	assert.Less(t, strings.Index(s, `"enriched"`), strings.Index(s, `"failures"`))
	assert.Less(t, strings.Index(s, `"metrics"`), strings.Index(s, `"org_registry"`))
}

func TestWriteAll(t *testing.T) {
	res, sends := exportResult(t)
	dir := filepath.Join(t.TempDir(), "out")

	require.NoError(t, WriteAll(dir, res, sends))

	for _, name := range []string{ReconciledFile, FailuresFile, SummaryFile} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Greater(t, info.Size(), int64(0), name)
	}
}
