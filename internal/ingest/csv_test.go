package ingest

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tally/internal/record"
	"github.com/roach88/tally/internal/testutil"
)

func TestReadSendEvents_WellFormed(t *testing.T) {
	input := strings.Join([]string{
		"identity_key,timestamp,org_key,email",
		"k1,01/06/2025 10:00:00,Acme,a@x.com",
		"k2,02/06/2025 11:30:00,Globex,b@x.com",
	}, "\n")

	sends, errs := ReadSendEvents(strings.NewReader(input), "sends.csv", "newsletter")

	require.Empty(t, errs)
	require.Len(t, sends, 2)
	assert.Equal(t, "k1", sends[0].IdentityKey)
	assert.Equal(t, "a@x.com", sends[0].Email)
	assert.Equal(t, "Acme", sends[0].OrgKey)
	assert.Equal(t, "newsletter", sends[0].Sender)
	assert.Equal(t, testutil.MustTime("01/06/2025 10:00:00"), sends[0].Timestamp)
}

func TestReadSendEvents_ExtraColumnsBecomeAttrs(t *testing.T) {
	input := strings.Join([]string{
		"identity_key,timestamp,org_key,email,campaign,region",
		"k1,01/06/2025 10:00:00,Acme,a@x.com,q3-launch,emea",
	}, "\n")

	sends, errs := ReadSendEvents(strings.NewReader(input), "sends.csv", "s")

	require.Empty(t, errs)
	require.Len(t, sends, 1)
	assert.Equal(t, record.Attrs{"campaign": "q3-launch", "region": "emea"}, sends[0].Attrs)
}

func TestReadSendEvents_MissingColumnsReportedIndividually(t *testing.T) {
	input := "identity_key,timestamp\nk1,01/06/2025 10:00:00"

	sends, errs := ReadSendEvents(strings.NewReader(input), "sends.csv", "s")

	assert.Empty(t, sends)
	require.Len(t, errs, 2)
	for _, e := range errs {
		assert.Equal(t, ErrMissingHeader, e.Code)
		assert.Equal(t, 1, e.Line)
	}
	assert.Equal(t, "org_key", errs[0].Column)
	assert.Equal(t, "email", errs[1].Column)
}

func TestReadSendEvents_CollectsAllRowErrors(t *testing.T) {
	input := strings.Join([]string{
		"identity_key,timestamp,org_key,email",
		",01/06/2025 10:00:00,Acme,a@x.com",   // empty identity
		"k2,2025-06-01T10:00:00Z,Acme,b@x.com", // wrong timestamp layout
		"k3,01/06/2025 10:00:00,Acme,c@x.com", // fine
	}, "\n")

	sends, errs := ReadSendEvents(strings.NewReader(input), "sends.csv", "s")

	require.Len(t, errs, 2, "both bad rows reported in one pass")
	assert.Equal(t, ErrEmptyField, errs[0].Code)
	assert.Equal(t, 2, errs[0].Line)
	assert.Equal(t, ErrBadTimestamp, errs[1].Code)
	assert.Equal(t, 3, errs[1].Line)

	require.Len(t, sends, 1)
	assert.Equal(t, "k3", sends[0].IdentityKey)
}

func TestReadSendEvents_RaggedRow(t *testing.T) {
	input := strings.Join([]string{
		"identity_key,timestamp,org_key,email",
		"k1,01/06/2025 10:00:00,Acme",
	}, "\n")

	sends, errs := ReadSendEvents(strings.NewReader(input), "sends.csv", "s")

	assert.Empty(t, sends)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrRaggedRow, errs[0].Code)
	assert.Equal(t, 2, errs[0].Line)
}

// faultyReader yields its data once, then fails every subsequent read the
// way a broken pipe or disk fault would.
type faultyReader struct {
	data string
	done bool
}

func (r *faultyReader) Read(p []byte) (int, error) {
	if !r.done {
		r.done = true
		return copy(p, r.data), nil
	}
	return 0, errors.New("read /dev/stdin: input/output error")
}

func TestReadSendEvents_HardReadErrorStopsScan(t *testing.T) {
	input := strings.Join([]string{
		"identity_key,timestamp,org_key,email",
		"k1,01/06/2025 10:00:00,Acme,a@x.com",
		"",
	}, "\n")

	sends, errs := ReadSendEvents(&faultyReader{data: input}, "sends.csv", "s")

	require.Len(t, sends, 1, "rows before the fault are kept")
	require.Len(t, errs, 1, "a persistent read error is reported once, not per retry")
	assert.Contains(t, errs[0].Message, "input/output error")
}

func TestReadSendEvents_EmptyFile(t *testing.T) {
	_, errs := ReadSendEvents(strings.NewReader(""), "sends.csv", "s")

	require.Len(t, errs, 1)
	assert.Equal(t, ErrEmptyFile, errs[0].Code)
}

func TestReadSendEvents_WhitespaceTrimmed(t *testing.T) {
	input := strings.Join([]string{
		"identity_key,timestamp,org_key,email",
		" k1 , 01/06/2025 10:00:00 , Acme , a@x.com ",
	}, "\n")

	sends, errs := ReadSendEvents(strings.NewReader(input), "sends.csv", "s")

	require.Empty(t, errs)
	require.Len(t, sends, 1)
	assert.Equal(t, "k1", sends[0].IdentityKey)
	assert.Equal(t, "a@x.com", sends[0].Email)
}

func TestReadOpenEvents_WellFormed(t *testing.T) {
	input := strings.Join([]string{
		"identity_key,timestamp,views,clicks,last_opened",
		"k1,01/06/2025 10:00:05,3,1,02/06/2025 08:00:00",
		"k2,01/06/2025 10:00:06,0,0,",
	}, "\n")

	opens, errs := ReadOpenEvents(strings.NewReader(input), "opens.csv")

	require.Empty(t, errs)
	require.Len(t, opens, 2)
	assert.Equal(t, 3, opens[0].Views)
	assert.Equal(t, 1, opens[0].Clicks)
	assert.Equal(t, testutil.MustTime("02/06/2025 08:00:00"), opens[0].LastOpened)
	assert.True(t, opens[1].LastOpened.IsZero(), "empty last_opened stays zero")
}

func TestReadOpenEvents_BadCounters(t *testing.T) {
	input := strings.Join([]string{
		"identity_key,timestamp,views,clicks,last_opened",
		"k1,01/06/2025 10:00:05,-1,0,",
		"k2,01/06/2025 10:00:05,three,0,",
	}, "\n")

	opens, errs := ReadOpenEvents(strings.NewReader(input), "opens.csv")

	assert.Empty(t, opens)
	require.Len(t, errs, 2)
	assert.Equal(t, ErrBadCounter, errs[0].Code)
	assert.Equal(t, "views", errs[0].Column)
	assert.Equal(t, ErrBadCounter, errs[1].Code)
}

func TestReadOpenEvents_EmptyCountersAreZero(t *testing.T) {
	input := strings.Join([]string{
		"identity_key,timestamp,views,clicks,last_opened",
		"k1,01/06/2025 10:00:05,,,",
	}, "\n")

	opens, errs := ReadOpenEvents(strings.NewReader(input), "opens.csv")

	require.Empty(t, errs)
	require.Len(t, opens, 1)
	assert.Equal(t, 0, opens[0].Views)
	assert.Equal(t, 0, opens[0].Clicks)
}

func TestReadContacts_WellFormed(t *testing.T) {
	input := strings.Join([]string{
		"email,org_key,title",
		"a@x.com,Acme,VP",
		"b@x.com,,",
	}, "\n")

	contacts, errs := ReadContacts(strings.NewReader(input), "contacts.csv")

	require.Empty(t, errs)
	require.Len(t, contacts, 2)
	assert.Equal(t, "a@x.com", contacts[0].Email)
	assert.Equal(t, "Acme", contacts[0].OrgKey)
	assert.Equal(t, "VP", contacts[0].Attrs["title"])
	assert.Equal(t, "", contacts[1].OrgKey, "blank org key is allowed in the directory")
}

func TestReadContacts_DuplicatesKeptInOrder(t *testing.T) {
	input := strings.Join([]string{
		"email,org_key",
		"a@x.com,First",
		"a@x.com,Second",
	}, "\n")

	contacts, errs := ReadContacts(strings.NewReader(input), "contacts.csv")

	require.Empty(t, errs)
	require.Len(t, contacts, 2, "dedup is the resolver's job, not the reader's")
	assert.Equal(t, "First", contacts[0].OrgKey)
}

func TestReadContacts_EmptyEmailRejected(t *testing.T) {
	input := "email,org_key\n,Acme"

	contacts, errs := ReadContacts(strings.NewReader(input), "contacts.csv")

	assert.Empty(t, contacts)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrEmptyField, errs[0].Code)
	assert.Equal(t, "email", errs[0].Column)
}

func TestRowError_Format(t *testing.T) {
	e := RowError{File: "sends.csv", Line: 3, Column: "timestamp", Message: "bad", Code: ErrBadTimestamp}
	assert.Equal(t, `[D103] sends.csv:3: column "timestamp": bad`, e.Error())

	e = RowError{File: "sends.csv", Line: 2, Message: "bad", Code: ErrRaggedRow}
	assert.Equal(t, "[D101] sends.csv:2: bad", e.Error())
}
