package capture

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderReaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	rec, err := NewRecorder(&buf)
	require.NoError(t, err)

	ts := time.Unix(1700000000, 0).UTC()
	require.NoError(t, rec.RecordBytes(EventWrite, "s1", ts, []byte{0x01, 0x02}))
	require.NoError(t, rec.RecordBytes(EventChunk, "s1", ts, []byte("OK\r\n")))
	require.NoError(t, rec.RecordVar("s1", "volts", "230"))

	rd, err := NewReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, traceMagic, rd.Header().Magic)
	assert.Equal(t, traceVersion, rd.Header().Version)

	first, err := rd.Next()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first.Seq)
	assert.Equal(t, EventWrite, first.Kind)
	assert.Equal(t, "s1", first.SessionID)
	assert.Equal(t, []byte{0x01, 0x02}, first.Data)
	assert.True(t, first.Timestamp.Equal(ts))

	second, err := rd.Next()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second.Seq)
	assert.Equal(t, EventChunk, second.Kind)

	third, err := rd.Next()
	require.NoError(t, err)
	assert.Equal(t, EventVarSet, third.Kind)
	assert.Equal(t, "volts", third.Name)
	assert.Equal(t, "230", third.Value)

	_, err = rd.Next()
	require.True(t, errors.Is(err, io.EOF))
}

func TestCreateReadAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.cbor")
	rec, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, rec.RecordBytes(EventFrame, "s1", time.Now(), []byte("OK")))
	require.NoError(t, rec.Record(Event{Kind: EventAccept, SessionID: "s1", Data: []byte("OK")}))
	require.NoError(t, rec.Close())

	hdr, events, err := ReadAll(path)
	require.NoError(t, err)
	assert.Equal(t, "serialforge", hdr.Tool)
	require.Len(t, events, 2)
	assert.Equal(t, EventFrame, events[0].Kind)
	assert.Equal(t, EventAccept, events[1].Kind)
	// The recorder fills in timestamps it was not given.
	assert.False(t, events[1].Timestamp.IsZero())
}

func TestReaderRejectsForeignStream(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte{0xA1, 0x61, 0x78, 0x01}))
	require.Error(t, err)
}

func TestReaderRejectsWrongMagic(t *testing.T) {
	var buf bytes.Buffer
	rec, err := NewRecorder(&buf)
	require.NoError(t, err)
	_ = rec

	// Same length as the real magic so the CBOR string header stays valid.
	raw := bytes.Replace(buf.Bytes(), []byte(traceMagic), []byte("not-a-forge-trace"), 1)
	_, err = NewReader(bytes.NewReader(raw))
	require.Error(t, err)
}
