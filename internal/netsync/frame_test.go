package netsync_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stagelinkmusic/stagelink/internal/netsync"
)

// oneByteReader doles the stream out a byte at a time, forcing the frame
// reader to resume partial reads of both header and body.
type oneByteReader struct {
	data []byte
	pos  int
}

func (r *oneByteReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	p[0] = r.data[r.pos]
	r.pos++
	return 1, nil
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	assert.NoError(t, netsync.WriteFrame(&buf, []byte(`{"command":"ping"}`)))
	assert.NoError(t, netsync.WriteFrame(&buf, []byte(`{}`)))

	reader := netsync.NewFrameReader(&buf)
	first, err := reader.ReadFrame()
	assert.NoError(t, err)
	assert.Equal(t, `{"command":"ping"}`, string(first))
	second, err := reader.ReadFrame()
	assert.NoError(t, err)
	assert.Equal(t, `{}`, string(second))
}

func TestFrameHeaderIsBigEndian(t *testing.T) {
	var buf bytes.Buffer
	assert.NoError(t, netsync.WriteFrame(&buf, []byte("abc")))
	assert.Equal(t, []byte{0, 0, 0, 3, 'a', 'b', 'c'}, buf.Bytes())
}

func TestFrameReaderResumesPartialReads(t *testing.T) {
	var buf bytes.Buffer
	assert.NoError(t, netsync.WriteFrame(&buf, []byte("hello world")))

	reader := netsync.NewFrameReader(&oneByteReader{data: buf.Bytes()})
	payload, err := reader.ReadFrame()
	assert.NoError(t, err)
	assert.Equal(t, "hello world", string(payload))
}

func TestFrameReaderRejectsOversizedLength(t *testing.T) {
	// A garbage header claiming a 2GB body.
	data := []byte{0x80, 0x00, 0x00, 0x00}
	reader := netsync.NewFrameReader(bytes.NewReader(data))
	_, err := reader.ReadFrame()
	assert.Error(t, err)
}

func TestFrameReaderEOFOnTruncatedBody(t *testing.T) {
	var buf bytes.Buffer
	assert.NoError(t, netsync.WriteFrame(&buf, []byte("full payload")))
	truncated := buf.Bytes()[:8]

	reader := netsync.NewFrameReader(bytes.NewReader(truncated))
	_, err := reader.ReadFrame()
	assert.Error(t, err)
}

func TestEmptyFrame(t *testing.T) {
	var buf bytes.Buffer
	assert.NoError(t, netsync.WriteFrame(&buf, nil))
	reader := netsync.NewFrameReader(&buf)
	payload, err := reader.ReadFrame()
	assert.NoError(t, err)
	assert.Empty(t, payload)
}
