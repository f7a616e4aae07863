package netsync

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// maxFrameSize guards against garbage length headers; no legitimate session
// push comes anywhere near a megabyte.
const maxFrameSize = 1 << 20

// WriteFrame writes one length-prefixed message: a 4-byte big-endian length
// followed by exactly that many payload bytes.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > maxFrameSize {
		return fmt.Errorf("frame too large: %d bytes", len(payload))
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// FrameReader reads length-prefixed messages off a byte stream. Partial
// reads are resumed, never discarded: both the header and the body are read
// to completion before a frame is returned.
type FrameReader struct {
	r *bufio.Reader
}

// NewFrameReader wraps a stream in a frame decoder
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: bufio.NewReader(r)}
}

// ReadFrame blocks until one complete frame is available and returns its
// payload. An oversized length header is a protocol error that poisons the
// stream, since the remaining bytes can no longer be trusted as frames.
func (f *FrameReader) ReadFrame() ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(f.r, header[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(header[:])
	if size > maxFrameSize {
		return nil, fmt.Errorf("frame length %d exceeds limit", size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(f.r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}
