package packstream

import (
	"encoding/binary"
	"fmt"

	"github.com/boltkit/stubserver/internal/wire"
)

// maxChunkSize is the largest payload one chunk can carry.
const maxChunkSize = 0xFFFF

// Stream reads and writes PackStream structures as chunked frames over a
// Wire. Each frame is a sequence of chunks (2-byte big-endian size then
// payload) terminated by a zero chunk. A zero chunk between frames is a
// no-op and is skipped.
type Stream struct {
	wire wire.Wire
}

// NewStream binds a Stream to a wire.
func NewStream(w wire.Wire) *Stream {
	return &Stream{wire: w}
}

// ReadMessage reads one complete frame and decodes it as a structure.
func (s *Stream) ReadMessage() (*Structure, error) {
	var data []byte
	for {
		header, err := s.wire.Read(2)
		if err != nil {
			return nil, err
		}
		size := binary.BigEndian.Uint16(header)
		if size == 0 {
			if len(data) > 0 {
				break
			}
			// No-op chunk before the frame started.
			continue
		}
		chunk, err := s.wire.Read(int(size))
		if err != nil {
			return nil, err
		}
		data = append(data, chunk...)
	}

	v, err := Decode(data)
	if err != nil {
		return nil, err
	}
	st, ok := v.(*Structure)
	if !ok {
		return nil, fmt.Errorf("packstream: frame decodes to %T, want structure", v)
	}
	return st, nil
}

// WriteMessage encodes st and stages it as one frame. The frame is not
// sent until Drain.
func (s *Stream) WriteMessage(st *Structure) error {
	data, err := Encode(st)
	if err != nil {
		return err
	}
	for len(data) > 0 {
		size := len(data)
		if size > maxChunkSize {
			size = maxChunkSize
		}
		var header [2]byte
		binary.BigEndian.PutUint16(header[:], uint16(size))
		if err := s.wire.Write(header[:]); err != nil {
			return err
		}
		if err := s.wire.Write(data[:size]); err != nil {
			return err
		}
		data = data[size:]
	}
	return s.wire.Write([]byte{0x00, 0x00})
}

// Drain flushes all staged frames through the wire.
func (s *Stream) Drain() error {
	return s.wire.Send()
}
