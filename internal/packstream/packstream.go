// Package packstream implements the PackStream serialization format and
// the chunked message framing used on top of it.
package packstream

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"
)

// Marker bytes.
const (
	markerNull     = 0xC0
	markerFloat64  = 0xC1
	markerFalse    = 0xC2
	markerTrue     = 0xC3
	markerInt8     = 0xC8
	markerInt16    = 0xC9
	markerInt32    = 0xCA
	markerInt64    = 0xCB
	markerBytes8   = 0xCC
	markerBytes16  = 0xCD
	markerBytes32  = 0xCE
	markerString8  = 0xD0
	markerString16 = 0xD1
	markerString32 = 0xD2
	markerList8    = 0xD4
	markerList16   = 0xD5
	markerList32   = 0xD6
	markerMap8     = 0xD8
	markerMap16    = 0xD9
	markerMap32    = 0xDA

	markerTinyString = 0x80
	markerTinyList   = 0x90
	markerTinyMap    = 0xA0
	markerTinyStruct = 0xB0
)

// Structure is one PackStream structure: a tag byte plus a fixed number
// of fields. Every protocol message is encoded as a structure.
type Structure struct {
	Tag    byte
	Fields []any
}

// String renders the structure for log output.
func (s *Structure) String() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Structure[%#02x]", s.Tag)
	for _, f := range s.Fields {
		fmt.Fprintf(&buf, " %v", f)
	}
	return buf.String()
}

// Encode serializes a value into PackStream bytes. Supported Go types:
// nil, bool, all int kinds, float64, string, []byte, []any,
// map[string]any and *Structure.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode deserializes a single PackStream value. Trailing bytes after
// the value are an error.
func Decode(data []byte) (any, error) {
	r := bytes.NewReader(data)
	v, err := decodeValue(r)
	if err != nil {
		return nil, err
	}
	if r.Len() > 0 {
		return nil, fmt.Errorf("packstream: %d trailing bytes after value", r.Len())
	}
	return v, nil
}

func encodeValue(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteByte(markerNull)
	case bool:
		if val {
			buf.WriteByte(markerTrue)
		} else {
			buf.WriteByte(markerFalse)
		}
	case int:
		encodeInt(buf, int64(val))
	case int8:
		encodeInt(buf, int64(val))
	case int16:
		encodeInt(buf, int64(val))
	case int32:
		encodeInt(buf, int64(val))
	case int64:
		encodeInt(buf, val)
	case uint:
		encodeInt(buf, int64(val))
	case uint8:
		encodeInt(buf, int64(val))
	case uint16:
		encodeInt(buf, int64(val))
	case uint32:
		encodeInt(buf, int64(val))
	case float64:
		buf.WriteByte(markerFloat64)
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], math.Float64bits(val))
		buf.Write(b[:])
	case string:
		encodeHeader(buf, markerTinyString, markerString8, len(val))
		buf.WriteString(val)
	case []byte:
		encodeBytesHeader(buf, len(val))
		buf.Write(val)
	case []any:
		encodeHeader(buf, markerTinyList, markerList8, len(val))
		for _, item := range val {
			if err := encodeValue(buf, item); err != nil {
				return err
			}
		}
	case map[string]any:
		encodeHeader(buf, markerTinyMap, markerMap8, len(val))
		// Deterministic key order keeps encoded frames reproducible.
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := encodeValue(buf, k); err != nil {
				return err
			}
			if err := encodeValue(buf, val[k]); err != nil {
				return err
			}
		}
	case *Structure:
		if len(val.Fields) > 15 {
			return fmt.Errorf("packstream: structure with %d fields exceeds maximum of 15", len(val.Fields))
		}
		buf.WriteByte(markerTinyStruct | byte(len(val.Fields)))
		buf.WriteByte(val.Tag)
		for _, f := range val.Fields {
			if err := encodeValue(buf, f); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("packstream: cannot encode value of type %T", v)
	}
	return nil
}

func encodeInt(buf *bytes.Buffer, i int64) {
	switch {
	case i >= -16 && i <= 127:
		buf.WriteByte(byte(i))
	case i >= math.MinInt8 && i <= math.MaxInt8:
		buf.WriteByte(markerInt8)
		buf.WriteByte(byte(i))
	case i >= math.MinInt16 && i <= math.MaxInt16:
		buf.WriteByte(markerInt16)
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(i))
		buf.Write(b[:])
	case i >= math.MinInt32 && i <= math.MaxInt32:
		buf.WriteByte(markerInt32)
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(i))
		buf.Write(b[:])
	default:
		buf.WriteByte(markerInt64)
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(i))
		buf.Write(b[:])
	}
}

func encodeHeader(buf *bytes.Buffer, tinyMarker, marker8 byte, size int) {
	switch {
	case size < 16:
		buf.WriteByte(tinyMarker | byte(size))
	case size <= math.MaxUint8:
		buf.WriteByte(marker8)
		buf.WriteByte(byte(size))
	case size <= math.MaxUint16:
		buf.WriteByte(marker8 + 1)
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(size))
		buf.Write(b[:])
	default:
		buf.WriteByte(marker8 + 2)
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(size))
		buf.Write(b[:])
	}
}

func encodeBytesHeader(buf *bytes.Buffer, size int) {
	switch {
	case size <= math.MaxUint8:
		buf.WriteByte(markerBytes8)
		buf.WriteByte(byte(size))
	case size <= math.MaxUint16:
		buf.WriteByte(markerBytes16)
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(size))
		buf.Write(b[:])
	default:
		buf.WriteByte(markerBytes32)
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(size))
		buf.Write(b[:])
	}
}

func decodeValue(r *bytes.Reader) (any, error) {
	marker, err := r.ReadByte()
	if err != nil {
		return nil, err
	}

	// Tiny positive and negative ints occupy the marker byte itself.
	if marker <= 0x7F {
		return int64(marker), nil
	}
	if marker >= 0xF0 {
		return int64(int8(marker)), nil
	}

	switch marker & 0xF0 {
	case markerTinyString:
		return decodeString(r, int(marker&0x0F))
	case markerTinyList:
		return decodeList(r, int(marker&0x0F))
	case markerTinyMap:
		return decodeMap(r, int(marker&0x0F))
	case markerTinyStruct:
		return decodeStruct(r, int(marker&0x0F))
	}

	switch marker {
	case markerNull:
		return nil, nil
	case markerTrue:
		return true, nil
	case markerFalse:
		return false, nil
	case markerFloat64:
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, err
		}
		return math.Float64frombits(binary.BigEndian.Uint64(b[:])), nil
	case markerInt8:
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		return int64(int8(b)), nil
	case markerInt16:
		var b [2]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, err
		}
		return int64(int16(binary.BigEndian.Uint16(b[:]))), nil
	case markerInt32:
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, err
		}
		return int64(int32(binary.BigEndian.Uint32(b[:]))), nil
	case markerInt64:
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, err
		}
		return int64(binary.BigEndian.Uint64(b[:])), nil
	case markerBytes8, markerBytes16, markerBytes32:
		size, err := decodeSize(r, int(marker-markerBytes8))
		if err != nil {
			return nil, err
		}
		buf := make([]byte, size)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		return buf, nil
	case markerString8, markerString16, markerString32:
		size, err := decodeSize(r, int(marker-markerString8))
		if err != nil {
			return nil, err
		}
		return decodeString(r, size)
	case markerList8, markerList16, markerList32:
		size, err := decodeSize(r, int(marker-markerList8))
		if err != nil {
			return nil, err
		}
		return decodeList(r, size)
	case markerMap8, markerMap16, markerMap32:
		size, err := decodeSize(r, int(marker-markerMap8))
		if err != nil {
			return nil, err
		}
		return decodeMap(r, size)
	}

	return nil, fmt.Errorf("packstream: unknown marker byte %#02x", marker)
}

// decodeSize reads a 1, 2 or 4 byte big-endian size (width 0, 1, 2).
func decodeSize(r *bytes.Reader, width int) (int, error) {
	switch width {
	case 0:
		b, err := r.ReadByte()
		return int(b), err
	case 1:
		var b [2]byte
		_, err := io.ReadFull(r, b[:])
		return int(binary.BigEndian.Uint16(b[:])), err
	default:
		var b [4]byte
		_, err := io.ReadFull(r, b[:])
		return int(binary.BigEndian.Uint32(b[:])), err
	}
}

func decodeString(r *bytes.Reader, size int) (string, error) {
	buf := make([]byte, size)
	if size > 0 {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", err
		}
	}
	return string(buf), nil
}

func decodeList(r *bytes.Reader, size int) ([]any, error) {
	list := make([]any, 0, size)
	for i := 0; i < size; i++ {
		v, err := decodeValue(r)
		if err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	return list, nil
}

func decodeMap(r *bytes.Reader, size int) (map[string]any, error) {
	m := make(map[string]any, size)
	for i := 0; i < size; i++ {
		k, err := decodeValue(r)
		if err != nil {
			return nil, err
		}
		key, ok := k.(string)
		if !ok {
			return nil, fmt.Errorf("packstream: map key is %T, want string", k)
		}
		v, err := decodeValue(r)
		if err != nil {
			return nil, err
		}
		m[key] = v
	}
	return m, nil
}

func decodeStruct(r *bytes.Reader, size int) (*Structure, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	fields := make([]any, 0, size)
	for i := 0; i < size; i++ {
		v, err := decodeValue(r)
		if err != nil {
			return nil, err
		}
		fields = append(fields, v)
	}
	return &Structure{Tag: tag, Fields: fields}, nil
}
