// Package bolt implements the version-specific dialect rules of the
// protocol: handshake proposal decoding, the mapping between structure
// tags and message names, translation of scripted server lines, and
// synthesis of default auto-replies.
package bolt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/boltkit/stubserver/internal/packstream"
)

// Server response tags, identical across supported versions.
const (
	tagSuccess byte = 0x70
	tagRecord  byte = 0x71
	tagIgnored byte = 0x7E
	tagFailure byte = 0x7F
)

// Protocol is the dialect bound to one negotiated version. One
// implementation is selected at channel construction; no version
// branching happens outside this package.
type Protocol interface {
	// ProtocolVersion returns the single version this dialect speaks.
	ProtocolVersion() Version

	// DecodeVersions decodes the 16-byte handshake proposal payload.
	DecodeVersions(payload []byte) ([]Version, error)

	// TranslateStructure turns a decoded frame into a named message.
	TranslateStructure(st *packstream.Structure) (*Message, error)

	// TranslateServerLine turns a scripted server line into an
	// encodable structure.
	TranslateServerLine(line string) (*packstream.Structure, error)

	// AutoResponse synthesizes the default reply for msg. A nil return
	// means the message gets no reply (e.g. GOODBYE).
	AutoResponse(msg *Message) *packstream.Structure
}

// ForVersion returns the dialect for v, or an error if the stub does
// not implement that version.
func ForVersion(v Version) (Protocol, error) {
	if !supported(v) {
		return nil, fmt.Errorf("unsupported protocol version %s", v)
	}
	return &dialect{
		version:  v,
		requests: requestNames(v),
	}, nil
}

func supported(v Version) bool {
	switch v.Major {
	case 3:
		return v.Minor == 0
	case 4:
		return v.Minor <= 4
	case 5:
		return v.Minor <= 8
	}
	return false
}

// requestNames builds the tag table for client messages available in v.
func requestNames(v Version) map[byte]string {
	names := map[byte]string{
		0x01: "HELLO",
		0x02: "GOODBYE",
		0x0F: "RESET",
		0x10: "RUN",
		0x11: "BEGIN",
		0x12: "COMMIT",
		0x13: "ROLLBACK",
	}
	if v.Major == 3 {
		names[0x2F] = "DISCARD_ALL"
		names[0x3F] = "PULL_ALL"
		return names
	}
	names[0x2F] = "DISCARD"
	names[0x3F] = "PULL"
	if v.atLeast(4, 3) {
		names[0x66] = "ROUTE"
	}
	if v.atLeast(5, 1) {
		names[0x6A] = "LOGON"
		names[0x6B] = "LOGOFF"
	}
	if v.atLeast(5, 4) {
		names[0x54] = "TELEMETRY"
	}
	return names
}

func (v Version) atLeast(major, minor int) bool {
	if v.Major != major {
		return v.Major > major
	}
	return v.Minor >= minor
}

type dialect struct {
	version  Version
	requests map[byte]string
}

var responseTags = map[string]byte{
	"SUCCESS": tagSuccess,
	"RECORD":  tagRecord,
	"IGNORED": tagIgnored,
	"FAILURE": tagFailure,
}

func (d *dialect) ProtocolVersion() Version {
	return d.version
}

func (d *dialect) DecodeVersions(payload []byte) ([]Version, error) {
	return DecodeVersions(payload)
}

func (d *dialect) TranslateStructure(st *packstream.Structure) (*Message, error) {
	name, ok := d.requests[st.Tag]
	if !ok {
		return nil, fmt.Errorf("unknown message tag %#02x for protocol version %s", st.Tag, d.version)
	}
	return &Message{Name: name, Fields: st.Fields}, nil
}

func (d *dialect) TranslateServerLine(line string) (*packstream.Structure, error) {
	name, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	tag, ok := responseTags[name]
	if !ok {
		return nil, fmt.Errorf("unknown server line %q", line)
	}
	fields, err := parseFields(rest)
	if err != nil {
		return nil, fmt.Errorf("server line %q: %w", line, err)
	}
	return &packstream.Structure{Tag: tag, Fields: fields}, nil
}

func (d *dialect) AutoResponse(msg *Message) *packstream.Structure {
	switch msg.Name {
	case "HELLO", "LOGON":
		return &packstream.Structure{Tag: tagSuccess, Fields: []any{map[string]any{
			"server":        "Neo4j/" + d.version.String() + ".0",
			"connection_id": "bolt-stub-1",
		}}}
	case "GOODBYE":
		// Clients hang up after GOODBYE; there is nothing to reply to.
		return nil
	default:
		return &packstream.Structure{Tag: tagSuccess, Fields: []any{map[string]any{}}}
	}
}

// parseFields decodes the whitespace-separated JSON values that follow
// a server line name.
func parseFields(s string) ([]any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var fields []any
	for dec.More() {
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		fields = append(fields, normalize(v))
	}
	return fields, nil
}

// normalize converts decoded JSON values into the types the packstream
// encoder expects, keeping integral numbers as integers on the wire.
func normalize(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, _ := val.Float64()
		return f
	case []any:
		for i, item := range val {
			val[i] = normalize(item)
		}
		return val
	case map[string]any:
		for k, item := range val {
			val[k] = normalize(item)
		}
		return val
	default:
		return v
	}
}
