package bolt_test

import (
	"reflect"
	"testing"

	"github.com/boltkit/stubserver/internal/bolt"
	"github.com/boltkit/stubserver/internal/packstream"
)

func dialect(t *testing.T, major, minor int) bolt.Protocol {
	t.Helper()
	p, err := bolt.ForVersion(bolt.Version{Major: major, Minor: minor})
	if err != nil {
		t.Fatalf("ForVersion(%d.%d) error = %v", major, minor, err)
	}
	return p
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    bolt.Version
		wantErr bool
	}{
		{in: "4.4", want: bolt.Version{Major: 4, Minor: 4}},
		{in: "5", want: bolt.Version{Major: 5}},
		{in: " 3.0 ", want: bolt.Version{Major: 3}},
		{in: "four", wantErr: true},
		{in: "4.x", wantErr: true},
	}
	for _, tt := range tests {
		got, err := bolt.ParseVersion(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseVersion(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseVersion(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestForVersionUnsupported(t *testing.T) {
	if _, err := bolt.ForVersion(bolt.Version{Major: 2}); err == nil {
		t.Error("ForVersion(2.0) succeeded, want error")
	}
	if _, err := bolt.ForVersion(bolt.Version{Major: 4, Minor: 9}); err == nil {
		t.Error("ForVersion(4.9) succeeded, want error")
	}
}

func TestDecodeVersionsPlainEntries(t *testing.T) {
	payload := []byte{
		0, 0, 4, 4,
		0, 0, 0, 4,
		0, 0, 0, 3,
		0, 0, 0, 0,
	}
	got, err := bolt.DecodeVersions(payload)
	if err != nil {
		t.Fatalf("DecodeVersions() error = %v", err)
	}
	want := []bolt.Version{
		{Major: 4, Minor: 4},
		{Major: 4},
		{Major: 3},
		{},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DecodeVersions() = %v, want %v", got, want)
	}
}

func TestDecodeVersionsRangeExpansion(t *testing.T) {
	payload := make([]byte, 16)
	copy(payload, []byte{0, 2, 4, 4})
	got, err := bolt.DecodeVersions(payload)
	if err != nil {
		t.Fatalf("DecodeVersions() error = %v", err)
	}
	// Entry [0 2 4 4] proposes 4.4, 4.3 and 4.2; the remaining all-zero
	// entries each propose 0.0.
	want := []bolt.Version{
		{Major: 4, Minor: 4},
		{Major: 4, Minor: 3},
		{Major: 4, Minor: 2},
		{}, {}, {},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DecodeVersions() = %v, want %v", got, want)
	}
}

func TestDecodeVersionsBadLength(t *testing.T) {
	if _, err := bolt.DecodeVersions([]byte{0, 0, 4, 4}); err == nil {
		t.Error("DecodeVersions() succeeded with 4 bytes, want error")
	}
}

func TestTranslateStructure(t *testing.T) {
	p := dialect(t, 4, 4)
	msg, err := p.TranslateStructure(&packstream.Structure{
		Tag:    0x10,
		Fields: []any{"RETURN 1", map[string]any{}, map[string]any{}},
	})
	if err != nil {
		t.Fatalf("TranslateStructure() error = %v", err)
	}
	if msg.Name != "RUN" {
		t.Errorf("name = %s, want RUN", msg.Name)
	}
	if len(msg.Fields) != 3 {
		t.Errorf("fields = %d, want 3", len(msg.Fields))
	}
}

func TestTranslateStructureUnknownTag(t *testing.T) {
	p := dialect(t, 4, 4)
	if _, err := p.TranslateStructure(&packstream.Structure{Tag: 0x99}); err == nil {
		t.Error("TranslateStructure() succeeded on unknown tag, want error")
	}
}

func TestTagTablesPerVersion(t *testing.T) {
	// Bolt 3 names the streaming messages differently and 4.2 predates
	// ROUTE; 5.1 adds LOGON.
	tests := []struct {
		major, minor int
		tag          byte
		want         string
		wantErr      bool
	}{
		{3, 0, 0x3F, "PULL_ALL", false},
		{4, 4, 0x3F, "PULL", false},
		{4, 4, 0x66, "ROUTE", false},
		{4, 2, 0x66, "", true},
		{3, 0, 0x66, "", true},
		{5, 1, 0x6A, "LOGON", false},
		{5, 0, 0x6A, "", true},
		{5, 4, 0x54, "TELEMETRY", false},
	}
	for _, tt := range tests {
		p := dialect(t, tt.major, tt.minor)
		msg, err := p.TranslateStructure(&packstream.Structure{Tag: tt.tag})
		if (err != nil) != tt.wantErr {
			t.Errorf("%d.%d tag %#02x: error = %v, wantErr %v", tt.major, tt.minor, tt.tag, err, tt.wantErr)
			continue
		}
		if err == nil && msg.Name != tt.want {
			t.Errorf("%d.%d tag %#02x = %s, want %s", tt.major, tt.minor, tt.tag, msg.Name, tt.want)
		}
	}
}

func TestTranslateServerLine(t *testing.T) {
	p := dialect(t, 4, 4)
	st, err := p.TranslateServerLine(`SUCCESS {"fields": ["n"], "t_first": 1}`)
	if err != nil {
		t.Fatalf("TranslateServerLine() error = %v", err)
	}
	if st.Tag != 0x70 {
		t.Errorf("tag = %#02x, want 0x70", st.Tag)
	}
	meta, ok := st.Fields[0].(map[string]any)
	if !ok {
		t.Fatalf("field = %T, want map", st.Fields[0])
	}
	// Integral JSON numbers must stay integers on the wire.
	if meta["t_first"] != int64(1) {
		t.Errorf("t_first = %#v, want int64(1)", meta["t_first"])
	}
}

func TestTranslateServerLineMultipleFields(t *testing.T) {
	p := dialect(t, 4, 4)
	st, err := p.TranslateServerLine(`RECORD [1, 2.5, "three"]`)
	if err != nil {
		t.Fatalf("TranslateServerLine() error = %v", err)
	}
	if st.Tag != 0x71 {
		t.Errorf("tag = %#02x, want 0x71", st.Tag)
	}
	want := []any{int64(1), 2.5, "three"}
	if !reflect.DeepEqual(st.Fields[0], want) {
		t.Errorf("record values = %#v, want %#v", st.Fields[0], want)
	}
}

func TestTranslateServerLineUnknownName(t *testing.T) {
	p := dialect(t, 4, 4)
	if _, err := p.TranslateServerLine("BANANA {}"); err == nil {
		t.Error("TranslateServerLine() succeeded on unknown name, want error")
	}
}

func TestAutoResponse(t *testing.T) {
	p := dialect(t, 4, 4)

	hello := p.AutoResponse(&bolt.Message{Name: "HELLO"})
	if hello == nil || hello.Tag != 0x70 {
		t.Fatalf("HELLO auto-response = %v, want SUCCESS", hello)
	}
	meta := hello.Fields[0].(map[string]any)
	if meta["server"] != "Neo4j/4.4.0" {
		t.Errorf("server agent = %v, want Neo4j/4.4.0", meta["server"])
	}
	if meta["connection_id"] == "" {
		t.Error("HELLO auto-response missing connection_id")
	}

	reset := p.AutoResponse(&bolt.Message{Name: "RESET"})
	if reset == nil || reset.Tag != 0x70 {
		t.Fatalf("RESET auto-response = %v, want SUCCESS", reset)
	}
	if m := reset.Fields[0].(map[string]any); len(m) != 0 {
		t.Errorf("RESET metadata = %v, want empty", m)
	}

	if goodbye := p.AutoResponse(&bolt.Message{Name: "GOODBYE"}); goodbye != nil {
		t.Errorf("GOODBYE auto-response = %v, want nil", goodbye)
	}
}

func TestMessageString(t *testing.T) {
	msg := &bolt.Message{
		Name:   "RUN",
		Fields: []any{"RETURN 1", map[string]any{}, map[string]any{}},
	}
	if got, want := msg.String(), `RUN "RETURN 1" {} {}`; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
