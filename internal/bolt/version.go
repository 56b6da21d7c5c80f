package bolt

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is one protocol version as negotiated during the handshake.
type Version struct {
	Major int
	Minor int
}

// String returns the "major.minor" form.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// ParseVersion parses "4.4" or "4" (minor defaults to 0).
func ParseVersion(s string) (Version, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ".", 2)
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return Version{}, fmt.Errorf("invalid protocol version %q: %w", s, err)
	}
	v := Version{Major: major}
	if len(parts) == 2 {
		minor, err := strconv.Atoi(parts[1])
		if err != nil {
			return Version{}, fmt.Errorf("invalid protocol version %q: %w", s, err)
		}
		v.Minor = minor
	}
	return v, nil
}

// DecodeVersions decodes the 16-byte handshake payload into the list of
// versions the client proposes, in preference order. Each 4-byte entry
// is laid out as [0, range, minor, major]; the range byte extends the
// proposal downward over that many additional minors.
func DecodeVersions(payload []byte) ([]Version, error) {
	if len(payload) != 16 {
		return nil, fmt.Errorf("handshake payload is %d bytes, want 16", len(payload))
	}
	var versions []Version
	for i := 0; i < len(payload); i += 4 {
		entry := payload[i : i+4]
		spread := int(entry[1])
		minor := int(entry[2])
		major := int(entry[3])
		for d := 0; d <= spread && minor-d >= 0; d++ {
			versions = append(versions, Version{Major: major, Minor: minor - d})
		}
	}
	return versions, nil
}
