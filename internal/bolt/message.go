package bolt

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Message is one translated client message: the discriminator name plus
// the decoded structure fields.
type Message struct {
	Name   string
	Fields []any
}

// String renders the message the way it appears in conversation logs,
// e.g. `RUN "RETURN 1" {} {}`.
func (m *Message) String() string {
	var b strings.Builder
	b.WriteString(m.Name)
	for _, f := range m.Fields {
		b.WriteByte(' ')
		data, err := json.Marshal(f)
		if err != nil {
			fmt.Fprintf(&b, "%v", f)
			continue
		}
		b.Write(data)
	}
	return b.String()
}
