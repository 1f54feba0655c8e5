package request

import "github.com/kulezi/cqldriver/frame"

var _ frame.Request = (*Prepare)(nil)

// Prepare asks the server to parse Content and return a queryId plus
// variable/result metadata (PREPARED response). Keyspace is only encoded
// on protocol >= 5, letting a statement be prepared against a keyspace
// other than the connection's current one.
type Prepare struct {
	Version  frame.ProtocolVersion
	Content  string
	Keyspace string
}

func (p *Prepare) WriteTo(b *frame.Buffer) {
	b.WriteLongString(p.Content)
	if p.Version.SupportsKeyspaceInRequest() {
		var flags frame.Int
		if p.Keyspace != "" {
			flags |= 0x01
		}
		b.WriteInt(flags)
		if p.Keyspace != "" {
			b.WriteString(p.Keyspace)
		}
	}
}

func (*Prepare) OpCode() frame.OpCode {
	return frame.OpPrepare
}
