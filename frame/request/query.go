package request

import "github.com/kulezi/cqldriver/frame"

var _ frame.Request = (*Query)(nil)

// Query is the QUERY request: a CQL string executed directly against the
// server's parser, with bind values supplied positionally or by name.
type Query struct {
	Version frame.ProtocolVersion
	Content string
	Params  QueryParams
}

func (q *Query) WriteTo(b *frame.Buffer) {
	b.WriteLongString(q.Content)
	q.Params.WriteTo(b, q.Version)
}

func (*Query) OpCode() frame.OpCode {
	return frame.OpQuery
}
