package request

import "github.com/kulezi/cqldriver/frame"

var _ frame.Request = (*Execute)(nil)

// Execute is the EXECUTE request: runs a previously PREPAREd statement by
// its queryId. ResultMetadataID is sent whenever the connection's
// negotiated version supports it (>=5), as empty short bytes when the
// prepared statement has none.
type Execute struct {
	Version          frame.ProtocolVersion
	ID               []byte
	ResultMetadataID []byte
	Params           QueryParams
}

func (e *Execute) WriteTo(b *frame.Buffer) {
	b.WriteShortBytes(e.ID)
	if e.Version.SupportsResultMetadataID() {
		b.WriteShortBytes(e.ResultMetadataID)
	}
	e.Params.WriteTo(b, e.Version)
}

func (*Execute) OpCode() frame.OpCode {
	return frame.OpExecute
}
