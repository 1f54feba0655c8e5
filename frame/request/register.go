package request

import "github.com/kulezi/cqldriver/frame"

var _ frame.Request = (*Register)(nil)

// Register subscribes the connection to server-pushed EVENT frames for the
// given event types (TOPOLOGY_CHANGE, STATUS_CHANGE, SCHEMA_CHANGE).
type Register struct {
	Events frame.StringList
}

func (r *Register) WriteTo(b *frame.Buffer) {
	b.WriteStringList(r.Events)
}

func (*Register) OpCode() frame.OpCode {
	return frame.OpRegister
}
